package tftp

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/gofrs/uuid"
)

// session is the state owned by the server for the duration of one file
// transfer with one peer. It is bound to the client address that issued the
// request; the serve loop routes only that address's datagrams here, so a
// session never sees traffic from anyone else.
//
// All block sequencing state (the current or expected block number, the last
// packet sent, the retry count) is session-local. Nothing is shared between
// sessions except the socket, which is only touched through address-directed
// sends.
type session struct {
	server   *Server
	id       uuid.UUID
	op       Opcode
	filename string
	addr     *net.UDPAddr

	// in receives the datagrams the serve loop demultiplexes to this
	// session's client address.
	in chan []byte

	config    *Config
	callbacks *Callbacks
	logger    Logger
	ctx       context.Context

	progress *ProgressTracker
}

// inboundBacklog bounds the session's datagram queue. The exchange is
// lock-step with a single packet outstanding, so anything beyond a couple
// of retransmit duplicates is a misbehaving peer and gets dropped.
const inboundBacklog = 4

func newSession(srv *Server, req request, addr *net.UDPAddr) *session {
	s := &session{
		server:    srv,
		id:        uuid.Must(uuid.NewV4()),
		op:        req.op,
		filename:  req.filename,
		addr:      addr,
		in:        make(chan []byte, inboundBacklog),
		config:    srv.config,
		callbacks: srv.callbacks,
		logger:    srv.logger,
		ctx:       srv.ctx,
	}
	s.progress = NewProgressTracker(s.callbacks.OnProgress, s.config.ProgressInterval)
	return s
}

// key is the demultiplexing key: the client's transport address.
func (s *session) key() string {
	return s.addr.String()
}

// deliver hands a datagram from the serve loop to the session without
// blocking the loop. Overflow is dropped; the peer's retransmit recovers.
func (s *session) deliver(pkt []byte) {
	select {
	case s.in <- pkt:
	default:
		s.logger.Debug("session %s: inbound queue full, dropping %d bytes from %s", s.id, len(pkt), s.addr)
	}
}

// awaitPacket waits for the next datagram from the bound client address,
// bounded by the configured timeout.
func (s *session) awaitPacket() ([]byte, error) {
	timer := time.NewTimer(s.config.Timeout)
	defer timer.Stop()

	select {
	case pkt := <-s.in:
		return pkt, nil
	case <-timer.C:
		return nil, NewError(ErrTimeout, "no packet from "+s.addr.String())
	case <-s.ctx.Done():
		return nil, NewError(ErrCancelled, s.ctx.Err().Error())
	}
}

// send transmits one packet to the session's client address.
func (s *session) send(pkt []byte) error {
	return s.server.send(s.addr, pkt)
}

// sendError sends an error packet to the peer and logs it.
func (s *session) sendError(code ErrorCode, message string) {
	s.logger.Info("session %s: sending error to %s: code=%d %s", s.id, s.addr, uint16(code), message)
	if err := s.send(encodeError(code, message)); err != nil {
		s.logger.Error("session %s: error packet send failed: %v", s.id, err)
	}
}

// run drives the session to completion and is the body of the session's
// goroutine. The caller deregisters the session when run returns.
func (s *session) run() {
	s.logger.Info("session %s: %s %q from %s", s.id, s.op, s.filename, s.addr)
	s.callbacks.OnTransferStart(s.filename, s.op, s.addr.String())

	switch s.op {
	case OpReadRequest:
		s.sendFile()
	case OpWriteRequest:
		s.receiveFile()
	}
}

// openError maps a file store failure to the wire error code and message
// the peer is answered with.
func openError(err error) (ErrorCode, string) {
	switch {
	case os.IsNotExist(err):
		return CodeFileNotFound, "File not found"
	case os.IsPermission(err):
		return CodeAccessViolation, "Access violation"
	default:
		return CodeUnknownTransferID, err.Error()
	}
}
