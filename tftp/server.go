package tftp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Server owns the UDP socket for the protocol port and serves transfers
// from a FileStore.
//
// A single goroutine reads the socket and demultiplexes datagrams by source
// address: requests from a new address start a transfer session on its own
// goroutine, and everything else from a known address is routed to the
// session bound to it. Sessions progress independently; the socket is shared
// only through address-directed sends, which are safe for concurrent use.
type Server struct {
	store     FileStore
	config    *Config
	callbacks *Callbacks
	logger    Logger
	ctx       context.Context
	cancel    context.CancelFunc

	conn *net.UDPConn

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

// Config holds transfer engine configuration, shared by Server and Client.
type Config struct {
	// Timeout bounds each wait for the next packet from the peer.
	Timeout time.Duration

	// Retries is how many times the last unacknowledged packet is
	// retransmitted after a timeout before the transfer aborts.
	Retries int

	// ProgressInterval is the minimum time between progress callbacks.
	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:          5 * time.Second,
		Retries:          3,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// options collects the cross-cutting settings the constructors accept.
type options struct {
	config    *Config
	callbacks *Callbacks
	logger    Logger
	ctx       context.Context
}

func resolveOptions(opts []Option) options {
	o := options{
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		logger:    NoopLogger{},
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Server or Client.
type Option func(*options)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithCallbacks sets the transfer event callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(o *options) {
		o.callbacks = mergeCallbacks(callbacks)
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithContext sets the context; its cancellation stops the server loop and
// aborts in-flight transfers.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// NewServer creates a server serving transfers from the given store.
func NewServer(store FileStore, opts ...Option) *Server {
	o := resolveOptions(opts)
	ctx, cancel := context.WithCancel(o.ctx)
	return &Server{
		store:     store,
		config:    o.config,
		callbacks: o.callbacks,
		logger:    o.logger,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*session),
	}
}

// ListenAndServe binds the UDP address and serves until Close or context
// cancellation. An empty addr binds all interfaces on the well-known port.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = fmt.Sprintf(":%d", DefaultPort)
	}
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return NewError(ErrIO, err.Error())
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return NewError(ErrIO, err.Error())
	}
	return s.Serve(conn)
}

// Serve accepts datagrams on conn and dispatches them until Close or
// context cancellation. Per-transfer failures never terminate the loop.
func (s *Server) Serve(conn *net.UDPConn) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return NewError(ErrCancelled, "server closed")
	}
	s.conn = conn
	s.mu.Unlock()

	// Unblock the read when the server is stopped.
	go func() {
		<-s.ctx.Done()
		conn.Close()
	}()

	s.logger.Info("serving on %s", conn.LocalAddr())

	buf := make([]byte, MaxPacketSize)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				s.wg.Wait()
				s.logger.Info("server stopped")
				return nil
			}
			return NewError(ErrIO, err.Error())
		}

		// Sessions hold packets across loop iterations; give each its
		// own copy of the read buffer.
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		s.dispatch(pkt, raddr)
	}
}

// Close stops the serve loop, aborts in-flight transfers, and waits for
// their goroutines to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// dispatch routes one datagram: to the session bound to its source address
// when one exists, otherwise a request starts a new session and anything
// else is answered with an illegal-operation error.
func (s *Server) dispatch(pkt []byte, addr *net.UDPAddr) {
	key := addr.String()

	s.mu.Lock()
	sess, active := s.sessions[key]
	s.mu.Unlock()

	if active {
		sess.deliver(pkt)
		return
	}

	op, err := decodeOpcode(pkt)
	if err != nil {
		s.logger.Info("dispatch: %v from %s", err, addr)
		s.sendErrorTo(addr, CodeIllegalOperation, "Invalid opcode")
		return
	}

	switch op {
	case OpReadRequest, OpWriteRequest:
		req, err := decodeRequest(pkt)
		if err != nil {
			s.logger.Info("dispatch: %v from %s", err, addr)
			s.sendErrorTo(addr, CodeIllegalOperation, "Malformed request")
			return
		}
		s.startSession(req, addr)
	default:
		// Data, acks, or errors from an address with no session, and any
		// unrecognized opcode. Spoken only at the start of an exchange,
		// none of these open one.
		s.logger.Info("dispatch: unexpected %s from %s", op, addr)
		s.sendErrorTo(addr, CodeIllegalOperation, "Invalid opcode")
	}
}

// startSession registers a transfer session for the client address and runs
// it on its own goroutine. The session is deregistered when it finishes.
func (s *Server) startSession(req request, addr *net.UDPAddr) {
	sess := newSession(s, req, addr)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.sessions[sess.key()] = sess
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.dropSession(sess.key())
		sess.run()
	}()
}

func (s *Server) dropSession(key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// send transmits one packet to the given client address. Safe for
// concurrent use by the session goroutines.
func (s *Server) send(addr *net.UDPAddr, pkt []byte) error {
	if _, err := s.conn.WriteToUDP(pkt, addr); err != nil {
		return NewError(ErrIO, err.Error())
	}
	return nil
}

func (s *Server) sendErrorTo(addr *net.UDPAddr, code ErrorCode, message string) {
	if err := s.send(addr, encodeError(code, message)); err != nil {
		s.logger.Error("error packet send to %s failed: %v", addr, err)
	}
}
