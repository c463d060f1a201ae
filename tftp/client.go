package tftp

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/gofrs/uuid"
)

// Client retrieves files from and deposits files to a transfer server.
//
// A Client is stateless between calls and safe for concurrent use; every
// Get or Put opens its own UDP socket so concurrent transfers arrive at
// the server as distinct peers.
type Client struct {
	config    *Config
	callbacks *Callbacks
	logger    Logger
}

// NewClient creates a client. The context option is ignored; Get and Put
// take a per-call context instead.
func NewClient(opts ...Option) *Client {
	o := resolveOptions(opts)
	return &Client{
		config:    o.config,
		callbacks: o.callbacks,
		logger:    o.logger,
	}
}

func (c *Client) dial(ctx context.Context, addr string) (*clientConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, NewError(ErrIO, err.Error())
	}
	uconn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, NewError(ErrIO, err.Error())
	}
	return &clientConn{conn: uconn, timeout: c.config.Timeout, ctx: ctx}, nil
}

// Get retrieves filename from the server at addr and writes its contents
// to w. It returns the number of bytes received.
//
// The exchange is lock-step: each data block is acknowledged before the
// next is sent. A block shorter than BlockSize completes the transfer.
// Waits are bounded by the configured timeout; on expiry the last packet
// is retransmitted up to the retry budget. A retransmitted duplicate of
// the previous block is acknowledged again without advancing.
func (c *Client) Get(ctx context.Context, addr, filename string, w io.Writer) (int64, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	id := uuid.Must(uuid.NewV4())
	c.logger.Info("get %s: %q from %s", id, filename, addr)
	c.callbacks.OnTransferStart(filename, OpReadRequest, addr)

	progress := NewProgressTracker(c.callbacks.OnProgress, c.config.ProgressInterval)
	progress.Start(filename, 0)

	// The request doubles as the first retransmittable packet: until
	// block 1 arrives, a timeout re-sends the request itself.
	last := encodeRequest(OpReadRequest, filename, DefaultMode)
	if err := conn.send(last); err != nil {
		c.callbacks.OnError(err, "send request")
		return 0, err
	}

	var (
		total    int64
		expected uint16 = 1
		retries  int
		buf             = make([]byte, MaxPacketSize)
	)

	for {
		pkt, err := conn.receive(buf)
		if err != nil {
			if IsTimeout(err) && retries < c.config.Retries {
				retries++
				c.logger.Debug("get %s: timeout waiting for block %d, retransmitting (try %d/%d)", id, expected, retries, c.config.Retries)
				if err := conn.send(last); err != nil {
					c.callbacks.OnError(err, "retransmit")
					return total, err
				}
				continue
			}
			c.callbacks.OnError(err, "await data")
			return total, err
		}

		dp, err := c.expectData(id, pkt, expected)
		if err != nil {
			c.callbacks.OnError(err, "await data")
			return total, err
		}
		if dp == nil {
			// Duplicate of the previous block; the earlier
			// acknowledgement was lost. Acknowledge it again.
			last = encodeAck(expected - 1)
			if err := conn.send(last); err != nil {
				c.callbacks.OnError(err, "send ack")
				return total, err
			}
			continue
		}

		if _, err := w.Write(dp.payload); err != nil {
			c.callbacks.OnError(NewError(ErrIO, err.Error()), "write "+filename)
			return total, NewError(ErrIO, err.Error())
		}

		last = encodeAck(dp.block)
		if err := conn.send(last); err != nil {
			c.callbacks.OnError(err, "send ack")
			return total, err
		}
		retries = 0
		total += int64(len(dp.payload))
		progress.Update(total)
		c.logger.Debug("get %s: received DATA block=%d len=%d", id, dp.block, len(dp.payload))

		if len(dp.payload) < BlockSize {
			duration := progress.Complete()
			c.logger.Info("get %s: complete, %d bytes in %v", id, total, duration)
			c.callbacks.OnTransferComplete(filename, total, duration)
			return total, nil
		}
		expected++
	}
}

// expectData validates one inbound packet during a retrieval. It returns
// the data packet for the expected block, (nil, nil) for a tolerated
// duplicate of the previous block, or an error for anything that must
// abort the transfer.
func (c *Client) expectData(id uuid.UUID, pkt []byte, expected uint16) (*dataPacket, error) {
	op, err := decodeOpcode(pkt)
	if err != nil {
		return nil, err
	}
	switch op {
	case OpData:
	case OpError:
		ep, derr := decodeError(pkt)
		if derr != nil {
			return nil, derr
		}
		return nil, NewCodeError(ErrRemote, ep.code, ep.message)
	default:
		return nil, NewError(ErrProtocol, fmt.Sprintf("expected DATA, got %s", op))
	}

	dp, err := decodeData(pkt)
	if err != nil {
		return nil, err
	}
	switch dp.block {
	case expected:
		return &dp, nil
	case expected - 1:
		c.logger.Debug("get %s: duplicate DATA block=%d, re-acknowledging", id, dp.block)
		return nil, nil
	default:
		return nil, NewError(ErrProtocol, fmt.Sprintf("expected block %d, got %d", expected, dp.block))
	}
}

// Put deposits the contents of r as filename on the server at addr. It
// returns the number of bytes sent.
//
// The write request is followed immediately by the first data block; the
// server does not acknowledge the request itself. Each block then waits
// for its acknowledgement before the next is sent, with the same timeout
// and retry bounds as Get. An empty r produces a single zero-length block
// so the server still observes a complete transfer.
func (c *Client) Put(ctx context.Context, addr, filename string, r io.Reader) (int64, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	id := uuid.Must(uuid.NewV4())
	c.logger.Info("put %s: %q to %s", id, filename, addr)
	c.callbacks.OnTransferStart(filename, OpWriteRequest, addr)

	progress := NewProgressTracker(c.callbacks.OnProgress, c.config.ProgressInterval)
	progress.Start(filename, 0)

	if err := conn.send(encodeRequest(OpWriteRequest, filename, DefaultMode)); err != nil {
		c.callbacks.OnError(err, "send request")
		return 0, err
	}

	var (
		block uint16 = 1
		total int64
		buf          = make([]byte, BlockSize)
		in           = make([]byte, MaxPacketSize)
	)

	for {
		n, rerr := io.ReadFull(r, buf)
		final := rerr == io.EOF || rerr == io.ErrUnexpectedEOF
		if rerr != nil && !final {
			err := NewError(ErrIO, rerr.Error())
			c.callbacks.OnError(err, "read source")
			return total, err
		}

		pkt := encodeData(block, buf[:n])
		if err := conn.send(pkt); err != nil {
			c.callbacks.OnError(err, "send block")
			return total, err
		}
		c.logger.Debug("put %s: sent DATA block=%d len=%d", id, block, n)

		if err := c.awaitAck(id, conn, in, block, pkt); err != nil {
			c.callbacks.OnError(err, "await ack")
			return total, err
		}

		total += int64(n)
		progress.Update(total)

		if final {
			duration := progress.Complete()
			c.logger.Info("put %s: complete, %d bytes in %v", id, total, duration)
			c.callbacks.OnTransferComplete(filename, total, duration)
			return total, nil
		}
		block++
	}
}

// awaitAck waits for the acknowledgement of the given block, retransmitting
// pkt on timeout up to the retry budget. A duplicate acknowledgement of the
// previous block is ignored; any other mismatch aborts.
func (c *Client) awaitAck(id uuid.UUID, conn *clientConn, buf []byte, block uint16, pkt []byte) error {
	retries := 0
	for {
		in, err := conn.receive(buf)
		if err != nil {
			if IsTimeout(err) && retries < c.config.Retries {
				retries++
				c.logger.Debug("put %s: timeout waiting for ACK %d, retransmitting (try %d/%d)", id, block, retries, c.config.Retries)
				if err := conn.send(pkt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		op, err := decodeOpcode(in)
		if err != nil {
			return err
		}
		switch op {
		case OpAck:
		case OpError:
			ep, derr := decodeError(in)
			if derr != nil {
				return derr
			}
			return NewCodeError(ErrRemote, ep.code, ep.message)
		default:
			return NewError(ErrProtocol, fmt.Sprintf("expected ACK, got %s", op))
		}

		ack, err := decodeAck(in)
		if err != nil {
			return err
		}
		switch ack.block {
		case block:
			return nil
		case block - 1:
			c.logger.Debug("put %s: duplicate ACK %d ignored", id, ack.block)
		default:
			return NewError(ErrProtocol, fmt.Sprintf("ACK %d does not match block %d", ack.block, block))
		}
	}
}
