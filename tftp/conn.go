package tftp

import (
	"context"
	"net"
	"time"
)

// clientConn wraps a connected UDP socket with deadline-based receives.
// Every receive is bounded by the configured timeout so a silent peer can
// never stall a transfer indefinitely.
type clientConn struct {
	conn    *net.UDPConn
	timeout time.Duration
	ctx     context.Context
}

func (c *clientConn) Close() error {
	return c.conn.Close()
}

// send transmits one packet to the connected peer.
func (c *clientConn) send(pkt []byte) error {
	if _, err := c.conn.Write(pkt); err != nil {
		return NewError(ErrIO, err.Error())
	}
	return nil
}

// receive waits for the next datagram from the peer, bounded by the
// timeout. The returned slice aliases buf and is only valid until the
// next receive.
func (c *clientConn) receive(buf []byte) ([]byte, error) {
	// Check context cancellation
	if c.ctx != nil {
		select {
		case <-c.ctx.Done():
			return nil, NewError(ErrCancelled, c.ctx.Err().Error())
		default:
		}
	}

	if c.timeout > 0 {
		deadline := time.Now().Add(c.timeout)
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, NewError(ErrIO, err.Error())
		}
	}

	n, err := c.conn.Read(buf)
	if err != nil {
		if isNetTimeout(err) {
			return nil, NewError(ErrTimeout, "no response from "+c.conn.RemoteAddr().String())
		}
		return nil, NewError(ErrIO, err.Error())
	}
	return buf[:n], nil
}

// isNetTimeout reports whether err is a network read-deadline expiry.
func isNetTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
