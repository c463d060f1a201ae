package tftp

import (
	"errors"
	"fmt"
	"syscall"
)

// receiveFile serves a write request: the server accepts a file from the
// client.
//
// The state machine waits for data blocks starting at 1, appends each
// in-sequence payload and acknowledges it. A payload shorter than BlockSize
// completes the transfer immediately after its acknowledgement; no further
// exchange follows. No acknowledgement precedes the first block: the peer
// sends block 1 unprompted.
//
// A sequence violation aborts the session silently and removes the partial
// file; a truncated capture has no diagnostic value. Disk exhaustion is
// reported to the peer with CodeDiskFull before aborting.
func (s *session) receiveFile() {
	file, err := s.server.store.Create(s.filename)
	if err != nil {
		code, msg := openError(err)
		s.sendError(code, msg)
		s.callbacks.OnError(NewCodeError(ErrIO, code, msg), "create "+s.filename)
		return
	}

	abort := func(err error, context string) {
		file.Close()
		if rerr := s.server.store.Remove(s.filename); rerr != nil {
			s.logger.Debug("session %s: partial file cleanup failed: %v", s.id, rerr)
		}
		s.logger.Info("session %s: write transfer aborted: %v", s.id, err)
		s.callbacks.OnError(err, context)
	}

	s.progress.Start(s.filename, 0)

	var (
		expected uint16 = 1
		total    int64
		lastAck  []byte
		retries  int
	)

	for {
		in, err := s.awaitPacket()
		if err != nil {
			if IsTimeout(err) {
				retries++
				if retries > s.config.Retries {
					abort(err, "await data")
					return
				}
				// Re-send the last acknowledgement, if any, to prod the
				// peer into retransmitting its block.
				if lastAck != nil {
					s.logger.Debug("session %s: timeout, re-sending ACK (try %d/%d)", s.id, retries, s.config.Retries)
					if serr := s.send(lastAck); serr != nil {
						abort(serr, "resend ack")
						return
					}
				}
				continue
			}
			// Cancelled.
			abort(err, "await data")
			return
		}

		op, derr := decodeOpcode(in)
		if derr != nil {
			abort(derr, "decode")
			return
		}
		if op != OpData {
			if op == OpError {
				if ep, eerr := decodeError(in); eerr == nil {
					abort(NewCodeError(ErrRemote, ep.code, ep.message), "peer error")
					return
				}
			}
			abort(NewError(ErrProtocol, "expected DATA, got "+op.String()), "await data")
			return
		}

		d, derr := decodeData(in)
		if derr != nil {
			abort(derr, "decode data")
			return
		}

		switch d.block {
		case expected:
		case expected - 1:
			// Our acknowledgement was lost; re-ack without advancing.
			s.logger.Debug("session %s: duplicate DATA %d, re-acknowledging", s.id, d.block)
			if lastAck != nil {
				s.send(lastAck)
			}
			continue
		default:
			abort(NewError(ErrProtocol, fmt.Sprintf("DATA block %d does not match expected %d", d.block, expected)), "sequence")
			return
		}

		if _, werr := file.Write(d.payload); werr != nil {
			if isDiskFull(werr) {
				s.sendError(CodeDiskFull, "Disk full")
				abort(NewCodeError(ErrIO, CodeDiskFull, werr.Error()), "write "+s.filename)
			} else {
				s.sendError(CodeUnknownTransferID, werr.Error())
				abort(NewError(ErrIO, werr.Error()), "write "+s.filename)
			}
			return
		}

		ack := encodeAck(expected)
		if serr := s.send(ack); serr != nil {
			abort(serr, "send ack")
			return
		}
		lastAck = ack
		retries = 0
		total += int64(len(d.payload))
		s.progress.Update(total)
		s.logger.Debug("session %s: wrote DATA block=%d len=%d", s.id, expected, len(d.payload))

		if len(d.payload) < BlockSize {
			if cerr := file.Close(); cerr != nil {
				s.logger.Error("session %s: close after final block: %v", s.id, cerr)
			}
			duration := s.progress.Complete()
			s.logger.Info("session %s: write transfer complete, %d bytes in %v", s.id, total, duration)
			s.callbacks.OnTransferComplete(s.filename, total, duration)
			return
		}
		expected++
	}
}

// isDiskFull reports whether a write failure means storage exhaustion.
func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
