package tftp

import "io"

// sendFile serves a read request: the server sends the file to the client.
//
// The state machine alternates sending one data block and waiting for its
// acknowledgement. The block number starts at 1. A block shorter than
// BlockSize is the final block; a file whose size is an exact multiple of
// BlockSize is terminated by a zero-length final block. The transfer is
// complete once the final block is acknowledged.
//
// Sequence violations abort the session without an error packet; the peer's
// own timeout governs its recovery. Waits are bounded by the configured
// timeout, with the last data block retransmitted up to the retry budget.
func (s *session) sendFile() {
	file, err := s.server.store.Open(s.filename)
	if err != nil {
		code, msg := openError(err)
		s.sendError(code, msg)
		s.callbacks.OnError(NewCodeError(ErrIO, code, msg), "open "+s.filename)
		return
	}
	defer file.Close()

	s.progress.Start(s.filename, 0)

	var (
		block uint16 = 1
		total int64
		buf          = make([]byte, BlockSize)
	)

	for {
		n, rerr := io.ReadFull(file, buf)
		final := rerr == io.EOF || rerr == io.ErrUnexpectedEOF
		if rerr != nil && !final {
			// Mid-transfer read failure. Tell the peer and give up.
			s.sendError(CodeUnknownTransferID, rerr.Error())
			s.callbacks.OnError(NewError(ErrIO, rerr.Error()), "read "+s.filename)
			return
		}

		pkt := encodeData(block, buf[:n])
		if err := s.send(pkt); err != nil {
			s.callbacks.OnError(err, "send block")
			return
		}
		s.logger.Debug("session %s: sent DATA block=%d len=%d", s.id, block, n)

		if !s.awaitAck(block, pkt) {
			s.callbacks.OnError(NewError(ErrProtocol, "transfer aborted"), "await ack")
			return
		}

		total += int64(n)
		s.progress.Update(total)

		if final {
			duration := s.progress.Complete()
			s.logger.Info("session %s: read transfer complete, %d bytes in %v", s.id, total, duration)
			s.callbacks.OnTransferComplete(s.filename, total, duration)
			return
		}
		block++
	}
}

// awaitAck waits for the acknowledgement of the given block, retransmitting
// pkt on timeout up to the retry budget. It returns false when the session
// must abort: retries exhausted, cancellation, a decode failure, an
// unexpected opcode (including an error packet from the peer), or an
// acknowledgement for the wrong block. A duplicate acknowledgement of the
// previous block is an artifact of retransmission and is ignored.
func (s *session) awaitAck(block uint16, pkt []byte) bool {
	retries := 0
	for {
		in, err := s.awaitPacket()
		if err != nil {
			if IsTimeout(err) {
				retries++
				if retries > s.config.Retries {
					s.logger.Info("session %s: retries exhausted waiting for ACK %d", s.id, block)
					return false
				}
				s.logger.Debug("session %s: timeout, retransmitting DATA block=%d (try %d/%d)", s.id, block, retries, s.config.Retries)
				if err := s.send(pkt); err != nil {
					return false
				}
				continue
			}
			// Cancelled.
			return false
		}

		op, err := decodeOpcode(in)
		if err != nil {
			s.logger.Info("session %s: %v, aborting", s.id, err)
			return false
		}
		if op != OpAck {
			if op == OpError {
				if ep, err := decodeError(in); err == nil {
					s.logger.Info("session %s: peer error: code=%d %s", s.id, uint16(ep.code), ep.message)
				}
			} else {
				s.logger.Info("session %s: expected ACK, got %s, aborting", s.id, op)
			}
			return false
		}

		ack, err := decodeAck(in)
		if err != nil {
			return false
		}
		switch ack.block {
		case block:
			return true
		case block - 1:
			// Duplicate of the previous acknowledgement; ignore.
			s.logger.Debug("session %s: duplicate ACK %d ignored", s.id, ack.block)
		default:
			s.logger.Info("session %s: ACK %d does not match block %d, aborting", s.id, ack.block, block)
			return false
		}
	}
}
