package tftp

import (
	"bytes"
	"encoding/binary"
)

// request is a decoded read or write request.
type request struct {
	op       Opcode
	filename string
	mode     string
}

// dataPacket is a decoded data packet.
type dataPacket struct {
	block   uint16
	payload []byte
}

// ackPacket is a decoded acknowledgement.
type ackPacket struct {
	block uint16
}

// errorPacket is a decoded error packet.
type errorPacket struct {
	code    ErrorCode
	message string
}

// decodeOpcode extracts the opcode from the first two bytes of a datagram.
func decodeOpcode(datagram []byte) (Opcode, error) {
	if len(datagram) < 2 {
		return 0, NewError(ErrMalformed, "datagram too short for opcode")
	}
	return Opcode(binary.BigEndian.Uint16(datagram)), nil
}

// encodeRequest builds a read or write request packet: opcode, the filename
// terminated by a null byte, then the mode terminated by a null byte.
func encodeRequest(op Opcode, filename, mode string) []byte {
	buf := make([]byte, 2, 2+len(filename)+1+len(mode)+1)
	binary.BigEndian.PutUint16(buf, uint16(op))
	buf = append(buf, filename...)
	buf = append(buf, 0)
	buf = append(buf, mode...)
	buf = append(buf, 0)
	return buf
}

// decodeRequest extracts the filename (and mode, when present) from a read
// or write request. The terminator search never runs past the datagram.
func decodeRequest(datagram []byte) (request, error) {
	op, err := decodeOpcode(datagram)
	if err != nil {
		return request{}, err
	}

	end := bytes.IndexByte(datagram[2:], 0)
	if end < 0 {
		return request{}, NewError(ErrMalformed, "request has no filename terminator")
	}
	if end == 0 {
		return request{}, NewError(ErrMalformed, "request has an empty filename")
	}
	filename := string(datagram[2 : 2+end])

	// The mode string is optional in the subset spoken here, carried only
	// for interoperability. Take it when present, ignore its absence.
	mode := ""
	rest := datagram[2+end+1:]
	if modeEnd := bytes.IndexByte(rest, 0); modeEnd > 0 {
		mode = string(rest[:modeEnd])
	}

	return request{op: op, filename: filename, mode: mode}, nil
}

// encodeData builds a data packet for one block. The payload must already be
// chunked to at most BlockSize bytes; the total packet is len(payload)+4.
func encodeData(block uint16, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(OpData))
	binary.BigEndian.PutUint16(buf[2:], block)
	copy(buf[4:], payload)
	return buf
}

// decodeData extracts the block number and payload from a data packet.
// A zero-length payload is valid and marks the end of a transfer whose
// size is an exact multiple of BlockSize.
func decodeData(datagram []byte) (dataPacket, error) {
	if len(datagram) < 4 {
		return dataPacket{}, NewError(ErrMalformed, "data packet too short")
	}
	return dataPacket{
		block:   binary.BigEndian.Uint16(datagram[2:]),
		payload: datagram[4:],
	}, nil
}

// encodeAck builds an acknowledgement packet, always exactly 4 bytes.
func encodeAck(block uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf, uint16(OpAck))
	binary.BigEndian.PutUint16(buf[2:], block)
	return buf
}

// decodeAck extracts the acknowledged block number.
func decodeAck(datagram []byte) (ackPacket, error) {
	if len(datagram) < 4 {
		return ackPacket{}, NewError(ErrMalformed, "ack packet too short")
	}
	return ackPacket{block: binary.BigEndian.Uint16(datagram[2:])}, nil
}

// encodeError builds an error packet: opcode, wire code, then the ASCII
// message terminated by a null byte.
func encodeError(code ErrorCode, message string) []byte {
	buf := make([]byte, 4, 4+len(message)+1)
	binary.BigEndian.PutUint16(buf, uint16(OpError))
	binary.BigEndian.PutUint16(buf[2:], uint16(code))
	buf = append(buf, message...)
	buf = append(buf, 0)
	return buf
}

// decodeError extracts the wire code and message from an error packet.
// A missing message terminator is tolerated; the message then runs to the
// end of the datagram.
func decodeError(datagram []byte) (errorPacket, error) {
	if len(datagram) < 4 {
		return errorPacket{}, NewError(ErrMalformed, "error packet too short")
	}
	msg := datagram[4:]
	if end := bytes.IndexByte(msg, 0); end >= 0 {
		msg = msg[:end]
	}
	return errorPacket{
		code:    ErrorCode(binary.BigEndian.Uint16(datagram[2:])),
		message: string(msg),
	}, nil
}
