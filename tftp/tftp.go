// Package tftp implements the minimal UDP file transfer protocol used to
// move PNM capture files between a device and a capture host.
//
// The protocol is a lock-step, block-acknowledged subset of TFTP: a read or
// write request names a file, data then flows in 512-byte blocks, each block
// acknowledged before the next is sent, and a block shorter than 512 bytes
// ends the transfer. Multi-byte integers are big-endian on the wire.
//
// The package provides a concurrent Server that demultiplexes transfers by
// client address on a single socket, a Client for fetching and depositing
// files, and a pure packet codec. Callback hooks report transfer lifecycle
// and progress events.
package tftp

// Opcode identifies the kind of a packet. It occupies the first two bytes
// of every datagram, big-endian.
type Opcode uint16

const (
	// OpReadRequest asks the server to send the named file
	OpReadRequest Opcode = 1

	// OpWriteRequest asks the server to accept the named file
	OpWriteRequest Opcode = 2

	// OpData carries one block of file content
	OpData Opcode = 3

	// OpAck acknowledges receipt of one data block
	OpAck Opcode = 4

	// OpError reports a failure and terminates the transfer
	OpError Opcode = 5
)

// ErrorCode is the wire code carried by an error packet.
type ErrorCode uint16

const (
	// CodeFileNotFound - the requested file does not exist
	CodeFileNotFound ErrorCode = 1

	// CodeAccessViolation - the file exists but may not be read or written
	CodeAccessViolation ErrorCode = 2

	// CodeDiskFull - storage was exhausted while writing
	CodeDiskFull ErrorCode = 3

	// CodeIllegalOperation - the packet made no sense at this point
	CodeIllegalOperation ErrorCode = 4

	// CodeUnknownTransferID - no transfer matches, or an unclassified failure
	CodeUnknownTransferID ErrorCode = 5

	// CodeFileAlreadyExists - the destination file already exists
	CodeFileAlreadyExists ErrorCode = 6

	// CodeUnknownUser - the named user is not known
	CodeUnknownUser ErrorCode = 7
)

// Protocol limits
const (
	// BlockSize is the fixed payload size of a full data block. A payload
	// shorter than this marks the final block of a transfer.
	BlockSize = 512

	// MaxPacketSize is the largest datagram accepted or produced:
	// a 4-byte header plus one full block.
	MaxPacketSize = BlockSize + 4

	// DefaultPort is the well-known protocol port.
	DefaultPort = 69
)

// DefaultMode is the transfer mode written into requests. The engine moves
// raw bytes only; the mode is carried for interoperability and ignored on
// receipt.
const DefaultMode = "octet"

// opcodeNames provides human-readable names for opcodes
// Used for logging
var opcodeNames = []string{
	"INVALID",
	"RRQ",
	"WRQ",
	"DATA",
	"ACK",
	"ERROR",
}

func (o Opcode) String() string {
	if int(o) >= len(opcodeNames) {
		return "UNKNOWN"
	}
	return opcodeNames[o]
}

// errorCodeNames provides human-readable names for wire error codes
var errorCodeNames = []string{
	"not defined",
	"file not found",
	"access violation",
	"disk full",
	"illegal operation",
	"unknown transfer id",
	"file already exists",
	"unknown user",
}

func (c ErrorCode) String() string {
	if int(c) >= len(errorCodeNames) {
		return "unknown code"
	}
	return errorCodeNames[c]
}
