package tftp

import "fmt"

// Error represents a transfer protocol error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Code is the wire error code, for errors that were received from or
	// sent to the peer. Zero when no wire code applies.
	Code ErrorCode
}

// ErrorType categorizes transfer errors
type ErrorType int

const (
	// ErrMalformed indicates a packet too short or badly framed to decode
	ErrMalformed ErrorType = iota

	// ErrProtocol indicates a sequence violation (wrong opcode or block)
	ErrProtocol

	// ErrTimeout indicates the retry budget was exhausted waiting for the peer
	ErrTimeout

	// ErrRemote indicates the peer sent an error packet
	ErrRemote

	// ErrIO indicates a socket or file I/O error
	ErrIO

	// ErrCancelled indicates the transfer was cancelled
	ErrCancelled
)

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tftp %s: %s (code %d: %s)", e.Type, e.Message, uint16(e.Code), e.Code)
	}
	return fmt.Sprintf("tftp %s: %s", e.Type, e.Message)
}

func (t ErrorType) String() string {
	switch t {
	case ErrMalformed:
		return "malformed packet"
	case ErrProtocol:
		return "protocol error"
	case ErrTimeout:
		return "timeout"
	case ErrRemote:
		return "remote error"
	case ErrIO:
		return "I/O error"
	case ErrCancelled:
		return "cancelled"
	default:
		return "unknown error"
	}
}

// NewError creates a new transfer error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// NewCodeError creates a new transfer error carrying a wire error code
func NewCodeError(errType ErrorType, code ErrorCode, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Code:    code,
	}
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrTimeout
	}
	return false
}

// IsRemote checks if an error carries an error packet from the peer
func IsRemote(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrRemote
	}
	return false
}

// IsCancelled checks if an error indicates cancellation
func IsCancelled(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrCancelled
	}
	return false
}
