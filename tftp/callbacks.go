package tftp

import "time"

// Callbacks provides hooks for transfer events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnTransferStart is called when a transfer begins.
	// op is OpReadRequest or OpWriteRequest; peer is the client address.
	OnTransferStart func(filename string, op Opcode, peer string)

	// OnProgress is called periodically during a transfer.
	// filename: name of the file being transferred
	// transferred: bytes transferred so far
	// total: total bytes to transfer (0 if unknown)
	// rate: transfer rate in bytes per second
	OnProgress func(filename string, transferred, total int64, rate float64)

	// OnTransferComplete is called when a transfer completes.
	// duration: time taken for the transfer
	OnTransferComplete func(filename string, bytesTransferred int64, duration time.Duration)

	// OnError is called when a transfer fails or aborts.
	// context: description of where the error occurred
	OnError func(err error, context string)
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnTransferStart:    func(string, Opcode, string) {},
		OnProgress:         func(string, int64, int64, float64) {},
		OnTransferComplete: func(string, int64, time.Duration) {},
		OnError:            func(error, string) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	if user == nil {
		return defaultCallbacks()
	}

	def := defaultCallbacks()

	result := &Callbacks{}

	if user.OnTransferStart != nil {
		result.OnTransferStart = user.OnTransferStart
	} else {
		result.OnTransferStart = def.OnTransferStart
	}

	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	} else {
		result.OnProgress = def.OnProgress
	}

	if user.OnTransferComplete != nil {
		result.OnTransferComplete = user.OnTransferComplete
	} else {
		result.OnTransferComplete = def.OnTransferComplete
	}

	if user.OnError != nil {
		result.OnError = user.OnError
	} else {
		result.OnError = def.OnError
	}

	return result
}
