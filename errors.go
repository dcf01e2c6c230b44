package qzip

import (
	"errors"

	"github.com/miretskiy/qzip/engine"
)

// Common errors
var (
	ErrSessionClosed  = errors.New("session has already ended")
	ErrStreamClosed   = errors.New("stream is closed")
	ErrNilBuffer      = errors.New("nil buffer")
	ErrReadOnlyBuffer = errors.New("destination buffer is read-only")
	ErrEmptyRange     = errors.New("empty source or destination range")
	ErrBufferLimit    = errors.New("decompression buffer limit exceeded")

	// ErrIncompleteSource means a decompress source held no complete
	// compressed unit: truncated input or bytes this library never wrote.
	ErrIncompleteSource = errors.New("source holds no complete compressed unit")
)

// StatusOf extracts the engine status carried by err. It returns
// StatusOK when err holds no engine status.
func StatusOf(err error) Status {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return ee.Status
	}
	return engine.StatusOK
}
