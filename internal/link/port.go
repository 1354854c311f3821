// Package link runs the receive side of the serial link under test: it
// owns the port abstraction and the receiver goroutine that turns raw
// port reads into validated frame payloads.
package link

import (
	"io"
	"time"
)

// Porter is the minimal interface the receiver needs from a serial port.
// The abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
	// SetReadTimeout bounds how long a Read blocks waiting for data. A
	// timed-out read returns n == 0 with a nil error.
	SetReadTimeout(timeout time.Duration) error
}
