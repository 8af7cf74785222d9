package fastmodbus

import (
	"time"
)

// BusLink is the duplex byte channel the engine drives: fire-and-forget
// writes and blocking reads bounded by a deadline. The serial wrapper in
// this package satisfies it; hosts with their own transport (e.g. an RS-485
// gateway socket, or a net.Pipe in tests) can supply any implementation.
//
// Reads past the deadline must return an error; reads before it return
// whatever bytes are available.
type BusLink interface {
	Close() error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	SetDeadline(time.Time) error
}
