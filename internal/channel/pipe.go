package channel

import "errors"

var (
	// ErrDisconnected is returned by sends after either endpoint was closed,
	// and by polls once the peer has closed and the queue is drained.
	ErrDisconnected = errors.New("channel: peer disconnected")

	// ErrRingFull is returned when a shared ring has no room for a frame.
	ErrRingFull = errors.New("channel: ring buffer full")

	// ErrFrameTooLarge is returned when one encoded message can never fit
	// into the ring.
	ErrFrameTooLarge = errors.New("channel: message larger than ring capacity")

	// ErrNilArgument is returned by SendCommand for a nil argument value.
	// Omitted arguments are left off the end of the list instead.
	ErrNilArgument = errors.New("channel: nil argument")
)

// pipe is one direction of a channel pair.
//
// Send must never block. TryRecv returns (zero, false, nil) when nothing is
// queued. Close is idempotent and affects both ends of the pipe.
type pipe[T any] interface {
	Send(v T) error
	TryRecv() (T, bool, error)
	Wait() <-chan struct{}
	Len() int
	Close()
}
