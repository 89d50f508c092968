package metric

import "errors"

var (
	// ErrTargetUnavailable is returned by sinks that could not accept a write,
	// e.g. a refused connection or a full disk.
	ErrTargetUnavailable = errors.New("metric target unavailable")

	// ErrEncoding is returned when a value cannot be represented in a
	// target's wire format.
	ErrEncoding = errors.New("metric value not encodable")

	// ErrQueueClosed is returned by writes to a queue that has shut down.
	ErrQueueClosed = errors.New("metric queue closed")
)

// ErrorHandler receives errors that cannot be returned to a caller, like
// failures of scheduled flushes or background queue writes.
type ErrorHandler func(error)

// IgnoreErrors is an ErrorHandler that drops everything.
func IgnoreErrors(error) {}
