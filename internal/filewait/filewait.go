// Package filewait polls the filesystem for an externally produced file.
//
// The portal generates export files through the browser with no completion
// signal we can subscribe to; the only observable is the file appearing in
// the download directory. Existence is treated as completion.
package filewait

import (
	"context"
	"os"
	"time"
)

// Outcome is the result of waiting for a file.
type Outcome int

const (
	// Arrived means the file existed before the deadline.
	Arrived Outcome = iota
	// TimedOut means the deadline elapsed without the file appearing.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Arrived:
		return "arrived"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

const (
	// DefaultInterval is the polling period.
	DefaultInterval = time.Second
	// DefaultTimeout is how long a download may take before it is written
	// off.
	DefaultTimeout = 30 * time.Second
)

// Waiter polls for file existence at a fixed interval until a deadline.
type Waiter struct {
	Interval time.Duration
	Timeout  time.Duration
}

// New returns a Waiter with the default interval and timeout.
func New() *Waiter {
	return &Waiter{Interval: DefaultInterval, Timeout: DefaultTimeout}
}

// Await blocks until path exists or the timeout elapses. It is a pure
// observation: the path may never have existed and no state is touched.
// Context cancellation counts as a timeout.
func (w *Waiter) Await(ctx context.Context, path string) Outcome {
	deadline := time.Now().Add(w.Timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return Arrived
		}
		if !time.Now().Before(deadline) {
			return TimedOut
		}
		select {
		case <-ctx.Done():
			return TimedOut
		case <-time.After(w.Interval):
		}
	}
}
