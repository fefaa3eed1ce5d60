// Package adapter defines the notification boundary for finished
// batches.
//
// Adapters publish batch completion events to downstream systems. The
// CLI owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BatchCompletedEvent is the payload published when a batch finishes,
// whether it completed or aborted.
type BatchCompletedEvent struct {
	EventType  string `json:"event_type"` // always "batch_completed"
	BatchID    string `json:"batch_id"`
	Fn         string `json:"fn"`
	State      string `json:"state"` // StateCompleted or StateAborted
	Workers    int    `json:"workers"`
	ChunkSize  int    `json:"chunk_size"`
	Items      int    `json:"items"`   // results yielded
	Reports    int    `json:"reports"` // report entries merged
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"` // ISO 8601
	DurationMs int64  `json:"duration_ms"`
}

// EventType is the event_type value carried by every event.
const EventType = "batch_completed"

// State values carried in BatchCompletedEvent.State.
const (
	StateCompleted = "completed"
	StateAborted   = "aborted"
)

// Adapter publishes batch completion events to a downstream system.
// Implementations must be safe for single-use per batch.
type Adapter interface {
	// Publish sends a batch completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *BatchCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// baseBackoff is the delay before the first delivery retry; each
// further retry doubles it.
const baseBackoff = 500 * time.Millisecond

// PermanentError marks a delivery failure that retrying cannot fix,
// such as a rejected payload. Deliver stops on it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so Deliver treats it as non-retriable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Deliver invokes send for event until it succeeds, with exponential
// backoff between attempts. The budget is 1+retries attempts; an
// aborted batch gets one attempt more, since its event carries the
// failure diagnostic a downstream consumer must not lose. Context
// cancellation and PermanentError stop delivery immediately.
func Deliver(ctx context.Context, event *BatchCompletedEvent, retries int, send func(context.Context) error) error {
	attempts := 1 + retries
	if event.State == StateAborted {
		attempts++
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("delivery canceled: %w", err)
		}

		// No backoff before the first attempt.
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("delivery canceled during backoff: %w", ctx.Err())
			case <-time.After(time.Duration(1<<uint(i-1)) * baseBackoff):
			}
		}

		lastErr = send(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("non-retriable: %w", perm.Err)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
