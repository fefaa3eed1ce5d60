package pool

import (
	"errors"
	"fmt"
)

// ErrTerminated is recorded when the pool is torn down by Terminate
// before any worker reported a failure.
var ErrTerminated = errors.New("worker pool terminated")

// PoolExhaustionError reports that the configured number of worker
// processes could not be started. It fails the invocation before any
// chunk is submitted; workers already started are killed.
type PoolExhaustionError struct {
	// Workers is the configured pool size.
	Workers int
	// Started is how many workers came up before the failure.
	Started int
	// Err is the underlying launch error.
	Err error
}

func (e *PoolExhaustionError) Error() string {
	return fmt.Sprintf("failed to start worker pool (%d of %d workers started): %v",
		e.Started, e.Workers, e.Err)
}

func (e *PoolExhaustionError) Unwrap() error {
	return e.Err
}

// WorkerExecutionError reports a batch function failure inside a
// worker. It is never retried and never isolated to the offending
// chunk: the whole batch aborts, because partial correctness cannot be
// assumed once one chunk failed the function's invariant.
type WorkerExecutionError struct {
	// Fn is the batch function name.
	Fn string
	// Chunk is the submission index of the failed chunk.
	Chunk int
	// Message is the worker-side error text.
	Message string
}

func (e *WorkerExecutionError) Error() string {
	return fmt.Sprintf("batch function %q failed on chunk %d: %s", e.Fn, e.Chunk, e.Message)
}

// IsPoolExhaustionError returns true if err is a PoolExhaustionError.
func IsPoolExhaustionError(err error) bool {
	var pe *PoolExhaustionError
	return errors.As(err, &pe)
}

// IsWorkerExecutionError returns true if err is a WorkerExecutionError.
func IsWorkerExecutionError(err error) bool {
	var we *WorkerExecutionError
	return errors.As(err, &we)
}
