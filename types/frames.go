// Package types defines the wire-level types that cross the
// worker/orchestrator process boundary, plus batch identity metadata.
//
//nolint:revive // types is a common Go package naming convention
package types

// TaskFrameType is the type discriminant for task frames.
const TaskFrameType = "task"

// ResultFrameType is the type discriminant for result frames.
const ResultFrameType = "result"

// TaskFrame carries one chunk of work to a worker process.
//
// Items hold the chunk's input records as msgpack round-tripped values
// (maps, slices, scalars). Typed decoding is the batch function's
// concern, not the transport's.
type TaskFrame struct {
	// Type is always "task" for task frames.
	Type string `msgpack:"type"`
	// Seq is the submission index assigned by the orchestrator.
	// Used for pool bookkeeping only; it carries no ordering guarantee
	// for results.
	Seq int `msgpack:"seq"`
	// Fn is the registered name of the batch function to run.
	Fn string `msgpack:"fn"`
	// Items is the chunk payload, in input order.
	Items []any `msgpack:"items"`
}

// ResultFrame carries the outcome of executing one chunk back to the
// orchestrator: the function's results paired with every report entry
// the worker's reporter accumulated during that execution.
type ResultFrame struct {
	// Type is always "result" for result frames.
	Type string `msgpack:"type"`
	// Seq echoes the task's submission index.
	Seq int `msgpack:"seq"`
	// Results holds the function's output items, in the order the
	// function produced them.
	Results []any `msgpack:"results"`
	// Reports holds the diagnostics recorded while processing this
	// chunk. Empty when the function recorded nothing.
	Reports []ReportEntry `msgpack:"reports,omitempty"`
	// Failure is set when the batch function returned an error or
	// panicked. Results and Reports are empty in that case.
	Failure *WorkerFailure `msgpack:"failure,omitempty"`
}

// WorkerFailure describes a batch function failure inside a worker.
// It crosses the process boundary instead of a Go error value.
type WorkerFailure struct {
	// Fn is the name of the function that failed.
	Fn string `msgpack:"fn"`
	// Message is the worker-side error text.
	Message string `msgpack:"message"`
}
