// Package progress defines the progress sink driven by the batch
// orchestrator and a terminal bar implementation.
//
// Sinks are purely observational: nothing a sink does feeds back into
// batch control flow.
package progress

// Sink receives progress updates from a running batch.
type Sink interface {
	// Advance reports n more result items delivered.
	Advance(n int)
	// Finalize marks the batch complete. Not called on abort; the
	// sink's state at the moment of abort is left as-is.
	Finalize()
}

// Noop is a Sink that ignores everything.
type Noop struct{}

// Advance implements Sink.
func (Noop) Advance(int) {}

// Finalize implements Sink.
func (Noop) Finalize() {}
