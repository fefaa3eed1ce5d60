// Package reporter provides the diagnostic accumulator used on both
// sides of the worker boundary.
//
// Each worker process owns exactly one Reporter, drained after every
// chunk so nothing leaks into the next chunk executed by the same
// (reused) process. The orchestrator owns a separate Reporter per batch
// invocation and appends every arriving report batch into it. The two
// are never the same instance: workers share no memory with the
// orchestrator, so entries only cross the boundary inside result
// frames.
package reporter

import (
	"sync"

	"github.com/gristmill-io/gristmill/types"
)

// Reporter accumulates report entries during a unit of work.
// Safe for concurrent use, though each Reporter has a single owner.
type Reporter struct {
	mu      sync.Mutex
	entries []types.ReportEntry
}

// New creates an empty Reporter.
func New() *Reporter {
	return &Reporter{}
}

// Notice records an informational entry keyed to item.
// A nil item records a free-form entry.
func (r *Reporter) Notice(message string, item any) {
	r.Record(types.ReportEntry{Message: message, Item: item, Level: types.LevelNotice})
}

// Warning records a review-needed entry keyed to item.
func (r *Reporter) Warning(message string, item any) {
	r.Record(types.ReportEntry{Message: message, Item: item, Level: types.LevelWarning})
}

// Error records a processing-failure entry keyed to item.
func (r *Reporter) Error(message string, item any) {
	r.Record(types.ReportEntry{Message: message, Item: item, Level: types.LevelError})
}

// Record appends one entry to the buffer.
func (r *Reporter) Record(entry types.ReportEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Drain returns the buffered entries and clears the buffer.
// A second Drain without an intervening Record returns an empty slice.
func (r *Reporter) Drain() []types.ReportEntry {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()
	if entries == nil {
		return []types.ReportEntry{}
	}
	return entries
}

// Merge appends entries from another reporter's drained buffer,
// preserving their order.
func (r *Reporter) Merge(entries []types.ReportEntry) {
	if len(entries) == 0 {
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, entries...)
	r.mu.Unlock()
}

// Len returns the current buffer length.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns a copy of the buffer without clearing it.
func (r *Reporter) Snapshot() []types.ReportEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ReportEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
