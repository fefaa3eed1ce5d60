// Package source turns batch inputs into ordered sequences of
// fixed-size chunks without materializing the whole input at once.
//
// Two input shapes are supported: a plain finite slice, partitioned
// contiguously, and a Paginated data source exposing a count and an
// offset/limit window operation, where each chunk is fetched
// independently by offset when it is pulled.
package source

import (
	"context"
	"errors"
	"fmt"
)

// Source yields the successive chunks of one batch input.
// Next returns io.EOF once the input is exhausted. Sources are
// consumed by a single goroutine (the orchestrator's submit loop).
type Source interface {
	// Next returns the next chunk, in input order. The returned slice
	// is owned by the caller; the source never reuses it.
	Next(ctx context.Context) ([]any, error)
	// Total returns the number of input items when known, -1 otherwise.
	Total() int
}

// ChunkSizeError reports an invalid chunk size. It fails fast, before
// any worker starts.
type ChunkSizeError struct {
	Size int
}

func (e *ChunkSizeError) Error() string {
	return fmt.Sprintf("chunk size must be >= 1, got %d", e.Size)
}

// SourceExhaustionError reports a paginated source whose windows do not
// add up to its reported count. The batch aborts when it surfaces.
type SourceExhaustionError struct {
	Offset int
	Want   int
	Got    int
}

func (e *SourceExhaustionError) Error() string {
	return fmt.Sprintf("window at offset %d returned %d items, count implies %d",
		e.Offset, e.Got, e.Want)
}

// IsChunkSizeError returns true if err is a ChunkSizeError.
func IsChunkSizeError(err error) bool {
	var cse *ChunkSizeError
	return errors.As(err, &cse)
}

// IsSourceExhaustionError returns true if err is a SourceExhaustionError.
func IsSourceExhaustionError(err error) bool {
	var see *SourceExhaustionError
	return errors.As(err, &see)
}

// NumChunks returns the number of chunks a total of n items produces at
// chunk size c: ceil(n/c).
func NumChunks(n, c int) int {
	if n <= 0 {
		return 0
	}
	return (n + c - 1) / c
}
