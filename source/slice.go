package source

import (
	"context"
	"io"
)

// SliceSource chunks a plain finite slice by contiguous partition.
type SliceSource struct {
	items []any
	size  int
	next  int
}

// FromSlice creates a chunk source over items with the given chunk size.
func FromSlice(items []any, size int) (*SliceSource, error) {
	if size < 1 {
		return nil, &ChunkSizeError{Size: size}
	}
	return &SliceSource{items: items, size: size}, nil
}

// Next returns the next contiguous chunk. The last chunk may be short.
func (s *SliceSource) Next(_ context.Context) ([]any, error) {
	if s.next >= len(s.items) {
		return nil, io.EOF
	}
	end := min(s.next+s.size, len(s.items))
	// Copy so chunk ownership can transfer to a worker without aliasing
	// the backing array of the input.
	chunk := make([]any, end-s.next)
	copy(chunk, s.items[s.next:end])
	s.next = end
	return chunk, nil
}

// Total returns the input length.
func (s *SliceSource) Total() int {
	return len(s.items)
}
