package source

import (
	"context"
	"fmt"
	"io"
)

// Paginated is a query-like data source exposing a total count and an
// offset/limit retrieval operation. Implementations never need to hold
// more than one window resident at a time.
type Paginated interface {
	// Count returns the total number of items.
	Count(ctx context.Context) (int, error)
	// Window returns the items in [offset, offset+limit), in source order.
	Window(ctx context.Context, offset, limit int) ([]any, error)
}

// PaginatedSource chunks a Paginated input by offset/limit windows.
// Chunk boundaries are computed purely from the reported count and the
// chunk size: ceil(count/size) chunks, each fetched independently.
type PaginatedSource struct {
	src    Paginated
	size   int
	count  int
	offset int
	primed bool
}

// FromPaginated creates a chunk source over a paginated input.
// The count is resolved lazily on the first Next call.
func FromPaginated(src Paginated, size int) (*PaginatedSource, error) {
	if size < 1 {
		return nil, &ChunkSizeError{Size: size}
	}
	return &PaginatedSource{src: src, size: size, count: -1}, nil
}

// Next fetches the next window. A window shorter than the count implies
// yields a SourceExhaustionError: the source lied about its count and
// coverage cannot be trusted anymore.
func (s *PaginatedSource) Next(ctx context.Context) ([]any, error) {
	if !s.primed {
		count, err := s.src.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		s.count = count
		s.primed = true
	}
	if s.offset >= s.count {
		return nil, io.EOF
	}

	want := min(s.size, s.count-s.offset)
	window, err := s.src.Window(ctx, s.offset, want)
	if err != nil {
		return nil, fmt.Errorf("window at offset %d: %w", s.offset, err)
	}
	if len(window) != want {
		return nil, &SourceExhaustionError{Offset: s.offset, Want: want, Got: len(window)}
	}

	s.offset += want
	return window, nil
}

// Total returns the reported count, or -1 before the first Next call.
func (s *PaginatedSource) Total() int {
	if !s.primed {
		return -1
	}
	return s.count
}

// Prime resolves the count eagerly so Total is known before the first
// chunk is pulled, e.g. for sizing a progress bar.
func (s *PaginatedSource) Prime(ctx context.Context) (int, error) {
	if s.primed {
		return s.count, nil
	}
	count, err := s.src.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	s.count = count
	s.primed = true
	return count, nil
}
