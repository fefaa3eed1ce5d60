package batch

import (
	"context"
	"io"
	"sync"
)

// Stream is the lazily-consumed result sequence of one batch. Items
// arrive in chunk completion order; pulling from the stream is what
// drives delivery, so an unconsumed stream applies backpressure all the
// way to the workers.
type Stream struct {
	items  chan any
	closed chan struct{}
	once   sync.Once

	// err is set before items is closed; the channel close publishes it.
	err error
}

func newStream() *Stream {
	return &Stream{
		items:  make(chan any),
		closed: make(chan struct{}),
	}
}

// Next returns the next result item. It blocks until an item arrives,
// the batch finishes, or ctx is done. Returns io.EOF on clean
// completion, or the batch error after an abort. Items yielded before
// an abort remain valid; they are the subset processed before teardown.
func (s *Stream) Next(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-s.items:
		if ok {
			return item, nil
		}
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
}

// Collect drains the stream into a slice. On abort it returns the
// items delivered before the error, together with that error.
func (s *Stream) Collect(ctx context.Context) ([]any, error) {
	var out []any
	for {
		item, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}

// Close abandons the stream. The orchestrator observes it and tears
// the batch down; a consumer that stops reading without Close (or a
// cancelled context) would otherwise stall delivery forever.
func (s *Stream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// push delivers one item to the consumer. Returns false when the
// consumer is gone (context done or stream closed).
func (s *Stream) push(ctx context.Context, item any) bool {
	select {
	case s.items <- item:
		return true
	case <-ctx.Done():
		return false
	case <-s.closed:
		return false
	}
}

// finish publishes the terminal error (nil for clean completion) and
// closes the item channel.
func (s *Stream) finish(err error) {
	s.err = err
	close(s.items)
}
