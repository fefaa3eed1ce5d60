package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gristmill-io/gristmill/types"
	"github.com/gristmill-io/gristmill/worker"
)

func init() {
	worker.Register("pool/double", func(_ *worker.Context, items []any) ([]any, error) {
		results := make([]any, len(items))
		for i, item := range items {
			n, _ := item.(int64) // msgpack round-trips small ints as int64
			results[i] = n * 2
		}
		return results, nil
	})
	worker.Register("pool/report-each", func(wctx *worker.Context, items []any) ([]any, error) {
		for _, item := range items {
			wctx.Reporter().Notice("seen", item)
		}
		return items, nil
	})
	worker.Register("pool/slow-first", func(_ *worker.Context, items []any) ([]any, error) {
		// The chunk containing 0 sleeps long enough that with more than
		// one worker a later chunk must complete first.
		for _, item := range items {
			if n, ok := item.(int64); ok && n == 0 {
				time.Sleep(150 * time.Millisecond)
			}
		}
		return items, nil
	})
	worker.Register("pool/fail-on-bad", func(_ *worker.Context, items []any) ([]any, error) {
		for _, item := range items {
			if s, ok := item.(string); ok && s == "bad" {
				return nil, errors.New("invariant violated")
			}
		}
		return items, nil
	})
}

func inProcessFactory(int) Worker { return NewInProcessWorker() }

func newTestPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p, err := New(context.Background(), Config{Workers: workers, Factory: inProcessFactory})
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	t.Cleanup(p.Terminate)
	return p
}

func intTask(seq int, fn string, values ...int64) *types.TaskFrame {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return &types.TaskFrame{Type: types.TaskFrameType, Seq: seq, Fn: fn, Items: items}
}

func TestPool_CompletesAllChunks(t *testing.T) {
	p := newTestPool(t, 3)
	ctx := context.Background()

	go func() {
		for seq := 0; seq < 10; seq++ {
			if err := p.Submit(ctx, intTask(seq, "pool/double", int64(seq), int64(seq+100))); err != nil {
				t.Errorf("Submit(%d) failed: %v", seq, err)
				break
			}
		}
		p.CloseSubmit()
	}()

	seen := map[int]bool{}
	for rb := range p.Results() {
		if seen[rb.Seq] {
			t.Errorf("chunk %d delivered twice", rb.Seq)
		}
		seen[rb.Seq] = true
		if len(rb.Results) != 2 {
			t.Errorf("chunk %d: %d results, want 2", rb.Seq, len(rb.Results))
		}
		// Chunk-internal order is preserved.
		if rb.Results[0] != int64(rb.Seq*2) {
			t.Errorf("chunk %d: first result = %v, want %d", rb.Seq, rb.Results[0], rb.Seq*2)
		}
	}
	if err := p.Err(); err != nil {
		t.Fatalf("pool error: %v", err)
	}
	if len(seen) != 10 {
		t.Errorf("completed %d chunks, want 10", len(seen))
	}
}

func TestPool_ReportsTravelWithTheirChunk(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	go func() {
		_ = p.Submit(ctx, intTask(0, "pool/report-each", 1, 2, 3))
		_ = p.Submit(ctx, intTask(1, "pool/report-each", 4))
		p.CloseSubmit()
	}()

	got := map[int]int{}
	for rb := range p.Results() {
		got[rb.Seq] = len(rb.Reports)
	}
	if got[0] != 3 || got[1] != 1 {
		t.Errorf("report counts per chunk = %v, want {0:3, 1:1}", got)
	}
}

func TestPool_UnorderedCompletion(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	go func() {
		_ = p.Submit(ctx, intTask(0, "pool/slow-first", 0))
		_ = p.Submit(ctx, intTask(1, "pool/slow-first", 1))
		p.CloseSubmit()
	}()

	var order []int
	for rb := range p.Results() {
		order = append(order, rb.Seq)
	}
	if len(order) != 2 {
		t.Fatalf("completed %d chunks, want 2", len(order))
	}
	if order[0] != 1 {
		t.Errorf("completion order = %v, want chunk 1 first (chunk 0 is slow)", order)
	}
}

func TestPool_WorkerFailureAbortsStream(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	var submitted int
	go func() {
		for seq := 0; seq < 50; seq++ {
			items := []any{"ok"}
			if seq == 5 {
				items = []any{"bad"}
			}
			task := &types.TaskFrame{Type: types.TaskFrameType, Seq: seq, Fn: "pool/fail-on-bad", Items: items}
			if err := p.Submit(ctx, task); err != nil {
				break
			}
			submitted++
		}
		p.CloseSubmit()
	}()

	var completed int
	for range p.Results() {
		completed++
	}

	err := p.Err()
	if !IsWorkerExecutionError(err) {
		t.Fatalf("pool error = %v, want WorkerExecutionError", err)
	}
	var we *WorkerExecutionError
	errors.As(err, &we)
	if we.Fn != "pool/fail-on-bad" || we.Chunk != 5 {
		t.Errorf("failure detail = %+v", we)
	}
	if completed >= 50 {
		t.Errorf("completed %d chunks, want fewer than submitted", completed)
	}
	// The submit loop stopped well short of the full input.
	if submitted >= 50 {
		t.Errorf("submitted all %d chunks despite failure", submitted)
	}
}

func TestPool_SubmitAfterTerminate(t *testing.T) {
	p := newTestPool(t, 1)
	p.Terminate()

	err := p.Submit(context.Background(), intTask(0, "pool/double", 1))
	if !errors.Is(err, ErrTerminated) {
		t.Errorf("Submit after Terminate = %v, want ErrTerminated", err)
	}
	for range p.Results() {
		t.Error("result delivered after Terminate")
	}
}

func TestPool_ExhaustionKillsStartedWorkers(t *testing.T) {
	killed := 0
	factory := func(id int) Worker {
		if id == 2 {
			return failingWorker{}
		}
		return &killCountingWorker{InProcessWorker: NewInProcessWorker(), killed: &killed}
	}

	_, err := New(context.Background(), Config{Workers: 3, Factory: factory})
	if !IsPoolExhaustionError(err) {
		t.Fatalf("New error = %v, want PoolExhaustionError", err)
	}
	var pe *PoolExhaustionError
	errors.As(err, &pe)
	if pe.Workers != 3 || pe.Started != 2 {
		t.Errorf("exhaustion detail = %+v", pe)
	}
	if killed != 2 {
		t.Errorf("killed %d started workers, want 2", killed)
	}
}

func TestPool_DefaultsToCPUCount(t *testing.T) {
	p, err := New(context.Background(), Config{Factory: inProcessFactory})
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	defer p.Terminate()
	if p.Size() < 1 {
		t.Errorf("Size = %d, want >= 1", p.Size())
	}
	p.CloseSubmit()
	for range p.Results() {
	}
}

// failingWorker refuses to start.
type failingWorker struct{}

func (failingWorker) Start(context.Context) error           { return fmt.Errorf("fork: resource temporarily unavailable") }
func (failingWorker) Submit(*types.TaskFrame) error         { return errors.New("not started") }
func (failingWorker) Next() (*types.ResultFrame, error)     { return nil, errors.New("not started") }
func (failingWorker) CloseTasks() error                     { return nil }
func (failingWorker) Wait() error                           { return nil }
func (failingWorker) Kill() error                           { return nil }

// killCountingWorker counts Kill calls on an otherwise real worker.
type killCountingWorker struct {
	*InProcessWorker
	killed *int
}

func (w *killCountingWorker) Kill() error {
	*w.killed++
	return w.InProcessWorker.Kill()
}
