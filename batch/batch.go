// Package batch implements the orchestrator: the public entry point
// that wires a chunk source into the worker pool, merges every arriving
// report batch into the caller-visible reporter, drives the progress
// sink, and yields result items lazily as chunks complete.
//
// Results stream in completion order, not submission order: downstream
// consumers see partial results as soon as any single chunk finishes.
// Within a chunk, result order matches input order (the batch function
// is responsible for that).
package batch

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gristmill-io/gristmill/log"
	"github.com/gristmill-io/gristmill/metrics"
	"github.com/gristmill-io/gristmill/pool"
	"github.com/gristmill-io/gristmill/progress"
	"github.com/gristmill-io/gristmill/reporter"
	"github.com/gristmill-io/gristmill/source"
	"github.com/gristmill-io/gristmill/types"
)

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 1000

// State tracks the orchestrator's lifecycle. There is no transition
// back to StateRunning: a new invocation builds a fresh orchestrator,
// pool, and reporter.
type State int32

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota
	// StateRunning is the state while chunks are in flight.
	StateRunning
	// StateCompleted is the terminal state after a clean finish.
	StateCompleted
	// StateAborted is the terminal state after an error teardown.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config configures one batch invocation.
type Config struct {
	// Workers is the worker process count. Defaults to the host CPU
	// count.
	Workers int
	// ChunkSize is the number of items per chunk (default 1000).
	ChunkSize int
	// TotalHint is the expected item count, used only for progress
	// display when the source cannot report its own total. -1 when
	// unknown.
	TotalHint int
	// Progress receives progress updates. Defaults to progress.Noop.
	Progress progress.Sink
	// WorkerPath is the worker binary path (default: gristmill-worker).
	WorkerPath string
	// Factory overrides worker creation (for testing and in-process
	// runs).
	Factory pool.WorkerFactory
	// Logger receives orchestrator logs. If nil, a logger with batch
	// context fields is created on stderr.
	Logger *log.Logger
	// Collector records batch metrics. If nil, a collector is created
	// per invocation.
	Collector *metrics.Collector
}

// Orchestrator drives one batch invocation. Single use.
type Orchestrator struct {
	config    Config
	meta      types.BatchMeta
	logger    *log.Logger
	collector *metrics.Collector
	reporter  *reporter.Reporter
	state     atomic.Int32
}

// New creates an orchestrator for running fn over chunks of size
// cfg.ChunkSize with cfg.Workers workers.
func New(fn string, cfg Config) (*Orchestrator, error) {
	if fn == "" {
		return nil, fmt.Errorf("batch function name is required")
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize < 1 {
		return nil, &source.ChunkSizeError{Size: cfg.ChunkSize}
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Progress == nil {
		cfg.Progress = progress.Noop{}
	}

	meta := types.BatchMeta{
		BatchID:   uuid.New().String(),
		Fn:        fn,
		Workers:   cfg.Workers,
		ChunkSize: cfg.ChunkSize,
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch metadata: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(&meta)
	}
	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewCollector(meta.BatchID, fn)
	}

	o := &Orchestrator{
		config:    cfg,
		meta:      meta,
		logger:    logger,
		collector: collector,
		reporter:  reporter.New(),
	}
	o.state.Store(int32(StateIdle))
	return o, nil
}

// SetProgress replaces the progress sink. Only valid before Run; calls
// after the batch started are ignored.
func (o *Orchestrator) SetProgress(s progress.Sink) {
	if s != nil && o.State() == StateIdle {
		o.config.Progress = s
	}
}

// Meta returns the batch identity metadata.
func (o *Orchestrator) Meta() types.BatchMeta {
	return o.meta
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Reporter returns the orchestrator's reporter: the merge target for
// every report batch arriving from the workers. Callers read it after
// (or while) consuming the stream.
func (o *Orchestrator) Reporter() *reporter.Reporter {
	return o.reporter
}

// Metrics returns a snapshot of the batch metrics.
func (o *Orchestrator) Metrics() metrics.Snapshot {
	return o.collector.Snapshot()
}

// Run starts the batch over src and returns the lazily-consumed result
// stream. Run does not block beyond pool startup; consumption drives
// delivery. Each orchestrator runs exactly once.
func (o *Orchestrator) Run(ctx context.Context, src source.Source) (*Stream, error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("orchestrator already used (state %s)", o.State())
	}

	p, err := pool.New(ctx, pool.Config{
		Workers:    o.config.Workers,
		WorkerPath: o.config.WorkerPath,
		Factory:    o.config.Factory,
		Logger:     o.logger,
		Collector:  o.collector,
	})
	if err != nil {
		o.state.Store(int32(StateAborted))
		return nil, err
	}

	o.logger.Info("batch started", map[string]any{
		"total_hint": o.config.TotalHint,
	})

	stream := newStream()

	// Submit loop: pull chunks lazily and hand them to the pool in
	// source order. Stops at the first source error or pool failure.
	submitDone := make(chan error, 1)
	go func() {
		defer p.CloseSubmit()
		seq := 0
		for {
			chunk, err := src.Next(ctx)
			if err == io.EOF {
				submitDone <- nil
				return
			}
			if err != nil {
				submitDone <- fmt.Errorf("chunk source: %w", err)
				return
			}
			task := &types.TaskFrame{
				Type:  types.TaskFrameType,
				Seq:   seq,
				Fn:    o.meta.Fn,
				Items: chunk,
			}
			if err := p.Submit(ctx, task); err != nil {
				// The pool already failed; its error wins.
				submitDone <- nil
				return
			}
			seq++
		}
	}()

	// Merge loop: the single goroutine that mutates the orchestrator's
	// reporter and progress sink, strictly in batch arrival order.
	go func() {
		for rb := range p.Results() {
			o.reporter.Merge(rb.Reports)
			o.collector.AddReportsMerged(len(rb.Reports))
			o.config.Progress.Advance(len(rb.Results))
			for _, item := range rb.Results {
				if !stream.push(ctx, item) {
					o.abort(p, stream, ctx.Err())
					return
				}
			}
		}

		srcErr := <-submitDone
		if err := p.Err(); err != nil {
			o.abort(p, stream, err)
			return
		}
		if srcErr != nil {
			o.abort(p, stream, srcErr)
			return
		}
		if err := ctx.Err(); err != nil {
			o.abort(p, stream, err)
			return
		}

		o.config.Progress.Finalize()
		o.state.Store(int32(StateCompleted))
		o.logger.Info("batch completed", map[string]any{
			"metrics": o.collector.Snapshot(),
		})
		stream.finish(nil)
	}()

	return stream, nil
}

// abort performs the orderly teardown: log the diagnostic, terminate
// the pool (no new chunk starts after the error is observed; in-flight
// chunks are killed, not recovered), and surface the error through the
// stream. The progress sink is left as-is.
func (o *Orchestrator) abort(p *pool.Pool, stream *Stream, err error) {
	if err == nil {
		err = pool.ErrTerminated
	}
	o.logger.Error("batch aborted", map[string]any{
		"error": err.Error(),
	})
	p.Terminate()
	o.state.Store(int32(StateAborted))
	stream.finish(err)
}
