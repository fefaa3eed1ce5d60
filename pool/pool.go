// Package pool implements the worker pool scheduler: a fixed set of
// worker processes executing whole chunks, exposing the completed
// (results, reports) pairs as an unordered, lazily-consumed stream.
//
// Chunks are the unit of submission and of inter-process transfer.
// This amortizes serialization over the chunk and avoids per-item round
// trips to the orchestrator. Tasks are handed to workers in submission
// order, but workers pull whichever task is next available, so
// completion order carries no relation to submission order.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gristmill-io/gristmill/log"
	"github.com/gristmill-io/gristmill/metrics"
	"github.com/gristmill-io/gristmill/types"
)

// DefaultWorkerPath is the worker binary spawned when no factory is
// configured.
const DefaultWorkerPath = "gristmill-worker"

// Config configures the worker pool.
type Config struct {
	// Workers is the pool size. Defaults to the host CPU count.
	Workers int
	// WorkerPath is the worker binary path (default: gristmill-worker).
	// Ignored when Factory is set.
	WorkerPath string
	// Factory overrides worker creation (for testing and in-process
	// runs). If nil, workers are spawned as child processes.
	Factory WorkerFactory
	// Logger receives pool lifecycle logs. If nil, logging is disabled.
	Logger *log.Logger
	// Collector records pool metrics. Nil-safe.
	Collector *metrics.Collector
}

// ResultBatch pairs the results of one completed chunk with the reports
// its worker accumulated while processing it. Every submitted chunk
// yields exactly one ResultBatch, eventually, unless the batch aborts.
type ResultBatch struct {
	// Seq is the chunk's submission index (bookkeeping only).
	Seq int
	// Results are the function's output items, chunk-internal order
	// preserved.
	Results []any
	// Reports are the diagnostics recorded while processing the chunk.
	Reports []types.ReportEntry
}

// Pool owns a fixed set of workers and streams completed chunks back in
// completion order.
type Pool struct {
	workers   []Worker
	size      int
	logger    *log.Logger
	collector *metrics.Collector

	tasks   chan *types.TaskFrame
	results chan ResultBatch

	quit      chan struct{}
	quitOnce  sync.Once
	closeOnce sync.Once

	wg sync.WaitGroup

	mu  sync.Mutex
	err error
}

// New starts a pool of exactly cfg.Workers workers. If any worker fails
// to start, the ones already started are killed and a
// PoolExhaustionError is returned: the pool never runs degraded, and no
// chunk is submitted to a partial pool.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	size := cfg.Workers
	if size < 1 {
		size = runtime.NumCPU()
	}

	factory := cfg.Factory
	if factory == nil {
		path := cfg.WorkerPath
		if path == "" {
			path = DefaultWorkerPath
		}
		factory = func(int) Worker { return NewProcessWorker(path) }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	p := &Pool{
		size:      size,
		logger:    logger,
		collector: cfg.Collector,
		tasks:     make(chan *types.TaskFrame),
		results:   make(chan ResultBatch, size),
		quit:      make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		w := factory(i)
		if err := w.Start(ctx); err != nil {
			p.collector.IncWorkerLaunchFailure()
			for _, started := range p.workers {
				_ = started.Kill()
			}
			return nil, &PoolExhaustionError{Workers: size, Started: len(p.workers), Err: err}
		}
		p.collector.IncWorkerLaunchSuccess()
		p.workers = append(p.workers, w)
	}

	p.logger.Debug("worker pool started", map[string]any{"workers": size})

	for _, w := range p.workers {
		p.wg.Add(1)
		go p.runWorker(w)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	return p, nil
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Submit hands one chunk to the pool. It blocks until a worker is free
// to take the task, the pool fails, or ctx is done. Tasks are accepted
// in call order; Submit is single-consumer on the orchestrator side.
func (p *Pool) Submit(ctx context.Context, task *types.TaskFrame) error {
	select {
	case <-p.quit:
		return p.submitErr()
	default:
	}
	select {
	case <-p.quit:
		return p.submitErr()
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		p.collector.AddChunkSubmitted(len(task.Items))
		return nil
	}
}

func (p *Pool) submitErr() error {
	if err := p.Err(); err != nil {
		return err
	}
	return ErrTerminated
}

// CloseSubmit signals that no further chunks will be submitted. Workers
// drain and exit; the result stream closes once the last outstanding
// chunk completes.
func (p *Pool) CloseSubmit() {
	p.closeOnce.Do(func() { close(p.tasks) })
}

// Results returns the unordered stream of completed chunks. The channel
// closes after CloseSubmit once all workers have drained, or after a
// failure or Terminate. Check Err after the channel closes.
func (p *Pool) Results() <-chan ResultBatch {
	return p.results
}

// Err returns the first failure recorded by the pool, if any.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Terminate tears down all worker processes immediately and discards
// queued and unfinished tasks. No partial results are recovered from
// killed workers. Safe to call more than once and after completion.
func (p *Pool) Terminate() {
	p.fail(ErrTerminated)
	for _, w := range p.workers {
		_ = w.Kill()
	}
	p.logger.Debug("worker pool terminated", nil)
}

// fail records the first error and signals all workers to stop.
// Later errors lose: the first failure is the one the caller sees.
func (p *Pool) fail(err error) {
	p.quitOnce.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.quit)
	})
}

// runWorker is the per-worker loop: pull the next task, run it to a
// ResultBatch, repeat. One outstanding task per worker bounds the
// in-flight chunks at the pool size.
func (p *Pool) runWorker(w Worker) {
	defer p.wg.Done()

	for {
		// Re-check quit before pulling so no new chunk starts after a
		// failure has been observed.
		select {
		case <-p.quit:
			return
		default:
		}

		select {
		case <-p.quit:
			return
		case task, ok := <-p.tasks:
			if !ok {
				// Clean drain: no more tasks.
				_ = w.CloseTasks()
				_ = w.Wait()
				return
			}

			if err := w.Submit(task); err != nil {
				p.fail(fmt.Errorf("submit chunk %d: %w", task.Seq, err))
				_ = w.Kill()
				return
			}

			frame, err := w.Next()
			if err != nil {
				p.collector.IncIPCDecodeErrors()
				p.fail(fmt.Errorf("chunk %d: %w", task.Seq, err))
				_ = w.Kill()
				return
			}

			if frame.Failure != nil {
				p.collector.IncChunkFailed()
				p.fail(&WorkerExecutionError{
					Fn:      frame.Failure.Fn,
					Chunk:   frame.Seq,
					Message: frame.Failure.Message,
				})
				return
			}

			p.collector.AddChunkCompleted(len(frame.Results))

			select {
			case p.results <- ResultBatch{Seq: frame.Seq, Results: frame.Results, Reports: frame.Reports}:
			case <-p.quit:
				return
			}
		}
	}
}
