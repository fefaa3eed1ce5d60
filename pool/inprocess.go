package pool

import (
	"context"
	"errors"
	"io"

	"github.com/gristmill-io/gristmill/ipc"
	"github.com/gristmill-io/gristmill/types"
	"github.com/gristmill-io/gristmill/worker"
)

// InProcessWorker runs the real serve loop in a goroutine connected by
// in-memory pipes instead of a child process. It keeps the full framing
// protocol on the wire, only the process boundary is gone. Useful for
// tests and for single-process debugging, not for isolation.
type InProcessWorker struct {
	taskR, resR *io.PipeReader
	taskW, resW *io.PipeWriter

	encoder *ipc.FrameEncoder
	decoder *ipc.FrameDecoder

	done chan error
}

// NewInProcessWorker creates an in-process worker.
// The returned value satisfies WorkerFactory's contract:
//
//	cfg.Factory = func(int) pool.Worker { return pool.NewInProcessWorker() }
func NewInProcessWorker() *InProcessWorker {
	return &InProcessWorker{done: make(chan error, 1)}
}

// Start wires the pipes and launches the serve loop goroutine.
func (w *InProcessWorker) Start(_ context.Context) error {
	w.taskR, w.taskW = io.Pipe()
	w.resR, w.resW = io.Pipe()
	w.encoder = ipc.NewFrameEncoder(w.taskW)
	w.decoder = ipc.NewFrameDecoder(w.resR)

	go func() {
		err := worker.Serve(w.taskR, w.resW)
		_ = w.resW.CloseWithError(io.EOF)
		w.done <- err
	}()
	return nil
}

// Submit sends one task frame to the serve loop.
func (w *InProcessWorker) Submit(task *types.TaskFrame) error {
	return w.encoder.WriteFrame(task)
}

// Next reads the serve loop's answer to the outstanding task.
func (w *InProcessWorker) Next() (*types.ResultFrame, error) {
	payload, err := w.decoder.ReadFrame()
	if err == io.EOF {
		return nil, errors.New("worker exited before answering")
	}
	if err != nil {
		return nil, err
	}
	return ipc.DecodeResult(payload)
}

// CloseTasks signals end of tasks; the serve loop exits on EOF.
func (w *InProcessWorker) CloseTasks() error {
	return w.taskW.Close()
}

// Wait blocks until the serve loop goroutine finishes.
func (w *InProcessWorker) Wait() error {
	return <-w.done
}

// Kill unblocks the serve loop by failing both pipes.
func (w *InProcessWorker) Kill() error {
	_ = w.taskW.CloseWithError(ErrTerminated)
	_ = w.resR.CloseWithError(ErrTerminated)
	return nil
}
