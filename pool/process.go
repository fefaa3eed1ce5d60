package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/gristmill-io/gristmill/ipc"
	"github.com/gristmill-io/gristmill/types"
)

// Worker abstracts one worker endpoint for the scheduler.
// The production implementation is a child process speaking framed
// msgpack over its stdin/stdout pipes; tests inject in-process
// pipe-backed workers through WorkerFactory.
type Worker interface {
	// Start brings the worker up.
	Start(ctx context.Context) error
	// Submit sends one task frame. Exactly one Next call must follow
	// each successful Submit.
	Submit(task *types.TaskFrame) error
	// Next blocks until the worker answers the outstanding task.
	Next() (*types.ResultFrame, error)
	// CloseTasks signals that no further tasks will be submitted,
	// letting the worker exit cleanly.
	CloseTasks() error
	// Wait reaps the worker after CloseTasks or Kill.
	Wait() error
	// Kill tears the worker down immediately.
	Kill() error
}

// WorkerFactory creates the pool's workers. Used for test injection.
type WorkerFactory func(id int) Worker

// ProcessWorker runs the worker binary as a child process.
// Tasks go down its stdin, results come back on its stdout, stderr is
// captured for diagnostics.
type ProcessWorker struct {
	path    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	encoder *ipc.FrameEncoder
	decoder *ipc.FrameDecoder
}

// NewProcessWorker creates a worker that will exec the binary at path.
func NewProcessWorker(path string) *ProcessWorker {
	return &ProcessWorker{path: path}
}

// Start launches the worker process and wires up its pipes.
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.cmd = exec.CommandContext(ctx, w.path)

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	w.stdin = stdin

	stdout, err := w.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	w.stdout = stdout

	stderr, err := w.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	w.stderr = stderr

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	w.encoder = ipc.NewFrameEncoder(stdin)
	w.decoder = ipc.NewFrameDecoder(stdout)
	return nil
}

// Submit writes one task frame to the worker's stdin.
func (w *ProcessWorker) Submit(task *types.TaskFrame) error {
	return w.encoder.WriteFrame(task)
}

// Next reads the worker's answer to the outstanding task.
// An EOF here means the process died mid-task.
func (w *ProcessWorker) Next() (*types.ResultFrame, error) {
	payload, err := w.decoder.ReadFrame()
	if err == io.EOF {
		return nil, errors.New("worker exited before answering")
	}
	if err != nil {
		return nil, err
	}
	return ipc.DecodeResult(payload)
}

// CloseTasks closes the worker's stdin, signalling end of tasks.
func (w *ProcessWorker) CloseTasks() error {
	return w.stdin.Close()
}

// Wait reaps the worker process. The captured stderr is folded into the
// error when the process exited non-zero.
func (w *ProcessWorker) Wait() error {
	if w.cmd == nil {
		return errors.New("worker not started")
	}

	// Drain stderr before Wait closes the pipes.
	stderrBytes, _ := io.ReadAll(w.stderr)

	err := w.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := -1
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				code = status.ExitStatus()
			}
			if len(stderrBytes) > 0 {
				return fmt.Errorf("worker exited with code %d: %s", code, stderrBytes)
			}
			return fmt.Errorf("worker exited with code %d", code)
		}
		return fmt.Errorf("worker wait failed: %w", err)
	}
	return nil
}

// Kill terminates the worker process immediately.
func (w *ProcessWorker) Kill() error {
	if w.cmd != nil && w.cmd.Process != nil {
		err := w.cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	return nil
}
