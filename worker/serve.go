package worker

import (
	"fmt"
	"io"

	"github.com/gristmill-io/gristmill/ipc"
	"github.com/gristmill-io/gristmill/types"
)

// Serve runs the worker loop: read a task frame, execute the named
// function over the chunk, answer with a result frame. Returns nil when
// the task stream ends cleanly (orchestrator closed our stdin), or the
// first transport error otherwise.
//
// A function failure is not a serve error: it crosses the boundary as a
// result frame carrying a WorkerFailure, and the loop keeps serving;
// whether the batch survives is the orchestrator's decision.
func Serve(r io.Reader, w io.Writer) error {
	decoder := ipc.NewFrameDecoder(r)
	encoder := ipc.NewFrameEncoder(w)
	wctx := NewContext()

	for {
		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read task: %w", err)
		}

		task, err := ipc.DecodeTask(payload)
		if err != nil {
			return fmt.Errorf("decode task: %w", err)
		}

		frame := &types.ResultFrame{
			Type: types.ResultFrameType,
			Seq:  task.Seq,
		}

		fn, ok := Lookup(task.Fn)
		if !ok {
			frame.Failure = &types.WorkerFailure{
				Fn:      task.Fn,
				Message: fmt.Sprintf("no function registered under %q", task.Fn),
			}
		} else {
			results, reports, err := runChunk(wctx, fn, task.Items)
			if err != nil {
				frame.Failure = &types.WorkerFailure{Fn: task.Fn, Message: err.Error()}
			} else {
				frame.Results = results
				frame.Reports = reports
			}
		}

		if err := encoder.WriteFrame(frame); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
}
