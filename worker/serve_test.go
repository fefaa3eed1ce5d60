package worker

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/gristmill-io/gristmill/ipc"
	"github.com/gristmill-io/gristmill/types"
)

func init() {
	Register("test/upper", func(wctx *Context, items []any) ([]any, error) {
		results := make([]any, len(items))
		for i, item := range items {
			s, _ := item.(string)
			wctx.Reporter().Notice("upcased", s)
			results[i] = strings.ToUpper(s)
		}
		return results, nil
	})
	Register("test/fail", func(wctx *Context, items []any) ([]any, error) {
		wctx.Reporter().Error("partial diagnostic before failure", nil)
		return nil, fmt.Errorf("refusing %d items", len(items))
	})
	Register("test/panic", func(_ *Context, _ []any) ([]any, error) {
		panic("unreachable item state")
	})
}

// serveTasks feeds task frames through Serve and decodes the results.
func serveTasks(t *testing.T, tasks ...*types.TaskFrame) []*types.ResultFrame {
	t.Helper()

	var in bytes.Buffer
	encoder := ipc.NewFrameEncoder(&in)
	for _, task := range tasks {
		if err := encoder.WriteFrame(task); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	var out bytes.Buffer
	if err := Serve(&in, &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var results []*types.ResultFrame
	decoder := ipc.NewFrameDecoder(&out)
	for {
		payload, err := decoder.ReadFrame()
		if err != nil {
			return results
		}
		frame, err := ipc.DecodeResult(payload)
		if err != nil {
			t.Fatalf("DecodeResult failed: %v", err)
		}
		results = append(results, frame)
	}
}

func TestServe_ExecutesChunkAndCollectsReports(t *testing.T) {
	results := serveTasks(t, &types.TaskFrame{
		Type:  types.TaskFrameType,
		Seq:   7,
		Fn:    "test/upper",
		Items: []any{"rue", "place"},
	})

	if len(results) != 1 {
		t.Fatalf("got %d result frames, want 1", len(results))
	}
	frame := results[0]
	if frame.Seq != 7 {
		t.Errorf("Seq = %d, want 7", frame.Seq)
	}
	if frame.Failure != nil {
		t.Fatalf("unexpected failure: %+v", frame.Failure)
	}
	if len(frame.Results) != 2 || frame.Results[0] != "RUE" || frame.Results[1] != "PLACE" {
		t.Errorf("Results = %v", frame.Results)
	}
	if len(frame.Reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(frame.Reports))
	}
	if frame.Reports[0].Item != "rue" {
		t.Errorf("Reports[0].Item = %v, want rue", frame.Reports[0].Item)
	}
}

func TestServe_FailureClearsReporterForNextChunk(t *testing.T) {
	// Same serve loop (same worker process): the failed chunk's partial
	// diagnostics must not surface with the next chunk's reports.
	results := serveTasks(t,
		&types.TaskFrame{Type: types.TaskFrameType, Seq: 0, Fn: "test/fail", Items: []any{"a"}},
		&types.TaskFrame{Type: types.TaskFrameType, Seq: 1, Fn: "test/upper", Items: []any{"b"}},
	)

	if len(results) != 2 {
		t.Fatalf("got %d result frames, want 2", len(results))
	}

	failed := results[0]
	if failed.Failure == nil {
		t.Fatal("first frame has no failure")
	}
	if failed.Failure.Fn != "test/fail" || !strings.Contains(failed.Failure.Message, "refusing 1 items") {
		t.Errorf("Failure = %+v", failed.Failure)
	}
	if len(failed.Results) != 0 || len(failed.Reports) != 0 {
		t.Errorf("failed frame carries results/reports: %+v", failed)
	}

	next := results[1]
	if next.Failure != nil {
		t.Fatalf("second frame failed: %+v", next.Failure)
	}
	if len(next.Reports) != 1 || next.Reports[0].Message != "upcased" {
		t.Errorf("second frame reports = %+v, leaked diagnostics from failed chunk?", next.Reports)
	}
}

func TestServe_PanicBecomesFailure(t *testing.T) {
	results := serveTasks(t, &types.TaskFrame{
		Type: types.TaskFrameType, Seq: 0, Fn: "test/panic", Items: []any{"x"},
	})

	if len(results) != 1 {
		t.Fatalf("got %d result frames, want 1", len(results))
	}
	failure := results[0].Failure
	if failure == nil || !strings.Contains(failure.Message, "unreachable item state") {
		t.Errorf("Failure = %+v", failure)
	}
}

func TestServe_UnknownFunction(t *testing.T) {
	results := serveTasks(t, &types.TaskFrame{
		Type: types.TaskFrameType, Seq: 0, Fn: "test/missing", Items: []any{},
	})

	if len(results) != 1 {
		t.Fatalf("got %d result frames, want 1", len(results))
	}
	failure := results[0].Failure
	if failure == nil || !strings.Contains(failure.Message, "no function registered") {
		t.Errorf("Failure = %+v", failure)
	}
}

func TestRegister_Validation(t *testing.T) {
	mustPanic := func(name string, fn Fn) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("Register(%q) did not panic", name)
			}
		}()
		Register(name, fn)
	}

	mustPanic("", func(*Context, []any) ([]any, error) { return nil, nil })
	mustPanic("test/nil-fn", nil)
	mustPanic("test/upper", func(*Context, []any) ([]any, error) { return nil, nil }) // duplicate
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names not sorted: %v", names)
		}
	}
	found := false
	for _, n := range names {
		if n == "test/upper" {
			found = true
		}
	}
	if !found {
		t.Error("test/upper missing from Names")
	}
}
