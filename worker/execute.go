package worker

import (
	"fmt"

	"github.com/gristmill-io/gristmill/types"
)

// runChunk executes fn over one chunk, pairing the function's results
// with everything the context's Reporter accumulated during the call.
//
// The Reporter is drained on every exit path, success or failure, so
// no partial diagnostics leak into the next chunk executed by this
// (reused) worker process. On failure the drained entries are
// discarded along with any partial results.
func runChunk(wctx *Context, fn Fn, items []any) (results []any, reports []types.ReportEntry, err error) {
	defer func() {
		drained := wctx.Reporter().Drain()
		if err == nil {
			reports = drained
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	results, err = fn(wctx, items)
	if err != nil {
		return nil, nil, err
	}
	return results, nil, nil
}
