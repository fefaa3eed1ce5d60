// Package fns registers the built-in batch functions shipped with the
// gristmill binaries. Importing the package (for side effects) makes
// them available to the worker registry; both the CLI and the worker
// binary import it so the two sides agree on the available names.
package fns

import (
	"fmt"
	"strings"

	"github.com/gristmill-io/gristmill/worker"
)

func init() {
	worker.Register("items/identity", Identity)
	worker.Register("lines/trim", TrimLines)
	worker.Register("lines/discard-empty", DiscardEmpty)
	worker.Register("lines/upper", UpperLines)
}

// Identity returns the chunk unchanged. Useful for smoke-testing a
// pipeline and for measuring pure transport overhead.
func Identity(_ *worker.Context, items []any) ([]any, error) {
	return items, nil
}

// TrimLines strips leading and trailing whitespace from string items.
// Non-string items pass through untouched.
func TrimLines(_ *worker.Context, items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			out[i] = strings.TrimSpace(s)
		} else {
			out[i] = item
		}
	}
	return out, nil
}

// DiscardEmpty drops blank string items, recording a warning for each
// discarded line so the merged report accounts for every input item.
func DiscardEmpty(wctx *worker.Context, items []any) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) == "" {
			wctx.Reporter().Warning("empty line discarded", item)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// UpperLines uppercases string items. A non-string item is a hard
// error: the batch aborts rather than silently passing bad input
// through a text transform.
func UpperLines(_ *worker.Context, items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not a string", i, item)
		}
		out[i] = strings.ToUpper(s)
	}
	return out, nil
}
