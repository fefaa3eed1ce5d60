// Package worker implements the worker-process side of the batch
// protocol: the batch function registry, the per-process execution
// context, and the serve loop that executes task frames arriving on
// stdin and answers with result frames on stdout.
package worker

import (
	"fmt"
	"sort"
	"sync"
)

// Fn is a batch transformation applied to one chunk of items.
// It receives the chunk in input order and must return its results in
// input order. Diagnostics go through wctx.Reporter(); an error aborts
// the whole batch on the orchestrator side.
type Fn func(wctx *Context, items []any) ([]any, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Fn{}
)

// Register makes fn available to the serve loop under name.
// Call from init in the package that defines the function, in every
// binary that needs it (the worker binary at minimum). Registering the
// same name twice panics.
func Register(name string, fn Fn) {
	if name == "" {
		panic("worker: Register with empty name")
	}
	if fn == nil {
		panic(fmt.Sprintf("worker: Register(%q) with nil function", name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("worker: Register(%q) called twice", name))
	}
	registry[name] = fn
}

// Lookup returns the function registered under name.
func Lookup(name string) (Fn, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered function names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
