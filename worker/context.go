package worker

import "github.com/gristmill-io/gristmill/reporter"

// Context is the per-worker execution context handed to every batch
// function. One Context lives for the worker process's lifetime; its
// Reporter is the sink for all diagnostics the function emits and is
// drained by the serve loop after each chunk.
//
// The Context is passed explicitly through the call boundary rather
// than looked up from ambient process state, so functions stay testable
// with a plain NewContext().
type Context struct {
	reporter *reporter.Reporter
}

// NewContext creates a fresh execution context with an empty Reporter.
func NewContext() *Context {
	return &Context{}
}

// Reporter returns the context's Reporter, creating it lazily on first
// use.
func (c *Context) Reporter() *reporter.Reporter {
	if c.reporter == nil {
		c.reporter = reporter.New()
	}
	return c.reporter
}
