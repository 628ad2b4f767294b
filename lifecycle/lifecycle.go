// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle collects actions which must run once a program's main
// work has returned, such as flushing and shutting down span pipelines.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Hook is an action run at a specific point of a program's lifetime.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	var errs []error
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiHook returns a [Hook] which runs every hook sequentially, in the
// given order, and joins their errors. A failing hook does not prevent
// the following ones from running.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

// Context holds the hooks registered for a single program run.
type Context struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers hook to run after the program's main work returns.
// Hooks run in reverse registration order, like deferred calls, so a
// component registered after its dependencies is shut down first.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.postRuns = append(c.postRuns, hook)
}

// PostRun returns a [Hook] running every hook registered via [Context.OnPostRun].
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()

	hooks := make(multiHook, 0, len(c.postRuns))
	for i := len(c.postRuns) - 1; i >= 0; i-- {
		hooks = append(hooks, c.postRuns[i])
	}
	return hooks
}

type key struct{}

var contextKey = &key{}

// NewContext returns a new [context.Context] containing the lifecycle [Context].
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey, c)
}

// FromContext tries to extract a lifecycle [Context] from the given [context.Context].
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(contextKey).(*Context)
	return lc, ok
}
