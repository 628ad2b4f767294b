// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of tasks concurrently and waits for all of them.
package fixedpool

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/spanpipe/internal/try"
)

// Task is one unit of work handed to [Run].
type Task func(context.Context) error

// Run starts every task in its own goroutine and blocks until all of them
// have returned. A failing task does not cancel its siblings. Panics are
// reported as [try.PanicError]. All task errors are joined.
func Run(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if len(tasks) == 1 {
		return run(ctx, tasks[0])
	}

	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func() {
			defer wg.Done()
			errs[i] = run(ctx, task)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func run(ctx context.Context, task Task) error {
	return try.Call(func() error {
		return task(ctx)
	})
}
