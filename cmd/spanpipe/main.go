// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/z5labs/spanpipe/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := app.NewCommand().ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}
