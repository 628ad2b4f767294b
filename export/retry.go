// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package export

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/z5labs/spanpipe/pkg/slogfield"
	"github.com/z5labs/spanpipe/record"

	"github.com/cenkalti/backoff/v4"
)

type retryOptions struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	maxAttempts     uint64
	retryable       func(error) bool
	logHandler      slog.Handler
}

// RetryOption configures [WithRetry].
type RetryOption interface {
	applyRetry(*retryOptions)
}

type retryOptionFunc func(*retryOptions)

func (f retryOptionFunc) applyRetry(ro *retryOptions) {
	f(ro)
}

// InitialInterval sets the wait before the first retry.
func InitialInterval(d time.Duration) RetryOption {
	return retryOptionFunc(func(ro *retryOptions) {
		ro.initialInterval = d
	})
}

// MaxInterval caps the wait between two attempts.
func MaxInterval(d time.Duration) RetryOption {
	return retryOptionFunc(func(ro *retryOptions) {
		ro.maxInterval = d
	})
}

// MaxElapsedTime bounds the total time spent retrying a single batch.
// Zero means retries are only bounded by the context and MaxAttempts.
func MaxElapsedTime(d time.Duration) RetryOption {
	return retryOptionFunc(func(ro *retryOptions) {
		ro.maxElapsedTime = d
	})
}

// MaxAttempts bounds the number of Export calls for a single batch,
// including the first one. Zero means unbounded.
func MaxAttempts(n uint64) RetryOption {
	return retryOptionFunc(func(ro *retryOptions) {
		ro.maxAttempts = n
	})
}

// RetryIf overrides which errors are worth retrying.
func RetryIf(f func(error) bool) RetryOption {
	return retryOptionFunc(func(ro *retryOptions) {
		ro.retryable = f
	})
}

// RetryLogHandler sets the handler used to log individual failed attempts.
func RetryLogHandler(h slog.Handler) RetryOption {
	return retryOptionFunc(func(ro *retryOptions) {
		ro.logHandler = h
	})
}

// Retrying is an [Exporter] which retries failed exports with
// exponential backoff.
type Retrying struct {
	exp  Exporter
	log  *slog.Logger
	opts retryOptions
}

// WithRetry wraps exp so failed exports are retried. Retrying is never
// enabled implicitly by the processors; callers opt in by wrapping
// their exporter.
func WithRetry(exp Exporter, opts ...RetryOption) *Retrying {
	ro := retryOptions{
		initialInterval: 5 * time.Second,
		maxInterval:     30 * time.Second,
		maxElapsedTime:  time.Minute,
		retryable:       isRetryable,
		logHandler:      slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt.applyRetry(&ro)
	}

	return &Retrying{
		exp:  exp,
		log:  slog.New(ro.logHandler),
		opts: ro,
	}
}

// Export implements the [Exporter] interface.
func (r *Retrying) Export(ctx context.Context, batch []record.Record) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.opts.initialInterval
	eb.MaxInterval = r.opts.maxInterval
	eb.MaxElapsedTime = r.opts.maxElapsedTime

	var b backoff.BackOff = eb
	if r.opts.maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, r.opts.maxAttempts-1)
	}

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			err := r.exp.Export(ctx, batch)
			if err == nil || r.opts.retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		},
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			r.log.WarnContext(
				ctx,
				"export attempt failed",
				slogfield.Int("attempt", attempts),
				slogfield.BatchSize(len(batch)),
				slogfield.Duration("retry_in", next),
				slogfield.Error(err),
			)
		},
	)
	if err == nil {
		return nil
	}
	return RetryError{
		Attempts: attempts,
		Cause:    err,
	}
}

// ForceFlush implements the [Exporter] interface.
func (r *Retrying) ForceFlush(ctx context.Context) error {
	return r.exp.ForceFlush(ctx)
}

// Shutdown implements the [Exporter] interface.
func (r *Retrying) Shutdown(ctx context.Context) error {
	return r.exp.Shutdown(ctx)
}

func isRetryable(err error) bool {
	return !errors.Is(err, ErrShutdown) && !errors.Is(err, context.Canceled)
}
