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

	"github.com/sony/gobreaker"
)

type breakerOptions struct {
	name        string
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripAfter   uint32
	logHandler  slog.Handler
}

// BreakerOption configures [WithCircuitBreaker].
type BreakerOption interface {
	applyBreaker(*breakerOptions)
}

type breakerOptionFunc func(*breakerOptions)

func (f breakerOptionFunc) applyBreaker(bo *breakerOptions) {
	f(bo)
}

// BreakerName names the breaker in logs.
func BreakerName(name string) BreakerOption {
	return breakerOptionFunc(func(bo *breakerOptions) {
		bo.name = name
	})
}

// HalfOpenRequests sets how many exports are let through while half open.
func HalfOpenRequests(n uint32) BreakerOption {
	return breakerOptionFunc(func(bo *breakerOptions) {
		bo.maxRequests = n
	})
}

// OpenStateTimeout sets how long the breaker stays open before probing again.
func OpenStateTimeout(d time.Duration) BreakerOption {
	return breakerOptionFunc(func(bo *breakerOptions) {
		bo.timeout = d
	})
}

// CountResetInterval sets how often failure counts are cleared while closed.
func CountResetInterval(d time.Duration) BreakerOption {
	return breakerOptionFunc(func(bo *breakerOptions) {
		bo.interval = d
	})
}

// TripAfter opens the breaker after n consecutive failed exports.
func TripAfter(n uint32) BreakerOption {
	return breakerOptionFunc(func(bo *breakerOptions) {
		bo.tripAfter = n
	})
}

// BreakerLogHandler sets the handler used to log state changes.
func BreakerLogHandler(h slog.Handler) BreakerOption {
	return breakerOptionFunc(func(bo *breakerOptions) {
		bo.logHandler = h
	})
}

// Breaker is an [Exporter] guarded by a circuit breaker. While the
// breaker is open exports fail immediately with [ErrCircuitOpen] instead
// of waiting on an unavailable collector.
type Breaker struct {
	exp Exporter
	cb  *gobreaker.CircuitBreaker
}

// WithCircuitBreaker wraps exp in a circuit breaker.
func WithCircuitBreaker(exp Exporter, opts ...BreakerOption) *Breaker {
	bo := breakerOptions{
		name:        "exporter",
		maxRequests: 1,
		timeout:     30 * time.Second,
		tripAfter:   5,
		logHandler:  slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt.applyBreaker(&bo)
	}

	log := slog.New(bo.logHandler).With(slogfield.String("circuit_breaker", bo.name))

	return &Breaker{
		exp: exp,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        bo.name,
			MaxRequests: bo.maxRequests,
			Interval:    bo.interval,
			Timeout:     bo.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= bo.tripAfter
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					log.Error("circuit has been opened")
				case gobreaker.StateHalfOpen:
					log.Warn(
						"circuit is now half open and letting some exports through",
						slogfield.Uint32("max_exports_allowed_through", bo.maxRequests),
					)
				case gobreaker.StateClosed:
					log.Info("circuit has been closed")
				}
			},
		}),
	}
}

// Export implements the [Exporter] interface.
func (b *Breaker) Export(ctx context.Context, batch []record.Record) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.exp.Export(ctx, batch)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrCircuitOpen, err)
	}
	return err
}

// ForceFlush implements the [Exporter] interface.
func (b *Breaker) ForceFlush(ctx context.Context) error {
	return b.exp.ForceFlush(ctx)
}

// Shutdown implements the [Exporter] interface.
func (b *Breaker) Shutdown(ctx context.Context) error {
	return b.exp.Shutdown(ctx)
}

// Healthy reports false while the breaker is open.
func (b *Breaker) Healthy(ctx context.Context) bool {
	return b.cb.State() != gobreaker.StateOpen
}
