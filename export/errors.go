// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package export

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown is returned when exporting through an exporter which has been shut down.
	ErrShutdown = errors.New("export: exporter is shut down")

	// ErrCircuitOpen is returned by [WithCircuitBreaker] while the breaker refuses exports.
	ErrCircuitOpen = errors.New("export: circuit breaker is open")
)

// RetryError is returned by [WithRetry] once every attempt has failed.
type RetryError struct {
	Attempts int
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e RetryError) Error() string {
	return fmt.Sprintf("export failed after %d attempt(s): %s", e.Attempts, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e RetryError) Unwrap() error {
	return e.Cause
}
