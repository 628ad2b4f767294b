// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package export

import (
	"context"
	"slices"
	"sync"

	"github.com/z5labs/spanpipe/record"
)

// Memory keeps every exported batch in memory. It is mostly useful for
// tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	batches  [][]record.Record
	shutdown bool
}

// NewMemory returns an empty [Memory] exporter.
func NewMemory() *Memory {
	return &Memory{}
}

// Export implements the [Exporter] interface.
func (m *Memory) Export(ctx context.Context, batch []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return ErrShutdown
	}
	m.batches = append(m.batches, slices.Clone(batch))
	return nil
}

// ForceFlush implements the [Exporter] interface.
func (m *Memory) ForceFlush(ctx context.Context) error {
	return nil
}

// Shutdown implements the [Exporter] interface.
func (m *Memory) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdown = true
	return nil
}

// Batches returns every batch exported so far, oldest first.
func (m *Memory) Batches() [][]record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.batches)
}

// Records returns every exported record in export order.
func (m *Memory) Records() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []record.Record
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

// IsShutdown reports whether Shutdown has been called.
func (m *Memory) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.shutdown
}

// Reset forgets every recorded batch.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches = nil
}
