package telemetry

import (
	"sync"

	"github.com/itohio/microclimate/pkg/sample"
	"github.com/itohio/microclimate/pkg/state"
)

// FakePublisher records published telemetry for test assertions.
// It is safe for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	readings []sample.Reading
	statuses []state.Status
	closed   bool

	// PublishError, if set, is returned by both publish methods.
	PublishError error
}

var _ Publisher = (*FakePublisher)(nil)

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishReading records the reading.
func (f *FakePublisher) PublishReading(r sample.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.readings = append(f.readings, r)
	return nil
}

// PublishStatus records the status.
func (f *FakePublisher) PublishStatus(st state.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.statuses = append(f.statuses, st)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Readings returns a copy of the recorded readings.
func (f *FakePublisher) Readings() []sample.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sample.Reading(nil), f.readings...)
}

// Statuses returns a copy of the recorded statuses.
func (f *FakePublisher) Statuses() []state.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]state.Status(nil), f.statuses...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
