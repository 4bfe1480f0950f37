package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/skylink/types"
)

// Sink abstracts persistence for policies.
// The journal client implements it; StubSink records writes for tests.
type Sink interface {
	// WriteEvents persists a batch of transfer events.
	// Must preserve ordering within the batch.
	// Returns error on failure; the policy keeps the batch for retry.
	WriteEvents(ctx context.Context, events []*types.TransferEvent) error

	// Close releases any resources held by the sink.
	Close() error
}

// DiscardSink accepts and discards every batch.
// Used when events are only published, never journaled.
type DiscardSink struct{}

// WriteEvents discards events.
func (DiscardSink) WriteEvents(context.Context, []*types.TransferEvent) error { return nil }

// Close is a no-op.
func (DiscardSink) Close() error { return nil }

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// EventsWritten is the total count of events written.
	EventsWritten int64
	// EventBatches is the number of successful WriteEvents calls.
	EventBatches int64
	// Closed indicates whether Close was called.
	Closed bool

	// WrittenEvents stores all written events for inspection.
	WrittenEvents []*types.TransferEvent

	// ErrorOnWrite, if non-nil, is returned by WriteEvents.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{
		WrittenEvents: make([]*types.TransferEvent, 0),
	}
}

// WriteEvents records the events without persisting.
func (s *StubSink) WriteEvents(_ context.Context, events []*types.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.EventBatches++
	s.EventsWritten += int64(len(events))
	s.WrittenEvents = append(s.WrittenEvents, events...)
	return nil
}

// SetError sets (or clears, with nil) the error returned by WriteEvents.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Events returns a copy of the written events.
func (s *StubSink) Events() []*types.TransferEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.TransferEvent, len(s.WrittenEvents))
	copy(out, s.WrittenEvents)
	return out
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		EventsWritten: s.EventsWritten,
		EventBatches:  s.EventBatches,
		Closed:        s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	EventsWritten int64
	EventBatches  int64
	Closed        bool
}
