// Package policy controls how transfer events leave the engine.
//
// The engine records events while holding its own locks, so Record never
// blocks on I/O. Policies buffer events and deliver them to a Sink (the
// journal) and to any number of Publishers (redis, webhook) off the
// request path.
package policy

import (
	"context"
	"sync"

	"github.com/justapithecus/skylink/types"
)

// Policy defines the event delivery interface.
//
// Record satisfies ftpserver.EventSink. It may drop events when the buffer
// is full; drops are counted per kind.
type Policy interface {
	// Record buffers an event. Must not block.
	Record(e *types.TransferEvent)

	// Flush delivers all buffered events.
	// Called on shutdown and by interval/count triggers.
	Flush(ctx context.Context) error

	// Close stops background delivery, flushes, and closes the sink.
	Close() error

	// Stats returns an atomic snapshot of policy counters.
	Stats() Stats
}

// Publisher fans a single event out to an external system.
// adapter.Adapter satisfies this interface.
type Publisher interface {
	Publish(ctx context.Context, e *types.TransferEvent) error
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalEvents is the total number of events recorded.
	TotalEvents int64 `json:"total_events"`
	// EventsPersisted is the number of events written to the sink.
	EventsPersisted int64 `json:"events_persisted"`
	// EventsPublished is the number of successful publisher deliveries.
	EventsPublished int64 `json:"events_published"`
	// EventsDropped is the total number of events dropped.
	EventsDropped int64 `json:"events_dropped"`
	// DroppedByKind maps transfer kinds to drop counts.
	DroppedByKind map[types.TransferKind]int64 `json:"dropped_by_kind"`
	// BufferSize is the number of events currently buffered.
	BufferSize int64 `json:"buffer_size"`
	// FlushCount is the number of flush operations.
	FlushCount int64 `json:"flush_count"`
	// Errors is the count of sink and publisher failures.
	Errors int64 `json:"errors"`
}

// statsRecorder holds counters for a policy.
//
// Lock discipline: the Locked methods are called only while holding the
// owning policy's mu, so counters stay consistent with buffer state.
// NoopPolicy uses the self-locking methods.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByKind: make(map[types.TransferKind]int64),
		},
	}
}

func (r *statsRecorder) incTotalEvents() {
	r.mu.Lock()
	r.stats.TotalEvents++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods ---
// Caller must hold the policy's mu.

func (r *statsRecorder) incTotalEventsLocked() {
	r.stats.TotalEvents++
}

func (r *statsRecorder) incEventsPersistedLocked(n int64) {
	r.stats.EventsPersisted += n
}

func (r *statsRecorder) incEventsPublishedLocked(n int64) {
	r.stats.EventsPublished += n
}

func (r *statsRecorder) incEventsDroppedLocked(kind types.TransferKind) {
	r.stats.EventsDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incErrorsLocked(n int64) {
	r.stats.Errors += n
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

// snapshotLocked returns a copy of the counters with the given buffer size.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByKind = make(map[types.TransferKind]int64, len(r.stats.DroppedByKind))
	for k, v := range r.stats.DroppedByKind {
		s.DroppedByKind[k] = v
	}
	return s
}
