package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/skylink/log"
	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/types"
)

// Streaming defaults.
const (
	// DefaultMaxBuffer bounds the in-memory buffer when MaxBuffer is zero.
	DefaultMaxBuffer = 1024
	// DefaultPublishTimeout bounds a single publisher delivery.
	DefaultPublishTimeout = 5 * time.Second
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount triggers a flush after N events accumulate.
	// Zero means count-based flush is disabled.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero means interval-based flush is disabled.
	FlushInterval time.Duration

	// MaxBuffer is the maximum number of buffered events. Events recorded
	// while the buffer is full are dropped.
	MaxBuffer int

	// Publishers receive each event after the batch is persisted.
	Publishers []Publisher

	// PublishTimeout bounds each Publish call.
	PublishTimeout time.Duration

	// Logger is an optional logger for policy observability.
	Logger *log.Logger

	// Metrics is an optional collector for delivery counters.
	Metrics *metrics.Collector
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates a shutdown or explicit flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy delivers events in batches from a background goroutine.
//
//   - Bounded buffer: Record appends under mu and drops when full
//   - Count trigger: reaching FlushCount wakes the flush goroutine
//   - Interval trigger: the goroutine flushes every FlushInterval
//   - Termination trigger: Flush and Close flush synchronously
//
// A batch is written to the sink first, then published event by event.
// On sink failure the batch is restored ahead of newer events and retried
// on the next trigger; publisher failures are counted and not retried.
//
// Thread safety:
//   - mu guards buffer state and stats
//   - flushMu serializes flushes between the goroutine and Flush/Close
type StreamingPolicy struct {
	sink    Sink
	config  StreamingConfig
	logger  *log.Logger
	metrics *metrics.Collector

	mu     sync.Mutex
	buffer []*types.TransferEvent
	stats  *statsRecorder

	flushMu sync.Mutex

	// Per-trigger flush counts. Guarded by mu.
	flushByCount       int64
	flushByInterval    int64
	flushByTermination int64

	kick     chan struct{}
	stopCh   chan struct{}
	loopDone chan struct{}
	// stopped indicates Close has been called. Guarded by mu.
	stopped bool
}

// NewStreamingPolicy creates a new streaming policy and starts its flush goroutine.
// Returns error if config is invalid.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}
	if config.MaxBuffer <= 0 {
		config.MaxBuffer = DefaultMaxBuffer
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultPublishTimeout
	}
	if sink == nil {
		sink = DiscardSink{}
	}

	p := &StreamingPolicy{
		sink:     sink,
		config:   config,
		logger:   config.Logger,
		metrics:  config.Metrics,
		buffer:   make([]*types.TransferEvent, 0, 64),
		stats:    newStatsRecorder(),
		kick:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	go p.loop()

	return p, nil
}

// Record adds the event to the buffer, or drops it if the buffer is full
// or the policy is closed. Never blocks.
func (p *StreamingPolicy) Record(e *types.TransferEvent) {
	p.mu.Lock()
	p.stats.incTotalEventsLocked()

	if p.stopped || len(p.buffer) >= p.config.MaxBuffer {
		p.stats.incEventsDroppedLocked(e.Kind)
		p.mu.Unlock()
		p.metrics.IncEventDropped()
		return
	}

	p.buffer = append(p.buffer, e)
	shouldFlush := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	p.metrics.IncEventRecorded()

	if shouldFlush {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

// Flush delivers all buffered events (termination trigger).
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

// triggerFlush swaps the buffer under mu, writes outside mu and restores
// the batch on sink failure. Serialized by flushMu.
func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerTermination:
		p.flushByTermination++
	}
	p.stats.incFlushLocked()

	events := p.buffer
	if len(events) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*types.TransferEvent, 0, 64)
	p.mu.Unlock()

	if err := p.sink.WriteEvents(ctx, events); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked(1)
		p.buffer = append(events, p.buffer...)
		p.mu.Unlock()
		p.metrics.IncJournalWriteFailure()
		p.logFlushFailure(trigger, len(events), err)
		return err
	}
	p.metrics.IncJournalWriteSuccess()

	published, failed, pubErr := p.publish(ctx, events)

	p.mu.Lock()
	p.stats.incEventsPersistedLocked(int64(len(events)))
	p.stats.incEventsPublishedLocked(published)
	p.stats.incErrorsLocked(failed)
	p.mu.Unlock()

	p.logFlush(trigger, len(events), published, failed)

	return pubErr
}

// publish hands each event to every publisher in order.
func (p *StreamingPolicy) publish(ctx context.Context, events []*types.TransferEvent) (published, failed int64, err error) {
	if len(p.config.Publishers) == 0 {
		return 0, 0, nil
	}

	var errs []error
	for _, e := range events {
		for _, pub := range p.config.Publishers {
			pubCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
			perr := pub.Publish(pubCtx, e)
			cancel()
			if perr != nil {
				failed++
				errs = append(errs, perr)
				p.metrics.IncPublishFailure()
				p.logPublishFailure(e, perr)
				continue
			}
			published++
			p.metrics.IncPublishSuccess()
		}
	}
	return published, failed, errors.Join(errs...)
}

// Close stops the flush goroutine, flushes the remaining events and
// closes the sink. Idempotent: later calls only flush and close the sink.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	<-p.loopDone

	flushErr := p.Flush(context.Background())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns policy statistics.
// The buffer mutex is held while taking the snapshot.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(int64(len(p.buffer)))
}

// FlushTriggerStats returns per-trigger flush counts.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerTermination: p.flushByTermination,
	}
}

// loop runs count- and interval-triggered flushes until Close.
func (p *StreamingPolicy) loop() {
	defer close(p.loopDone)

	var tick <-chan time.Time
	if p.config.FlushInterval > 0 {
		ticker := time.NewTicker(p.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.kick:
			_ = p.triggerFlush(context.Background(), FlushTriggerCount)
		case <-tick:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()

			if hasData {
				// Errors are logged by triggerFlush; the batch stays buffered.
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// --- Logging helpers ---

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, events int, published, failed int64) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("event flush", map[string]any{
		"trigger":          string(trigger),
		"events":           events,
		"published":        published,
		"publish_failures": failed,
	})
}

func (p *StreamingPolicy) logFlushFailure(trigger FlushTrigger, events int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("event flush failed", map[string]any{
		"trigger": string(trigger),
		"events":  events,
		"error":   err.Error(),
	})
}

func (p *StreamingPolicy) logPublishFailure(e *types.TransferEvent, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("event publish failed", map[string]any{
		"event_id": e.EventID,
		"kind":     string(e.Kind),
		"error":    err.Error(),
	})
}

var _ Policy = (*StreamingPolicy)(nil)
