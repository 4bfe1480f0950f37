package policy

import (
	"context"

	"github.com/justapithecus/skylink/types"
)

// NoopPolicy counts events and discards them.
// Used when neither a journal nor an adapter is configured.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Record counts the event.
func (p *NoopPolicy) Record(_ *types.TransferEvent) {
	p.stats.incTotalEvents()
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
