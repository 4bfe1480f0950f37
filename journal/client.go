package journal

import (
	"context"
	"fmt"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/skylink/types"
)

// LodeClient is a Lode-backed implementation of Client.
type LodeClient struct {
	dataset lode.Dataset
	config  Config
}

// NewLodeClient creates a client with filesystem storage under root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return &LodeClient{dataset: ds, config: cfg}, nil
}

// WriteEvents writes a batch of events as one Lode snapshot.
// Each record carries its own partition keys, so a batch may span kinds and days.
func (c *LodeClient) WriteEvents(ctx context.Context, events []*types.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]any, 0, len(events))
	for _, e := range events {
		records = append(records, toRecordMap(e))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, fmt.Sprintf("%s/%d events", c.config.dataset(), len(events)))
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

var _ Client = (*LodeClient)(nil)
