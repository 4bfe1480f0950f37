// Package journal persists transfer events to a Lode dataset.
//
// Records are Hive-partitioned by system/day/kind and JSONL encoded:
//
//	datasets/skylink/partitions/system=1-1/day=2026-10-17/kind=read/...
//
// The filesystem backend writes under a local root; the S3 backend writes to
// any S3-compatible bucket.
package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/skylink/policy"
	"github.com/justapithecus/skylink/types"
)

// DefaultDataset is the dataset id used when Config.Dataset is empty.
const DefaultDataset = "skylink"

// Partition keys, in layout order.
const (
	PartitionSystem = "system"
	PartitionDay    = "day"
	PartitionKind   = "kind"
)

// Config holds journal configuration.
type Config struct {
	// Dataset is the Lode dataset id. Defaults to DefaultDataset.
	Dataset string
}

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// DeriveDay computes the partition day (YYYY-MM-DD, UTC) for a timestamp.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SystemPartition returns the partition value for an engine identity.
func SystemPartition(systemID, componentID uint8) string {
	return fmt.Sprintf("%d-%d", systemID, componentID)
}

// Client abstracts the journal storage client.
type Client interface {
	// WriteEvents writes a batch of events. Must preserve ordering within the batch.
	WriteEvents(ctx context.Context, events []*types.TransferEvent) error

	// Close releases client resources.
	Close() error
}

// Sink adapts a Client to policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new journal sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteEvents implements policy.Sink.
func (s *Sink) WriteEvents(ctx context.Context, events []*types.TransferEvent) error {
	return s.client.WriteEvents(ctx, events)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that records writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]*types.TransferEvent
	Closed  bool
	// Err, if non-nil, is returned by WriteEvents.
	Err error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteEvents implements Client.
func (c *StubClient) WriteEvents(_ context.Context, events []*types.TransferEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	c.Batches = append(c.Batches, events)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
