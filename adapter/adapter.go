// Package adapter defines the boundary for publishing transfer events to
// downstream systems.
//
// Adapters receive each event after it has been journaled. Delivery is
// at-most-once per flush: the event policy counts failures and does not
// re-publish.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/skylink/types"
)

// EventType identifies skylink transfer notifications to consumers.
const EventType = "transfer"

// DefaultBackoff is the first retry delay; each later retry doubles it.
const DefaultBackoff = 500 * time.Millisecond

// Adapter publishes transfer events to a downstream system.
type Adapter interface {
	// Publish sends one event downstream.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *types.TransferEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retrier runs an operation with exponential backoff.
type Retrier struct {
	// Name prefixes returned errors, e.g. "webhook".
	Name string
	// Retries is the number of attempts after the first.
	Retries int
	// Backoff is the delay before the first retry. Defaults to DefaultBackoff.
	Backoff time.Duration
	// Permanent reports whether an error must not be retried. May be nil.
	Permanent func(error) bool
}

// Do calls op until it succeeds, returns a permanent error, the attempts
// run out, or ctx ends.
func (r Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + r.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", r.Name, err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", r.Name, ctx.Err())
			case <-time.After(backoff << (i - 1)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if r.Permanent != nil && r.Permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", r.Name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", r.Name, attempts, lastErr)
}

// ErrNoURL is returned when an adapter is configured without a URL.
var ErrNoURL = errors.New("adapter requires a URL")
