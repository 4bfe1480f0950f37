package journal

import (
	"context"
	"fmt"
	"slices"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/skylink/types"
)

// Filter selects journal records. Empty fields match everything.
type Filter struct {
	// System is a SystemPartition value, e.g. "1-1".
	System string
	// Day is a YYYY-MM-DD partition day.
	Day string
	// Kind is a transfer kind.
	Kind types.TransferKind
	// Limit keeps only the most recent N events. Zero means no limit.
	Limit int
}

func (f Filter) matches(record map[string]any) bool {
	if f.System != "" && record[PartitionSystem] != f.System {
		return false
	}
	if f.Day != "" && record[PartitionDay] != f.Day {
		return false
	}
	if f.Kind != "" && record[PartitionKind] != string(f.Kind) {
		return false
	}
	return true
}

// QueryEvents reads transfer events matching filter, ordered by close time.
// Manifest paths prune snapshots; record fields are authoritative.
func QueryEvents(ctx context.Context, ds lode.Dataset, filter Filter) ([]*types.TransferEvent, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var events []*types.TransferEvent
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, PartitionSystem, filter.System) ||
			!snapshotMatchesFilter(snap, PartitionDay, filter.Day) ||
			!snapshotMatchesFilter(snap, PartitionKind, string(filter.Kind)) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindTransfer || !filter.matches(record) {
				continue
			}
			e, err := fromRecord(record)
			if err != nil {
				return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
			}
			events = append(events, e)
		}
	}

	// Records in one snapshot come back grouped by partition file.
	slices.SortStableFunc(events, func(a, b *types.TransferEvent) int {
		return eventTime(a).Compare(eventTime(b))
	})

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}
