package journal

import (
	"context"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// newDataset opens a dataset with the journal layout and codec.
// Shared by the write and read paths so both agree on layout.
func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(PartitionSystem, PartitionDay, PartitionKind),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewReadDataset creates a Lode Dataset for reading the journal.
func NewReadDataset(cfg Config, factory lode.StoreFactory) (lode.Dataset, error) {
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return ds, nil
}

// NewReadDatasetFS creates a read Dataset with filesystem storage.
func NewReadDatasetFS(cfg Config, root string) (lode.Dataset, error) {
	return NewReadDataset(cfg, lode.NewFSFactory(root))
}

// NewReadDatasetS3 creates a read Dataset with S3 storage.
func NewReadDatasetS3(ctx context.Context, cfg Config, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(cfg, factory)
}

// snapshotMatchesFilter checks if any file in a snapshot sits under the
// given partition key=value. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so kind=read does not match kind=read_dir.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
