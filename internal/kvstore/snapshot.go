package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

// ErrSnapshotTooLarge is returned by Load when the snapshot file exceeds
// Options.MaxSnapshotSize.
var ErrSnapshotTooLarge = errors.New("snapshot exceeds size limit")

// Save writes every bucket to SnapshotPath. The file is replaced atomically.
func (s *Store) Save(ctx context.Context) error {
	return s.instrument(ctx, OpSave, "", func(ctx context.Context) error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		err := s.awake()
		if err != nil {
			return err
		}

		snap := s.snapshot()

		err = s.persister.Save(ctx, s.opts.Dir, func() *Snapshot { return snap })
		if err != nil {
			return err
		}

		trace.SpanFromContext(ctx).SetAttributes(attribute.Int(attrBuckets, len(snap.Buckets)))
		s.logger.InfoContext(ctx, "snapshot saved",
			slog.String("path", s.SnapshotPath()),
			slog.Int("buckets", len(snap.Buckets)),
			slog.String("size", fileSize(s.SnapshotPath())))

		return nil
	})
}

// Load replaces the contents of the store with the snapshot at SnapshotPath.
// The store is left untouched when the file cannot be read or a bucket
// cannot be rebuilt, e.g. because of a duplicate key or the size limit.
func (s *Store) Load(ctx context.Context) error {
	return s.instrument(ctx, OpLoad, "", func(ctx context.Context) error {
		err := s.checkSnapshotSize()
		if err != nil {
			return err
		}

		forest := s.newForest()
		keys := 0

		err = s.persister.Load(ctx, s.opts.Dir, func(snap *Snapshot) error {
			for _, bucket := range snap.Buckets {
				if bucket.Name == "" {
					return ErrEmptyBucket
				}

				restoreErr := forest.Tree(bucket.Name).Restore(bucket.Entries)
				if restoreErr != nil {
					return fmt.Errorf("bucket %q: %w", bucket.Name, restoreErr)
				}

				keys += len(bucket.Entries)
			}

			return nil
		})
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.forest = forest
		s.hibernated = false
		s.mu.Unlock()

		trace.SpanFromContext(ctx).SetAttributes(attribute.Int(attrKeys, keys))
		s.logger.InfoContext(ctx, "snapshot loaded",
			slog.String("path", s.SnapshotPath()),
			slog.Int("keys", keys))

		return nil
	})
}

// Hibernate compresses every arena shard. Until Boot, all operations other
// than Boot, Load and Stats fail with ErrHibernated.
func (s *Store) Hibernate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hibernated {
		return
	}

	s.forest.Hibernate()
	s.hibernated = true

	s.logger.InfoContext(ctx, "store hibernated")
}

// Boot decompresses the arenas after Hibernate.
func (s *Store) Boot(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hibernated {
		return
	}

	s.forest.Boot()
	s.hibernated = false

	s.logger.InfoContext(ctx, "store booted")
}

// Hibernated reports whether the store is hibernated.
func (s *Store) Hibernated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hibernated
}

// snapshot must be called with mu held.
func (s *Store) snapshot() *Snapshot {
	names := s.forest.Names()
	snap := &Snapshot{Buckets: make([]Bucket, 0, len(names))}

	for _, name := range names {
		tree, _ := s.forest.Lookup(name)
		snap.Buckets = append(snap.Buckets, Bucket{Name: name, Entries: tree.Entries()})
	}

	return snap
}

func (s *Store) checkSnapshotSize() error {
	if s.opts.MaxSnapshotSize == 0 {
		return nil
	}

	info, err := os.Stat(s.SnapshotPath())
	if err != nil {
		return nil //nolint:nilerr // the persister reports the open failure.
	}

	size := safeconv.MustInt64ToUint64(info.Size())
	if size > s.opts.MaxSnapshotSize {
		return fmt.Errorf("%w: %s > %s", ErrSnapshotTooLarge,
			humanize.Bytes(size), humanize.Bytes(s.opts.MaxSnapshotSize))
	}

	return nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}

	return humanize.Bytes(safeconv.MustInt64ToUint64(info.Size()))
}
