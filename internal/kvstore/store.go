// Package kvstore keeps named buckets of string keys, each bucket an ordered
// map backed by a red-black tree. All buckets share a sharded node arena that
// can be snapshotted to disk and hibernated while idle.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/persist"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// Store errors.
var (
	ErrHibernated  = errors.New("store is hibernated")
	ErrEmptyBucket = errors.New("bucket name must not be empty")
	ErrNoBucket    = errors.New("bucket not found")
)

const (
	spanPrefix = "store."

	attrBucket  = "store.bucket"
	attrKeys    = "store.keys"
	attrBuckets = "store.buckets"

	defaultBasename = "rbmap"
)

// Operation names used for spans, RED metrics and mutation counters.
const (
	OpPut    = "put"
	OpInsert = "insert"
	OpGet    = "get"
	OpDelete = "delete"
	OpRange  = "range"
	OpDrop   = "drop"
	OpSave   = "save"
	OpLoad   = "load"
)

// Options configures a Store. The zero value is usable: one shard, no size
// limit, JSON snapshots in the working directory and no telemetry.
type Options struct {
	// Tree settings applied to every bucket.
	MaxSize              int
	SelfCheck            bool
	Shards               int
	HibernationThreshold int

	// Snapshot settings.
	Dir             string
	Basename        string
	Codec           persist.Codec
	MaxSnapshotSize uint64

	Tracer      trace.Tracer
	RED         *observability.REDMetrics
	TreeMetrics *observability.TreeMetrics
	Logger      *slog.Logger
}

// Bucket is the serialized form of one bucket.
type Bucket struct {
	Name    string                         `json:"name"    yaml:"name"`
	Entries []rbtree.Entry[string, string] `json:"entries" yaml:"entries"`
}

// Snapshot is the on-disk form of the whole store.
type Snapshot struct {
	Buckets []Bucket `json:"buckets" yaml:"buckets"`
}

// BucketInfo summarizes one bucket.
type BucketInfo struct {
	Name   string `json:"name"`
	Keys   int    `json:"keys"`
	Height int    `json:"height"`
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	forest     *rbtree.Forest[string, string]
	hibernated bool

	opts         Options
	persister    *persist.Persister[Snapshot]
	tracer       trace.Tracer
	logger       *slog.Logger
	registration metric.Registration
}

// New creates an empty store. When opts.TreeMetrics is set, the store
// registers itself as the source of the tree gauges until Close.
func New(opts Options) (*Store, error) {
	if opts.Basename == "" {
		opts.Basename = defaultBasename
	}

	if opts.Codec == nil {
		opts.Codec = persist.NewJSONCodec()
	}

	if opts.Dir == "" {
		opts.Dir = "."
	}

	store := &Store{
		opts:      opts,
		persister: persist.NewPersister[Snapshot](opts.Basename, opts.Codec),
		tracer:    opts.Tracer,
		logger:    opts.Logger,
	}

	if store.tracer == nil {
		store.tracer = noop.NewTracerProvider().Tracer("")
	}

	if store.logger == nil {
		store.logger = slog.Default()
	}

	store.forest = store.newForest()

	if opts.TreeMetrics != nil {
		reg, err := opts.TreeMetrics.Observe(store.Stats)
		if err != nil {
			return nil, fmt.Errorf("register tree gauges: %w", err)
		}

		store.registration = reg
	}

	return store, nil
}

func (s *Store) newForest() *rbtree.Forest[string, string] {
	treeOpts := []rbtree.Option{rbtree.WithMaxSize(s.opts.MaxSize)}
	if s.opts.SelfCheck {
		treeOpts = append(treeOpts, rbtree.WithSelfCheck())
	}

	return rbtree.NewForest[string, string](strings.Compare, s.opts.Shards, s.opts.HibernationThreshold, treeOpts...)
}

// Close releases the gauge registration.
func (s *Store) Close() error {
	if s.registration == nil {
		return nil
	}

	err := s.registration.Unregister()
	if err != nil {
		return fmt.Errorf("unregister tree gauges: %w", err)
	}

	return nil
}

// SnapshotPath returns the file Save writes.
func (s *Store) SnapshotPath() string {
	return s.persister.Path(s.opts.Dir)
}

// Put stores value under key, replacing any previous value. It reports
// whether the key was new.
func (s *Store) Put(ctx context.Context, bucket, key, value string) (bool, error) {
	var created bool

	err := s.instrument(ctx, OpPut, bucket, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		err := s.awake()
		if err != nil {
			return err
		}

		created, err = s.forest.Tree(bucket).Set(key, value)
		s.recordMutation(ctx, bucket, OpPut, err)

		return err
	})

	return created, err
}

// Insert stores value under key and fails with rbtree.ErrDuplicateKey when
// the key already exists.
func (s *Store) Insert(ctx context.Context, bucket, key, value string) error {
	return s.instrument(ctx, OpInsert, bucket, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		err := s.awake()
		if err != nil {
			return err
		}

		err = s.forest.Tree(bucket).Insert(key, value)
		s.recordMutation(ctx, bucket, OpInsert, err)

		return err
	})
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, bucket, key string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := s.instrument(ctx, OpGet, bucket, func(_ context.Context) error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		err := s.awake()
		if err != nil {
			return err
		}

		tree, ok := s.forest.Lookup(bucket)
		if ok {
			value, found = tree.Get(key)
		}

		return nil
	})

	return value, found, err
}

// Delete removes key and fails with rbtree.ErrKeyNotFound when it is absent.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	return s.instrument(ctx, OpDelete, bucket, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		err := s.awake()
		if err != nil {
			return err
		}

		tree, ok := s.forest.Lookup(bucket)
		if !ok {
			err = &rbtree.KeyError{Key: key, Err: rbtree.ErrKeyNotFound}
		} else {
			err = tree.Remove(key)
		}

		s.recordMutation(ctx, bucket, OpDelete, err)

		return err
	})
}

// Range returns the entries whose key starts with prefix in ascending order.
// A positive limit caps the number of entries returned.
func (s *Store) Range(ctx context.Context, bucket, prefix string, limit int) ([]rbtree.Entry[string, string], error) {
	var entries []rbtree.Entry[string, string]

	err := s.instrument(ctx, OpRange, bucket, func(_ context.Context) error {
		s.mu.RLock()
		defer s.mu.RUnlock()

		err := s.awake()
		if err != nil {
			return err
		}

		tree, ok := s.forest.Lookup(bucket)
		if !ok {
			return nil
		}

		for key, value := range tree.Ascend(prefix) {
			if !strings.HasPrefix(key, prefix) {
				break
			}

			entries = append(entries, rbtree.Entry[string, string]{Key: key, Value: value})

			if limit > 0 && len(entries) == limit {
				break
			}
		}

		return nil
	})

	return entries, err
}

// DropBucket deletes a bucket with all of its keys.
func (s *Store) DropBucket(ctx context.Context, bucket string) error {
	return s.instrument(ctx, OpDrop, bucket, func(_ context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		err := s.awake()
		if err != nil {
			return err
		}

		if !s.forest.Drop(bucket) {
			return fmt.Errorf("%w: %q", ErrNoBucket, bucket)
		}

		return nil
	})
}

// Buckets lists every bucket in name order.
func (s *Store) Buckets() ([]BucketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.awake()
	if err != nil {
		return nil, err
	}

	names := s.forest.Names()
	infos := make([]BucketInfo, 0, len(names))

	for _, name := range names {
		tree, _ := s.forest.Lookup(name)
		infos = append(infos, BucketInfo{Name: name, Keys: tree.Len(), Height: tree.Height()})
	}

	return infos, nil
}

// Describe renders one bucket at the given detail level.
func (s *Store) Describe(bucket string, level int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.awake()
	if err != nil {
		return "", err
	}

	tree, ok := s.forest.Lookup(bucket)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoBucket, bucket)
	}

	return tree.Describe(level), nil
}

// Validate checks the red-black invariants of every bucket.
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.awake()
	if err != nil {
		return err
	}

	for _, name := range s.forest.Names() {
		tree, _ := s.forest.Lookup(name)

		err = tree.Validate()
		if err != nil {
			return fmt.Errorf("bucket %q: %w", name, err)
		}
	}

	return nil
}

// Stats reports per-bucket and per-shard sizes. While hibernated only key
// counts are available.
func (s *Store) Stats() observability.StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap observability.StatsSnapshot

	for _, name := range s.forest.Names() {
		tree, _ := s.forest.Lookup(name)
		st := observability.TreeStats{Tree: name, Keys: tree.Len()}

		if !s.hibernated {
			st.Height = tree.Height()
		}

		snap.Trees = append(snap.Trees, st)
	}

	if s.hibernated {
		return snap
	}

	for idx, shard := range s.forest.Shards() {
		snap.Arenas = append(snap.Arenas, observability.ArenaStats{Shard: idx, Slots: shard.Size(), Used: shard.Used()})
	}

	return snap
}

// Ready is an observability.ReadyCheck that fails while hibernated.
func (s *Store) Ready(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.awake()
}

// awake must be called with mu held.
func (s *Store) awake() error {
	if s.hibernated {
		return ErrHibernated
	}

	return nil
}

// instrument wraps fn in a span, RED metrics and a debug log line.
func (s *Store) instrument(ctx context.Context, op, bucket string, fn func(context.Context) error) error {
	if bucket == "" && op != OpSave && op != OpLoad {
		return ErrEmptyBucket
	}

	attrs := []attribute.KeyValue{}
	if bucket != "" {
		attrs = append(attrs, attribute.String(attrBucket, bucket))
	}

	ctx, span := s.tracer.Start(ctx, spanPrefix+op, trace.WithAttributes(attrs...))
	defer span.End()

	ctx = observability.ContextWithAttrs(ctx, slog.String("op", op), slog.String("bucket", bucket))

	if s.opts.RED != nil {
		done := s.opts.RED.TrackInflight(ctx, spanPrefix+op)
		defer done()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := observability.StatusOK

	if err != nil {
		status = observability.StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.DebugContext(ctx, "store operation failed", "error", err, "duration", elapsed)
	} else {
		s.logger.DebugContext(ctx, "store operation", "duration", elapsed)
	}

	if s.opts.RED != nil {
		s.opts.RED.RecordRequest(ctx, spanPrefix+op, status, elapsed)
	}

	return err
}

func (s *Store) recordMutation(ctx context.Context, bucket, op string, err error) {
	s.opts.TreeMetrics.RecordMutation(ctx, bucket, op, mutationOutcome(err))
}

func mutationOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeApplied
	case errors.Is(err, rbtree.ErrDuplicateKey):
		return observability.OutcomeDuplicate
	case errors.Is(err, rbtree.ErrKeyNotFound):
		return observability.OutcomeMissing
	case errors.Is(err, rbtree.ErrTreeFull):
		return observability.OutcomeFull
	default:
		return observability.StatusError
	}
}
