package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricMutationsTotal = "rbmap.tree.mutations.total"
	metricTreeKeys       = "rbmap.tree.keys"
	metricTreeHeight     = "rbmap.tree.height"
	metricArenaSlots     = "rbmap.arena.slots"
	metricArenaUsed      = "rbmap.arena.used"

	attrTree    = "tree"
	attrShard   = "shard"
	attrOutcome = "outcome"
)

// Mutation outcomes reported by RecordMutation.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeMissing   = "missing"
	OutcomeFull      = "full"
)

// TreeStats is a point-in-time view of one named tree.
type TreeStats struct {
	Tree   string
	Keys   int
	Height int
}

// ArenaStats is a point-in-time view of one node store shard.
type ArenaStats struct {
	Shard int
	Slots int
	Used  int
}

// StatsSnapshot is what the gauge callback observes on every collection.
type StatsSnapshot struct {
	Trees  []TreeStats
	Arenas []ArenaStats
}

// TreeMetrics holds OTel instruments describing tree contents and shape.
type TreeMetrics struct {
	meter     metric.Meter
	mutations metric.Int64Counter
	keys      metric.Int64ObservableGauge
	height    metric.Int64ObservableGauge
	slots     metric.Int64ObservableGauge
	used      metric.Int64ObservableGauge
}

// NewTreeMetrics creates tree metric instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	builder := newMetricBuilder(mt)

	tm := &TreeMetrics{
		meter:     mt,
		mutations: builder.counter(metricMutationsTotal, "Tree mutations by operation and outcome", "{mutation}"),
		keys:      builder.gauge(metricTreeKeys, "Number of keys per tree", "{key}"),
		height:    builder.gauge(metricTreeHeight, "Longest root-to-leaf path per tree", "{edge}"),
		slots:     builder.gauge(metricArenaSlots, "Allocated node slots per arena shard", "{slot}"),
		used:      builder.gauge(metricArenaUsed, "Occupied node slots per arena shard", "{slot}"),
	}

	if builder.err != nil {
		return nil, builder.err
	}

	return tm, nil
}

// RecordMutation counts one insert, update or remove attempt.
// Safe to call on a nil receiver (no-op).
func (tm *TreeMetrics) RecordMutation(ctx context.Context, tree, op, outcome string) {
	if tm == nil {
		return
	}

	tm.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrTree, tree),
		attribute.String(attrOp, op),
		attribute.String(attrOutcome, outcome),
	))
}

// Observe registers source as the provider of the gauge values. source runs
// on every metric collection and must be safe for concurrent use.
func (tm *TreeMetrics) Observe(source func() StatsSnapshot) (metric.Registration, error) {
	return tm.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		snap := source()

		for _, st := range snap.Trees {
			attrs := metric.WithAttributes(attribute.String(attrTree, st.Tree))
			obs.ObserveInt64(tm.keys, int64(st.Keys), attrs)
			obs.ObserveInt64(tm.height, int64(st.Height), attrs)
		}

		for _, st := range snap.Arenas {
			attrs := metric.WithAttributes(attribute.Int(attrShard, st.Shard))
			obs.ObserveInt64(tm.slots, int64(st.Slots), attrs)
			obs.ObserveInt64(tm.used, int64(st.Used), attrs)
		}

		return nil
	}, tm.keys, tm.height, tm.slots, tm.used)
}
