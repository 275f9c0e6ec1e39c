package rbtree

import (
	"hash/fnv"
	"slices"
	"sync"
)

// minHibernationThreshold is the minimal reasonable default if division results in 0.
const minHibernationThreshold = 1000

// Forest is a set of named trees that share a fixed number of allocator
// shards. Each tree lives in the shard selected by the hash of its name, so
// related trees compact together and shards hibernate in parallel.
type Forest[K, V any] struct {
	shards  []*Allocator[K, V]
	trees   map[string]*Tree[K, V]
	compare func(a, b K) int
	opts    []Option
}

// NewForest creates a forest with shardCount allocators. A positive
// hibernationThreshold is split evenly across the shards.
func NewForest[K, V any](compare func(a, b K) int, shardCount, hibernationThreshold int, opts ...Option) *Forest[K, V] {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*Allocator[K, V], shardCount)

	for idx := range shardCount {
		shards[idx] = NewAllocator[K, V]()

		if hibernationThreshold > 0 {
			shards[idx].HibernationThreshold = hibernationThreshold / shardCount
			if shards[idx].HibernationThreshold == 0 {
				shards[idx].HibernationThreshold = minHibernationThreshold
			}
		}
	}

	return &Forest[K, V]{
		shards:  shards,
		trees:   map[string]*Tree[K, V]{},
		compare: compare,
		opts:    opts,
	}
}

// GetShard returns the allocator shard for the given tree name.
func (forest *Forest[K, V]) GetShard(name string) *Allocator[K, V] {
	hasher := fnv.New32a()
	hasher.Write([]byte(name))

	idx := int(hasher.Sum32() % uint32(len(forest.shards))) //nolint:gosec // shard count is small and positive.

	return forest.shards[idx]
}

// Shards returns all underlying allocators.
func (forest *Forest[K, V]) Shards() []*Allocator[K, V] {
	return forest.shards
}

// Tree returns the tree called name, creating it on first use.
func (forest *Forest[K, V]) Tree(name string) *Tree[K, V] {
	tree, ok := forest.trees[name]
	if !ok {
		tree = NewWithAllocator(forest.GetShard(name), forest.compare, forest.opts...)
		forest.trees[name] = tree
	}

	return tree
}

// Lookup returns the tree called name without creating it.
func (forest *Forest[K, V]) Lookup(name string) (*Tree[K, V], bool) {
	tree, ok := forest.trees[name]

	return tree, ok
}

// Names returns the names of all trees in ascending order.
func (forest *Forest[K, V]) Names() []string {
	names := make([]string, 0, len(forest.trees))

	for name := range forest.trees {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Drop clears the tree called name and forgets it. It reports whether the tree existed.
func (forest *Forest[K, V]) Drop(name string) bool {
	tree, ok := forest.trees[name]
	if !ok {
		return false
	}

	tree.Clear()
	delete(forest.trees, name)

	return true
}

// Hibernate hibernates all shards in parallel, regardless of their thresholds.
// No tree of the forest may be used until Boot.
func (forest *Forest[K, V]) Hibernate() {
	wg := sync.WaitGroup{}
	wg.Add(len(forest.shards))

	for _, shard := range forest.shards {
		go func(alloc *Allocator[K, V]) {
			defer wg.Done()

			// Force hibernation even if below threshold by temporarily setting threshold to 0.
			originalThreshold := alloc.HibernationThreshold
			alloc.HibernationThreshold = 0
			alloc.Hibernate()
			alloc.HibernationThreshold = originalThreshold
		}(shard)
	}

	wg.Wait()
}

// Boot boots all shards in parallel.
func (forest *Forest[K, V]) Boot() {
	wg := sync.WaitGroup{}
	wg.Add(len(forest.shards))

	for _, shard := range forest.shards {
		go func(alloc *Allocator[K, V]) {
			defer wg.Done()

			alloc.Boot()
		}(shard)
	}

	wg.Wait()
}
