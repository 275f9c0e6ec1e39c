package rbtree //nolint:testpackage // tests require access to unexported fields.

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorFreeZero(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	alloc.malloc(1, 1)
	assert.PanicsWithValue(t, "node #0 is special and cannot be deallocated", func() { alloc.free(0) })
}

func TestAllocatorDoubleFree(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	nodeIdx := alloc.malloc(1, 1)
	alloc.free(nodeIdx)

	assert.Panics(t, func() { alloc.free(nodeIdx) })
}

func TestAllocatorReusesGaps(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[string, int]()
	first := alloc.malloc("a", 1)
	second := alloc.malloc("b", 2)

	assert.Equal(t, uint32(1), first)
	assert.Equal(t, uint32(2), second)
	assert.Equal(t, 3, alloc.Used())

	alloc.free(first)
	assert.Equal(t, 2, alloc.Used())
	assert.Empty(t, alloc.key(first), "freed slots are cleared")

	reused := alloc.malloc("c", 3)
	assert.Equal(t, first, reused)
	assert.Equal(t, 3, alloc.Size())
	assert.Equal(t, "c", alloc.key(reused))
	assert.Equal(t, Red, alloc.color(reused))
	assert.Equal(t, nilNode, alloc.parent(reused))
}

func TestAllocatorNilIsBlack(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	alloc.malloc(1, 1)

	assert.Equal(t, Black, alloc.color(nilNode))
	assert.NotPanics(t, func() { alloc.setColor(nilNode, Black) })
	assert.Panics(t, func() { alloc.setColor(nilNode, Red) })
	assert.Panics(t, func() { alloc.setChild(nilNode, true, 1) })
}

func TestAllocatorLinksBothWays(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	parent := alloc.malloc(2, 2)
	left := alloc.malloc(1, 1)
	right := alloc.malloc(3, 3)

	alloc.setLeft(parent, left)
	alloc.setRight(parent, right)

	assert.Equal(t, left, alloc.child(parent, true))
	assert.Equal(t, right, alloc.child(parent, false))
	assert.Equal(t, parent, alloc.parent(left))
	assert.Equal(t, parent, alloc.parent(right))
	assert.True(t, alloc.isLeftChild(left))
	assert.False(t, alloc.isLeftChild(right))

	alloc.orphan(left)
	assert.Equal(t, nilNode, alloc.parent(left))
}

func TestAllocatorClone(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	tree := NewWithAllocator(alloc, func(a, b int) int { return a - b })
	insertAll(t, tree, 1, 2, 3)
	require.NoError(t, tree.Remove(2))

	clone := alloc.Clone()
	assert.Equal(t, alloc.storage, clone.storage)
	assert.Equal(t, alloc.gaps, clone.gaps)

	clone.storage[1].key = 100
	assert.NotEqual(t, 100, alloc.storage[1].key)
}

func TestAllocatorHibernateBoot(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, string]()

	for idx := range 10000 {
		nodeIdx := alloc.malloc(idx, "v")
		nd := &alloc.storage[nodeIdx]
		nd.left = uint32(idx)
		nd.right = uint32(idx)
		nd.parent = uint32(idx)
		nd.color = Color(idx%2 == 0)
	}

	for idx := range 10000 {
		alloc.gaps[uint32(idx)] = true // Makes no sense, only to test.
	}

	alloc.Hibernate()
	assert.True(t, alloc.Hibernated())
	assert.PanicsWithValue(t, "cannot hibernate an already hibernated Allocator", alloc.Hibernate)
	assert.Nil(t, alloc.storage)
	assert.Nil(t, alloc.gaps)
	assert.Equal(t, 0, alloc.Size())
	assert.Equal(t, 10001, alloc.hibernated.storageLen)
	assert.Equal(t, 10000, alloc.hibernated.gapsLen)
	assert.PanicsWithValue(t, "hibernated allocators cannot be used", func() { alloc.Used() })
	assert.PanicsWithValue(t, "hibernated allocators cannot be used", func() { alloc.malloc(0, "") })
	assert.PanicsWithValue(t, "hibernated allocators cannot be used", func() { alloc.free(0) })
	assert.PanicsWithValue(t, "cannot clone a hibernated allocator", func() { alloc.Clone() })

	alloc.Boot()
	assert.False(t, alloc.Hibernated())
	assert.Equal(t, 0, alloc.hibernated.storageLen)
	assert.Equal(t, 0, alloc.hibernated.gapsLen)

	for nodeIdx := 1; nodeIdx <= 10000; nodeIdx++ {
		nd := alloc.storage[nodeIdx]
		assert.Equal(t, nodeIdx-1, nd.key)
		assert.Equal(t, "v", nd.value)
		assert.Equal(t, uint32(nodeIdx-1), nd.left)
		assert.Equal(t, uint32(nodeIdx-1), nd.right)
		assert.Equal(t, uint32(nodeIdx-1), nd.parent)
		assert.Equal(t, Color((nodeIdx-1)%2 == 0), nd.color)
		assert.True(t, alloc.gaps[uint32(nodeIdx-1)])
	}
}

func TestAllocatorHibernateBootEmpty(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	alloc.Hibernate()
	alloc.Boot()
	assert.NotNil(t, alloc.gaps)
	assert.Equal(t, 0, alloc.Size())
	assert.Equal(t, 0, alloc.Used())
}

func TestAllocatorHibernateBootThreshold(t *testing.T) {
	t.Parallel()

	alloc := NewAllocator[int, int]()
	alloc.malloc(1, 1)
	alloc.HibernationThreshold = 3
	assert.Equal(t, 3, alloc.Clone().HibernationThreshold)

	alloc.Hibernate()
	assert.False(t, alloc.Hibernated())

	alloc.Boot()
	alloc.malloc(2, 2)
	alloc.Hibernate()
	assert.Equal(t, 0, alloc.hibernated.gapsLen)
	assert.Equal(t, 3, alloc.hibernated.storageLen)

	alloc.Boot()
	assert.Equal(t, 3, alloc.Size())
	assert.Equal(t, 3, alloc.Used())
	assert.NotNil(t, alloc.gaps)
}

func TestTreeSurvivesHibernation(t *testing.T) {
	t.Parallel()

	tree := testNewIntTree()
	insertAll(t, tree, seqKeys(1, 2000)...)

	for key := 1; key <= 2000; key += 3 {
		require.NoError(t, tree.Remove(key))
	}

	before := tree.Entries()
	height := tree.Height()

	tree.Allocator().Hibernate()
	require.True(t, tree.Allocator().Hibernated())
	tree.Allocator().Boot()

	requireValid(t, tree)
	assert.Equal(t, before, tree.Entries())
	assert.Equal(t, height, tree.Height())

	// Gaps survive the round trip and get reused.
	size := tree.Allocator().Size()
	require.NoError(t, tree.Insert(1, 10))
	assert.Equal(t, size, tree.Allocator().Size())
}

func BenchmarkInsert(b *testing.B) {
	for range b.N {
		tree := testNewIntTree()

		for key := range 1000 {
			_ = tree.Insert(key, key)
		}
	}
}

func BenchmarkGet(b *testing.B) {
	tree := testNewIntTree()

	for key := range 100000 {
		_ = tree.Insert(key, key)
	}

	b.ResetTimer()

	for idx := range b.N {
		_, _ = tree.Get(idx % 100000)
	}
}
