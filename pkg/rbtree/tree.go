// Package rbtree provides a generic ordered map backed by a red-black tree.
//
// Nodes live in an arena (Allocator) and refer to each other by uint32
// handles, so parent and child links are plain values rather than owning
// pointers. Handle zero is the Nil sentinel: Black and parentless.
//
// A Tree is not safe for concurrent use. Callers that share one across
// goroutines must serialize every access themselves; iterators are
// invalidated by any Insert or Remove on the same tree.
package rbtree

import (
	"cmp"
	"fmt"
	"strings"
)

// Entry is a key-value pair as stored in the tree.
type Entry[K, V any] struct {
	Key   K `json:"key"   yaml:"key"`
	Value V `json:"value" yaml:"value"`
}

// Option tunes a Tree at construction.
type Option func(*settings)

type settings struct {
	maxSize   int
	selfCheck bool
}

// WithMaxSize limits the number of keys the tree accepts. Zero or a negative
// value means unlimited.
func WithMaxSize(maxSize int) Option {
	return func(s *settings) {
		s.maxSize = max(maxSize, 0)
	}
}

// WithSelfCheck validates every invariant after each mutation and panics with
// an *InvariantError on the first violation. Intended for tests and debugging.
func WithSelfCheck() Option {
	return func(s *settings) {
		s.selfCheck = true
	}
}

// Tree is a red-black tree keyed by a caller-supplied total order.
type Tree[K, V any] struct {
	// Nodes allocator.
	nodes *Allocator[K, V]

	compare func(a, b K) int

	// Root of the tree.
	root uint32

	// The minimum and maximum nodes under the tree.
	minNode, maxNode uint32

	// Number of nodes under root, including the root.
	count int

	settings settings
}

// New creates an empty tree ordered by compare, which must return a negative
// number, zero or a positive number when a is less than, equal to or greater
// than b. The order must stay stable for the lifetime of the tree.
func New[K, V any](compare func(a, b K) int, opts ...Option) *Tree[K, V] {
	return NewWithAllocator(NewAllocator[K, V](), compare, opts...)
}

// NewOrdered creates an empty tree over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any](opts ...Option) *Tree[K, V] {
	return New[K, V](cmp.Compare[K], opts...)
}

// NewWithAllocator creates an empty tree whose nodes live in the given allocator.
// The allocator may be shared with other trees.
func NewWithAllocator[K, V any](allocator *Allocator[K, V], compare func(a, b K) int, opts ...Option) *Tree[K, V] {
	tree := &Tree[K, V]{nodes: allocator, compare: compare}

	for _, opt := range opts {
		opt(&tree.settings)
	}

	return tree
}

// Allocator returns the bound node store.
func (tree *Tree[K, V]) Allocator() *Allocator[K, V] {
	return tree.nodes
}

// Len returns the number of keys in the tree.
func (tree *Tree[K, V]) Len() int {
	return tree.count
}

// MaxSize returns the configured capacity, zero when unlimited.
func (tree *Tree[K, V]) MaxSize() int {
	return tree.settings.maxSize
}

// Get returns the value stored under key. It never changes the tree.
func (tree *Tree[K, V]) Get(key K) (V, bool) {
	nodeIdx := tree.find(key)
	if nodeIdx == nilNode {
		var zero V

		return zero, false
	}

	return tree.nodes.value(nodeIdx), true
}

// Contains reports whether key is present.
func (tree *Tree[K, V]) Contains(key K) bool {
	return tree.find(key) != nilNode
}

// Update replaces the value of an existing key. The tree shape is not touched.
func (tree *Tree[K, V]) Update(key K, value V) error {
	nodeIdx := tree.find(key)
	if nodeIdx == nilNode {
		return &KeyError{Key: key, Err: ErrKeyNotFound}
	}

	tree.nodes.setValue(nodeIdx, value)

	return nil
}

// Set stores value under key, inserting the key when absent. It reports
// whether a new key was inserted. Set still honours WithMaxSize.
func (tree *Tree[K, V]) Set(key K, value V) (bool, error) {
	err := tree.Update(key, value)
	if err == nil {
		return false, nil
	}

	err = tree.Insert(key, value)
	if err != nil {
		return false, err
	}

	return true, nil
}

// Keys returns every key in ascending order.
func (tree *Tree[K, V]) Keys() []K {
	keys := make([]K, 0, tree.count)

	for key := range tree.All() {
		keys = append(keys, key)
	}

	return keys
}

// Entries returns every key-value pair in ascending key order.
func (tree *Tree[K, V]) Entries() []Entry[K, V] {
	entries := make([]Entry[K, V], 0, tree.count)

	for key, value := range tree.All() {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
	}

	return entries
}

// GetMany returns the entries for the requested keys that exist, in the order
// of the request. Missing keys are skipped.
func (tree *Tree[K, V]) GetMany(keys []K) []Entry[K, V] {
	entries := make([]Entry[K, V], 0, len(keys))

	for _, key := range keys {
		nodeIdx := tree.find(key)
		if nodeIdx == nilNode {
			continue
		}

		entries = append(entries, Entry[K, V]{Key: key, Value: tree.nodes.value(nodeIdx)})
	}

	return entries
}

// Restore inserts the given entries one by one through Insert. It stops at
// the first failure and returns it.
func (tree *Tree[K, V]) Restore(entries []Entry[K, V]) error {
	for _, entry := range entries {
		err := tree.Insert(entry.Key, entry.Value)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	return nil
}

// Clear removes all the nodes from the tree and returns their slots to the allocator.
func (tree *Tree[K, V]) Clear() {
	nodes := make([]uint32, 0, tree.count)

	for nodeIdx := tree.minNode; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
		nodes = append(nodes, nodeIdx)
	}

	for _, nodeIdx := range nodes {
		tree.nodes.free(nodeIdx)
	}

	tree.root = nilNode
	tree.minNode = nilNode
	tree.maxNode = nilNode
	tree.count = 0
}

// Clone performs a deep copy of the tree into a fresh allocator. Colors and
// shape are preserved.
func (tree *Tree[K, V]) Clone() *Tree[K, V] {
	clone := &Tree[K, V]{
		nodes:    NewAllocator[K, V](),
		compare:  tree.compare,
		count:    tree.count,
		settings: tree.settings,
	}

	nodeMap := map[uint32]uint32{nilNode: nilNode}

	for nodeIdx := tree.minNode; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
		cloneIdx := clone.nodes.malloc(tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx))
		clone.nodes.setColor(cloneIdx, tree.nodes.color(nodeIdx))
		nodeMap[nodeIdx] = cloneIdx
	}

	for nodeIdx := tree.minNode; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
		cloneIdx := nodeMap[nodeIdx]
		clone.nodes.setLeft(cloneIdx, nodeMap[tree.nodes.left(nodeIdx)])
		clone.nodes.setRight(cloneIdx, nodeMap[tree.nodes.right(nodeIdx)])
	}

	clone.root = nodeMap[tree.root]
	clone.minNode = nodeMap[tree.minNode]
	clone.maxNode = nodeMap[tree.maxNode]

	return clone
}

// Height returns the number of edges on the longest root-to-leaf path.
// Empty and single-node trees have height zero.
func (tree *Tree[K, V]) Height() int {
	if tree.root == nilNode {
		return 0
	}

	type frame struct {
		nodeIdx uint32
		depth   int
	}

	height := 0
	stack := []frame{{tree.root, 0}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		height = max(height, top.depth)

		for _, childIdx := range [2]uint32{tree.nodes.left(top.nodeIdx), tree.nodes.right(top.nodeIdx)} {
			if childIdx != nilNode {
				stack = append(stack, frame{childIdx, top.depth + 1})
			}
		}
	}

	return height
}

// BlackHeight returns the number of Black nodes on the leftmost path from the
// root down to Nil, the root included. On a valid tree every path agrees.
func (tree *Tree[K, V]) BlackHeight() int {
	blacks := 0

	for nodeIdx := tree.root; nodeIdx != nilNode; nodeIdx = tree.nodes.left(nodeIdx) {
		if tree.nodes.color(nodeIdx) == Black {
			blacks++
		}
	}

	return blacks
}

// Describe returns a textual description of the tree. Level 0 gives no
// detail, 1 the basic facts, 2 adds the shape, 3 and above lists every entry.
func (tree *Tree[K, V]) Describe(level int) string {
	if level <= 0 {
		return "No Details"
	}

	var sb strings.Builder

	rootState := "is empty"
	if tree.root != nilNode {
		rootState = fmt.Sprintf("holds %v", tree.nodes.key(tree.root))
	}

	fmt.Fprintf(&sb, "rbtree: %d keys, max size %d, root %s\n", tree.count, tree.settings.maxSize, rootState)

	if level >= 2 {
		fmt.Fprintf(&sb, "height %d, black height %d\n", tree.Height(), tree.BlackHeight())
	}

	if level >= 3 {
		for nodeIdx := tree.minNode; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
			fmt.Fprintf(&sb, "%v = %v (%s)\n",
				tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx), tree.nodes.color(nodeIdx))
		}
	}

	return sb.String()
}

func (tree *Tree[K, V]) checkInvariants() {
	if !tree.settings.selfCheck {
		return
	}

	err := tree.Validate()
	if err != nil {
		panic(err)
	}
}
