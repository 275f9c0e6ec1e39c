package rbtree

import (
	"maps"
	"math"

	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

// Color is the one-bit balancing tag carried by every node.
type Color bool

const (
	// Red nodes contribute nothing to black-height.
	Red Color = false
	// Black nodes are counted by the black-height invariant. Nil is always Black.
	Black Color = true
)

// String returns the human-readable color name.
func (c Color) String() string {
	if c == Black {
		return "black"
	}

	return "red"
}

const (
	// nilNode is the sentinel handle. Slot zero is reserved and never handed out.
	nilNode uint32 = 0

	// maxNodeIdx is reserved so that node counts always fit into uint32.
	maxNodeIdx = math.MaxUint32
)

type node[K, V any] struct {
	key                 K
	value               V
	parent, left, right uint32
	color               Color
}

// Allocator is the node store of a Tree. It owns every node payload and hands
// out stable uint32 handles; parent and child fields are plain handles into the
// same storage. Several trees may share one Allocator.
type Allocator[K, V any] struct {
	storage []node[K, V]
	gaps    map[uint32]bool

	// HibernationThreshold is the minimum storage size that Hibernate compresses.
	HibernationThreshold int

	hibernated hibernatedState[K, V]
}

// NewAllocator creates an empty node store.
func NewAllocator[K, V any]() *Allocator[K, V] {
	return &Allocator[K, V]{
		storage: []node[K, V]{},
		gaps:    map[uint32]bool{},
	}
}

// Size returns the currently allocated number of slots, including the reserved Nil slot.
func (allocator *Allocator[K, V]) Size() int {
	return len(allocator.storage)
}

// Used returns the number of occupied slots, including the reserved Nil slot.
func (allocator *Allocator[K, V]) Used() int {
	allocator.mustBeAwake()

	return len(allocator.storage) - len(allocator.gaps)
}

// Clone copies an existing allocator. Handles stay valid in the copy.
func (allocator *Allocator[K, V]) Clone() *Allocator[K, V] {
	if allocator.storage == nil {
		panic("cannot clone a hibernated allocator")
	}

	clone := &Allocator[K, V]{
		HibernationThreshold: allocator.HibernationThreshold,
		storage:              make([]node[K, V], len(allocator.storage), cap(allocator.storage)),
		gaps:                 make(map[uint32]bool, len(allocator.gaps)),
	}
	copy(clone.storage, allocator.storage)
	maps.Copy(clone.gaps, allocator.gaps)

	return clone
}

func (allocator *Allocator[K, V]) mustBeAwake() {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}
}

// malloc creates a Red node with no relations and returns its handle.
func (allocator *Allocator[K, V]) malloc(key K, value V) uint32 {
	allocator.mustBeAwake()

	if len(allocator.gaps) > 0 {
		var nodeIdx uint32

		for nodeIdx = range allocator.gaps {
			break
		}

		delete(allocator.gaps, nodeIdx)
		allocator.storage[nodeIdx] = node[K, V]{key: key, value: value, color: Red}

		return nodeIdx
	}

	if len(allocator.storage) == 0 {
		// Zero is reserved for Nil.
		allocator.storage = append(allocator.storage, node[K, V]{color: Black})
	}

	nodeLen := len(allocator.storage)
	if nodeLen == maxNodeIdx {
		panic("the node store has reached the maximum value for uint32")
	}

	allocator.storage = append(allocator.storage, node[K, V]{key: key, value: value, color: Red})

	return safeconv.MustIntToUint32(nodeLen)
}

// free invalidates the handle and makes its slot reusable.
func (allocator *Allocator[K, V]) free(nodeIdx uint32) {
	allocator.mustBeAwake()

	if nodeIdx == nilNode {
		panic("node #0 is special and cannot be deallocated")
	}

	doAssert(!allocator.gaps[nodeIdx], "double free of node")

	allocator.storage[nodeIdx] = node[K, V]{}
	allocator.gaps[nodeIdx] = true
}

// Internal node attribute accessors. Nil reads as a Black, parentless leaf.

func (allocator *Allocator[K, V]) color(nodeIdx uint32) Color {
	if nodeIdx == nilNode {
		return Black
	}

	return allocator.storage[nodeIdx].color
}

func (allocator *Allocator[K, V]) setColor(nodeIdx uint32, c Color) {
	if nodeIdx == nilNode {
		doAssert(c == Black, "nil must stay black")

		return
	}

	allocator.storage[nodeIdx].color = c
}

func (allocator *Allocator[K, V]) parent(nodeIdx uint32) uint32 {
	return allocator.storage[nodeIdx].parent
}

func (allocator *Allocator[K, V]) left(nodeIdx uint32) uint32 {
	return allocator.storage[nodeIdx].left
}

func (allocator *Allocator[K, V]) right(nodeIdx uint32) uint32 {
	return allocator.storage[nodeIdx].right
}

// child returns the left child when isLeft is set, the right one otherwise.
func (allocator *Allocator[K, V]) child(nodeIdx uint32, isLeft bool) uint32 {
	if isLeft {
		return allocator.storage[nodeIdx].left
	}

	return allocator.storage[nodeIdx].right
}

func (allocator *Allocator[K, V]) isLeftChild(nodeIdx uint32) bool {
	return nodeIdx == allocator.storage[allocator.storage[nodeIdx].parent].left
}

// setLeft links childIdx under parentIdx and points the child back at its parent.
func (allocator *Allocator[K, V]) setLeft(parentIdx, childIdx uint32) {
	allocator.setChild(parentIdx, true, childIdx)
}

// setRight is the mirror of setLeft.
func (allocator *Allocator[K, V]) setRight(parentIdx, childIdx uint32) {
	allocator.setChild(parentIdx, false, childIdx)
}

func (allocator *Allocator[K, V]) setChild(parentIdx uint32, isLeft bool, childIdx uint32) {
	doAssert(parentIdx != nilNode, "nil cannot adopt children")

	if isLeft {
		allocator.storage[parentIdx].left = childIdx
	} else {
		allocator.storage[parentIdx].right = childIdx
	}

	if childIdx != nilNode {
		allocator.storage[childIdx].parent = parentIdx
	}
}

// orphan clears the parent of a node that becomes a root.
func (allocator *Allocator[K, V]) orphan(nodeIdx uint32) {
	if nodeIdx != nilNode {
		allocator.storage[nodeIdx].parent = nilNode
	}
}

func (allocator *Allocator[K, V]) key(nodeIdx uint32) K {
	return allocator.storage[nodeIdx].key
}

func (allocator *Allocator[K, V]) value(nodeIdx uint32) V {
	return allocator.storage[nodeIdx].value
}

func (allocator *Allocator[K, V]) setPayload(nodeIdx uint32, key K, value V) {
	allocator.storage[nodeIdx].key = key
	allocator.storage[nodeIdx].value = value
}

func (allocator *Allocator[K, V]) setValue(nodeIdx uint32, value V) {
	allocator.storage[nodeIdx].value = value
}

func doAssert(condition bool, what string) {
	if !condition {
		panic(&InvariantError{Invariant: "internal assertion", Detail: what})
	}
}
