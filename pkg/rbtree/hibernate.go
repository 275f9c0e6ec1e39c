package rbtree

import (
	"slices"
	"sync"
)

// growCapacityNumerator and growCapacityDenominator define the 3/2 headroom given to booted storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// Structural columns compressed while hibernated. Payloads stay resident.
const (
	columnParent = iota
	columnLeft
	columnRight
	columnColor
	structuralColumns
)

type payload[K, V any] struct {
	key   K
	value V
}

type hibernatedState[K, V any] struct {
	columns    [structuralColumns][]byte
	gaps       []byte
	payloads   []payload[K, V]
	storageLen int
	gapsLen    int
}

// Hibernated reports whether the allocator is currently hibernated.
func (allocator *Allocator[K, V]) Hibernated() bool {
	return allocator.storage == nil
}

// Hibernate compresses the structural part of the node store (relations and
// colors) with LZ4. Key and value payloads are kept as they are. Arenas smaller
// than HibernationThreshold are left untouched. Any use of a hibernated
// allocator other than Boot panics.
func (allocator *Allocator[K, V]) Hibernate() {
	if allocator.hibernated.storageLen > 0 || (allocator.storage == nil && allocator.gaps == nil) {
		panic("cannot hibernate an already hibernated Allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return
	}

	state := &allocator.hibernated
	state.storageLen = len(allocator.storage)

	if state.storageLen == 0 {
		allocator.storage = nil
		allocator.gaps = nil

		return
	}

	buffers := [structuralColumns][]uint32{}

	for idx := range buffers {
		buffers[idx] = make([]uint32, len(allocator.storage))
	}

	state.payloads = make([]payload[K, V], len(allocator.storage))

	// We deinterleave to achieve a better compression ratio.
	for idx, nd := range allocator.storage {
		buffers[columnParent][idx] = nd.parent
		buffers[columnLeft][idx] = nd.left
		buffers[columnRight][idx] = nd.right

		if nd.color == Black {
			buffers[columnColor][idx] = 1
		}

		state.payloads[idx] = payload[K, V]{key: nd.key, value: nd.value}
	}

	allocator.storage = nil

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx, buffer := range buffers {
		go func(bufIdx int, buf []uint32) {
			defer wg.Done()

			state.columns[bufIdx] = CompressUInt32Slice(buf)
		}(idx, buffer)
	}

	go func() {
		defer wg.Done()

		if len(allocator.gaps) > 0 {
			state.gapsLen = len(allocator.gaps)
			gapsBuffer := make([]uint32, 0, len(allocator.gaps))

			for nodeIdx := range allocator.gaps {
				gapsBuffer = append(gapsBuffer, nodeIdx)
			}

			slices.Sort(gapsBuffer)
			DeltaEncodeUInt32Slice(gapsBuffer)
			state.gaps = CompressUInt32Slice(gapsBuffer)
		}

		allocator.gaps = nil
	}()

	wg.Wait()
}

// Boot performs the opposite of Hibernate and restores the node store.
func (allocator *Allocator[K, V]) Boot() {
	state := &allocator.hibernated

	if allocator.storage == nil && state.storageLen == 0 {
		allocator.storage = []node[K, V]{}
		allocator.gaps = map[uint32]bool{}

		return
	}

	if state.storageLen == 0 {
		// Not hibernated.
		return
	}

	buffers := [structuralColumns][]uint32{}
	gapsBuffer := make([]uint32, state.gapsLen)

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx := range buffers {
		go func(bufIdx int) {
			defer wg.Done()

			buffers[bufIdx] = make([]uint32, state.storageLen)
			DecompressUInt32Slice(state.columns[bufIdx], buffers[bufIdx])
			state.columns[bufIdx] = nil
		}(idx)
	}

	go func() {
		defer wg.Done()

		if state.gapsLen > 0 {
			DecompressUInt32Slice(state.gaps, gapsBuffer)
			DeltaDecodeUInt32Slice(gapsBuffer)
		}

		state.gaps = nil
	}()

	wg.Wait()

	capSize := (state.storageLen * growCapacityNumerator) / growCapacityDenominator
	allocator.storage = make([]node[K, V], state.storageLen, capSize)

	for idx := range allocator.storage {
		nd := &allocator.storage[idx]
		nd.key = state.payloads[idx].key
		nd.value = state.payloads[idx].value
		nd.parent = buffers[columnParent][idx]
		nd.left = buffers[columnLeft][idx]
		nd.right = buffers[columnRight][idx]
		nd.color = Color(buffers[columnColor][idx] > 0)
	}

	allocator.gaps = make(map[uint32]bool, len(gapsBuffer))

	for _, nodeIdx := range gapsBuffer {
		allocator.gaps[nodeIdx] = true
	}

	state.payloads = nil
	state.storageLen = 0
	state.gapsLen = 0
}
