package rbtree

// find walks from the root and returns the node holding key, or Nil.
func (tree *Tree[K, V]) find(key K) uint32 {
	nodeIdx := tree.root

	for nodeIdx != nilNode {
		comp := tree.compare(key, tree.nodes.key(nodeIdx))

		switch {
		case comp == 0:
			return nodeIdx
		case comp < 0:
			nodeIdx = tree.nodes.left(nodeIdx)
		default:
			nodeIdx = tree.nodes.right(nodeIdx)
		}
	}

	return nilNode
}

// findInsertionPoint performs the same descent as find but stops at the last
// non-nil node visited. wentLeft tells which side of parent the key belongs
// to. When the key is already present, exists is set and parent is its node.
// An empty tree yields a Nil parent.
func (tree *Tree[K, V]) findInsertionPoint(key K) (parent uint32, wentLeft, exists bool) {
	parent = nilNode
	nodeIdx := tree.root

	for nodeIdx != nilNode {
		parent = nodeIdx
		comp := tree.compare(key, tree.nodes.key(nodeIdx))

		switch {
		case comp == 0:
			return nodeIdx, false, true
		case comp < 0:
			wentLeft = true
			nodeIdx = tree.nodes.left(nodeIdx)
		default:
			wentLeft = false
			nodeIdx = tree.nodes.right(nodeIdx)
		}
	}

	return parent, wentLeft, false
}

// findGE finds a node whose key >= key. The second return value is true iff
// the node's key equals key. Returns (Nil, false) if all keys are < key.
func (tree *Tree[K, V]) findGE(key K) (uint32, bool) {
	nodeIdx := tree.root

	for nodeIdx != nilNode {
		comp := tree.compare(key, tree.nodes.key(nodeIdx))

		switch {
		case comp == 0:
			return nodeIdx, true
		case comp < 0:
			if tree.nodes.left(nodeIdx) == nilNode {
				return nodeIdx, false
			}

			nodeIdx = tree.nodes.left(nodeIdx)
		default:
			if tree.nodes.right(nodeIdx) == nilNode {
				return tree.next(nodeIdx), false
			}

			nodeIdx = tree.nodes.right(nodeIdx)
		}
	}

	return nilNode, false
}

// Min returns the smallest entry.
func (tree *Tree[K, V]) Min() (K, V, bool) {
	return tree.entryAt(tree.minNode)
}

// Max returns the largest entry.
func (tree *Tree[K, V]) Max() (K, V, bool) {
	return tree.entryAt(tree.maxNode)
}

// Ceiling returns the smallest entry whose key is >= key.
func (tree *Tree[K, V]) Ceiling(key K) (K, V, bool) {
	nodeIdx, _ := tree.findGE(key)

	return tree.entryAt(nodeIdx)
}

// Floor returns the largest entry whose key is <= key.
func (tree *Tree[K, V]) Floor(key K) (K, V, bool) {
	nodeIdx, exact := tree.findGE(key)

	switch {
	case exact:
	case nodeIdx != nilNode:
		nodeIdx = tree.prev(nodeIdx)
	default:
		nodeIdx = tree.maxNode
	}

	return tree.entryAt(nodeIdx)
}

func (tree *Tree[K, V]) entryAt(nodeIdx uint32) (K, V, bool) {
	if nodeIdx == nilNode {
		var (
			key   K
			value V
		)

		return key, value, false
	}

	return tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx), true
}

// next returns the in-order successor of nodeIdx, or Nil.
func (tree *Tree[K, V]) next(nodeIdx uint32) uint32 {
	if tree.nodes.right(nodeIdx) != nilNode {
		return tree.minimum(tree.nodes.right(nodeIdx))
	}

	for {
		parentIdx := tree.nodes.parent(nodeIdx)
		if parentIdx == nilNode {
			return nilNode
		}

		if tree.nodes.isLeftChild(nodeIdx) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}

// prev returns the in-order predecessor of nodeIdx, or Nil.
func (tree *Tree[K, V]) prev(nodeIdx uint32) uint32 {
	if tree.nodes.left(nodeIdx) != nilNode {
		return tree.maximum(tree.nodes.left(nodeIdx))
	}

	for {
		parentIdx := tree.nodes.parent(nodeIdx)
		if parentIdx == nilNode {
			return nilNode
		}

		if !tree.nodes.isLeftChild(nodeIdx) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}
}

// minimum returns the leftmost node of the subtree rooted at nodeIdx.
func (tree *Tree[K, V]) minimum(nodeIdx uint32) uint32 {
	for nodeIdx != nilNode && tree.nodes.left(nodeIdx) != nilNode {
		nodeIdx = tree.nodes.left(nodeIdx)
	}

	return nodeIdx
}

// maximum returns the rightmost node of the subtree rooted at nodeIdx.
func (tree *Tree[K, V]) maximum(nodeIdx uint32) uint32 {
	for nodeIdx != nilNode && tree.nodes.right(nodeIdx) != nilNode {
		nodeIdx = tree.nodes.right(nodeIdx)
	}

	return nodeIdx
}
