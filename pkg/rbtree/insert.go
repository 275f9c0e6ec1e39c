package rbtree

// Insert adds key with value. It fails with ErrDuplicateKey when the key is
// already present and with ErrTreeFull when the tree reached its maximum
// size; in both cases the tree is left unchanged.
func (tree *Tree[K, V]) Insert(key K, value V) error {
	parent, wentLeft, exists := tree.findInsertionPoint(key)
	if exists {
		return &KeyError{Key: key, Err: ErrDuplicateKey}
	}

	if tree.settings.maxSize > 0 && tree.count >= tree.settings.maxSize {
		return &KeyError{Key: key, Err: ErrTreeFull}
	}

	nodeIdx := tree.attach(parent, wentLeft, key, value)
	tree.insertFixup(nodeIdx)
	tree.checkInvariants()

	return nil
}

// attach allocates a new Red leaf and links it under parent, or as the root.
func (tree *Tree[K, V]) attach(parent uint32, wentLeft bool, key K, value V) uint32 {
	nodeIdx := tree.nodes.malloc(key, value)
	tree.count++

	if parent == nilNode {
		tree.root = nodeIdx
		tree.minNode = nodeIdx
		tree.maxNode = nodeIdx

		return nodeIdx
	}

	tree.nodes.setChild(parent, wentLeft, nodeIdx)

	if wentLeft && parent == tree.minNode {
		tree.minNode = nodeIdx
	} else if !wentLeft && parent == tree.maxNode {
		tree.maxNode = nodeIdx
	}

	return nodeIdx
}

// insertFixup walks upward from a freshly attached Red node and repairs
// red-red violations.
func (tree *Tree[K, V]) insertFixup(nodeIdx uint32) {
	nodes := tree.nodes

	for {
		parent := nodes.parent(nodeIdx)

		// Case 1: N is at the root.
		if parent == nilNode {
			nodes.setColor(nodeIdx, Black)

			break
		}

		// Case 2: the parent is black, so the tree already
		// satisfies the RB properties.
		if nodes.color(parent) == Black {
			break
		}

		// A red parent is never the root, so the grandparent exists.
		grandparent := nodes.parent(parent)
		doAssert(grandparent != nilNode, "red root")

		parentIsLeft := nodes.isLeftChild(parent)
		uncle := nodes.child(grandparent, !parentIsLeft)

		// Case 3: parent and uncle are both red.
		// Then paint both black and make grandparent red.
		if nodes.color(uncle) == Red {
			nodes.setColor(parent, Black)
			nodes.setColor(uncle, Black)
			nodes.setColor(grandparent, Red)
			nodeIdx = grandparent

			continue
		}

		// Case 4: zig-zag. Straighten the path so that N and its parent
		// lean the same way.
		if nodes.isLeftChild(nodeIdx) != parentIsLeft {
			tree.rotate(parent, parentIsLeft)
			nodeIdx = parent
			parent = nodes.parent(nodeIdx)
		}

		// Case 5: straight line. Lift the parent into the grandparent's place.
		nodes.setColor(parent, Black)
		nodes.setColor(grandparent, Red)
		tree.rotate(grandparent, !parentIsLeft)

		break
	}

	nodes.setColor(tree.root, Black)
}
