package rbtree

// Remove deletes key from the tree. It fails with ErrKeyNotFound when the key
// is absent, leaving the tree unchanged.
func (tree *Tree[K, V]) Remove(key K) error {
	nodeIdx := tree.find(key)
	if nodeIdx == nilNode {
		return &KeyError{Key: key, Err: ErrKeyNotFound}
	}

	tree.doDelete(nodeIdx)
	tree.checkInvariants()

	return nil
}

// Delete N from the tree.
func (tree *Tree[K, V]) doDelete(nodeIdx uint32) {
	nodes := tree.nodes

	// With two children, the in-order successor's payload moves into N and
	// the successor, which has no left child, is removed instead.
	if nodes.left(nodeIdx) != nilNode && nodes.right(nodeIdx) != nilNode {
		succ := tree.minimum(nodes.right(nodeIdx))
		nodes.setPayload(nodeIdx, nodes.key(succ), nodes.value(succ))
		nodeIdx = succ
	}

	child := nodes.left(nodeIdx)
	if child == nilNode {
		child = nodes.right(nodeIdx)
	}

	parent := nodes.parent(nodeIdx)
	childIsLeft := parent != nilNode && nodes.isLeftChild(nodeIdx)

	tree.transplant(nodeIdx, child)

	// Removing a red node leaves every black-height intact.
	if nodes.color(nodeIdx) == Black {
		tree.deleteFixup(child, parent, childIsLeft)
	}

	tree.nodes.free(nodeIdx)
	tree.count--

	if tree.count == 0 {
		tree.minNode = nilNode
		tree.maxNode = nilNode

		return
	}

	if tree.minNode == nodeIdx {
		tree.minNode = tree.minimum(tree.root)
	}

	if tree.maxNode == nodeIdx {
		tree.maxNode = tree.maximum(tree.root)
	}
}

// deleteFixup repairs the black-height deficit on the path through x, which
// may be Nil. The parent and side of x are tracked explicitly for that reason.
func (tree *Tree[K, V]) deleteFixup(x, parent uint32, xIsLeft bool) {
	nodes := tree.nodes

	for x != tree.root && nodes.color(x) == Black {
		sib := nodes.child(parent, !xIsLeft)

		// Case 1: red sibling. Rotate it above the parent so that x gets a
		// black sibling, then fall through.
		if nodes.color(sib) == Red {
			nodes.setColor(sib, Black)
			nodes.setColor(parent, Red)
			tree.rotate(parent, xIsLeft)
			sib = nodes.child(parent, !xIsLeft)
		}

		near := nodes.child(sib, xIsLeft)
		far := nodes.child(sib, !xIsLeft)

		// Case 2: both nephews black. Push the deficit one level up.
		if nodes.color(near) == Black && nodes.color(far) == Black {
			nodes.setColor(sib, Red)
			x = parent
			parent = nodes.parent(x)

			if parent != nilNode {
				xIsLeft = nodes.isLeftChild(x)
			}

			continue
		}

		// Case 3: near nephew red, far nephew black. Turn it into case 4.
		if nodes.color(far) == Black {
			nodes.setColor(near, Black)
			nodes.setColor(sib, Red)
			tree.rotate(sib, !xIsLeft)
			sib = nodes.child(parent, !xIsLeft)
			far = nodes.child(sib, !xIsLeft)
		}

		// Case 4: far nephew red. One rotation at the parent settles it.
		nodes.setColor(sib, nodes.color(parent))
		nodes.setColor(parent, Black)
		nodes.setColor(far, Black)
		tree.rotate(parent, xIsLeft)

		x = tree.root
	}

	nodes.setColor(x, Black)
}
