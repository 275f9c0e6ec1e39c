package rbtree

// rotate performs a tree rotation at pivot. isLeft=true performs a left
// rotation, isLeft=false a right rotation. Colors are never changed.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree[K, V]) rotate(pivot uint32, isLeft bool) {
	nodes := tree.nodes

	// The child on the opposite side of the rotation moves up.
	child := nodes.child(pivot, !isLeft)
	doAssert(child != nilNode, "rotation needs a child to lift")

	// Move the inner subtree across.
	nodes.setChild(pivot, !isLeft, nodes.child(child, isLeft))

	// Lift the child into the pivot's place.
	tree.transplant(pivot, child)

	// Complete the rotation.
	nodes.setChild(child, isLeft, pivot)
}

func (tree *Tree[K, V]) rotateLeft(pivot uint32) {
	tree.rotate(pivot, true)
}

func (tree *Tree[K, V]) rotateRight(pivot uint32) {
	tree.rotate(pivot, false)
}

// transplant makes newIdx take oldIdx's place under oldIdx's parent, or at
// the root. oldIdx keeps its own stale links.
func (tree *Tree[K, V]) transplant(oldIdx, newIdx uint32) {
	parentIdx := tree.nodes.parent(oldIdx)

	if parentIdx == nilNode {
		tree.root = newIdx
		tree.nodes.orphan(newIdx)

		return
	}

	tree.nodes.setChild(parentIdx, tree.nodes.isLeftChild(oldIdx), newIdx)
}
