package rbtree

import "fmt"

// Invariant names reported by Validate.
const (
	InvariantOrder       = "bst order"
	InvariantRedRed      = "no red-red"
	InvariantBlackHeight = "black height"
	InvariantRootColor   = "root color"
	InvariantSymmetry    = "parent/child symmetry"
	InvariantBookkeeping = "bookkeeping"
)

// Validate checks every red-black invariant together with the size and
// min/max bookkeeping. It returns nil on a healthy tree and an *InvariantError
// describing the first problem otherwise. It never modifies the tree.
func (tree *Tree[K, V]) Validate() error {
	nodes := tree.nodes

	if tree.root == nilNode {
		if tree.count != 0 || tree.minNode != nilNode || tree.maxNode != nilNode {
			return &InvariantError{Invariant: InvariantBookkeeping, Detail: "empty tree with leftover state"}
		}

		return nil
	}

	if nodes.color(tree.root) != Black {
		return &InvariantError{Invariant: InvariantRootColor, Detail: "root is red"}
	}

	if nodes.parent(tree.root) != nilNode {
		return &InvariantError{Invariant: InvariantSymmetry, Detail: "root has a parent"}
	}

	visited, _, err := tree.validateSubtree(tree.root)
	if err != nil {
		return err
	}

	if visited != tree.count {
		return &InvariantError{
			Invariant: InvariantBookkeeping,
			Detail:    fmt.Sprintf("size %d but %d nodes reachable", tree.count, visited),
		}
	}

	if tree.minNode != tree.minimum(tree.root) || tree.maxNode != tree.maximum(tree.root) {
		return &InvariantError{Invariant: InvariantBookkeeping, Detail: "stale min/max node"}
	}

	return tree.validateOrder()
}

// validateSubtree returns the number of nodes below and including nodeIdx and
// its black-height, counting Nil as one Black node.
func (tree *Tree[K, V]) validateSubtree(nodeIdx uint32) (int, int, error) {
	if nodeIdx == nilNode {
		return 0, 1, nil
	}

	nodes := tree.nodes
	total := 1
	heights := [2]int{}

	for side, childIdx := range [2]uint32{nodes.left(nodeIdx), nodes.right(nodeIdx)} {
		if childIdx != nilNode {
			if nodes.parent(childIdx) != nodeIdx {
				return 0, 0, &InvariantError{
					Invariant: InvariantSymmetry,
					Detail:    fmt.Sprintf("child %v does not point back at %v", nodes.key(childIdx), nodes.key(nodeIdx)),
				}
			}

			if nodes.color(nodeIdx) == Red && nodes.color(childIdx) == Red {
				return 0, 0, &InvariantError{
					Invariant: InvariantRedRed,
					Detail:    fmt.Sprintf("red %v has red child %v", nodes.key(nodeIdx), nodes.key(childIdx)),
				}
			}
		}

		count, height, err := tree.validateSubtree(childIdx)
		if err != nil {
			return 0, 0, err
		}

		total += count
		heights[side] = height
	}

	if heights[0] != heights[1] {
		return 0, 0, &InvariantError{
			Invariant: InvariantBlackHeight,
			Detail:    fmt.Sprintf("at %v: left %d, right %d", nodes.key(nodeIdx), heights[0], heights[1]),
		}
	}

	if nodes.color(nodeIdx) == Black {
		heights[0]++
	}

	return total, heights[0], nil
}

// validateOrder checks that the in-order key sequence is strictly ascending.
func (tree *Tree[K, V]) validateOrder() error {
	prevIdx := nilNode

	for nodeIdx := tree.minNode; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
		if prevIdx != nilNode && tree.compare(tree.nodes.key(prevIdx), tree.nodes.key(nodeIdx)) >= 0 {
			return &InvariantError{
				Invariant: InvariantOrder,
				Detail:    fmt.Sprintf("%v is not less than %v", tree.nodes.key(prevIdx), tree.nodes.key(nodeIdx)),
			}
		}

		prevIdx = nodeIdx
	}

	return nil
}
