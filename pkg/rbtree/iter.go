package rbtree

import "iter"

// All returns a lazy in-order sequence of the entries, ascending by key.
// Every call starts a fresh traversal. Mutating the tree while a sequence is
// being consumed is undefined behavior.
func (tree *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for nodeIdx := tree.minNode; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
			if !yield(tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx)) {
				return
			}
		}
	}
}

// Backward returns a lazy sequence of the entries in descending key order.
func (tree *Tree[K, V]) Backward() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for nodeIdx := tree.maxNode; nodeIdx != nilNode; nodeIdx = tree.prev(nodeIdx) {
			if !yield(tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx)) {
				return
			}
		}
	}
}

// PreOrder returns a lazy sequence that emits each node before its left and
// right subtrees.
func (tree *Tree[K, V]) PreOrder() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if tree.root == nilNode {
			return
		}

		stack := make([]uint32, 0, tree.BlackHeight()*2+1)
		stack = append(stack, tree.root)

		for len(stack) > 0 {
			nodeIdx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if !yield(tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx)) {
				return
			}

			if right := tree.nodes.right(nodeIdx); right != nilNode {
				stack = append(stack, right)
			}

			if left := tree.nodes.left(nodeIdx); left != nilNode {
				stack = append(stack, left)
			}
		}
	}
}

// Search returns the in-order entries whose key satisfies match. The whole
// tree is walked since the predicate is arbitrary.
func (tree *Tree[K, V]) Search(match func(K) bool) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for key, value := range tree.All() {
			if match(key) && !yield(key, value) {
				return
			}
		}
	}
}

// Ascend returns the in-order entries whose key is >= from. Unlike Search it
// seeks directly to the first match, so consumers that stop early only pay
// for the entries they read.
func (tree *Tree[K, V]) Ascend(from K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		start, _ := tree.findGE(from)

		for nodeIdx := start; nodeIdx != nilNode; nodeIdx = tree.next(nodeIdx) {
			if !yield(tree.nodes.key(nodeIdx), tree.nodes.value(nodeIdx)) {
				return
			}
		}
	}
}
