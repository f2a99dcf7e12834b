package repository

import (
	"math/rand/v2"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// pendingIndex is a treap of group keys that still have unprocessed
// transactions, ordered by GroupKey.Less. In-order traversal yields keys in
// the cursor order PendingKeys pages through.
type pendingIndex struct {
	root *node
}

type node struct {
	key   model.GroupKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key model.GroupKey) *node {
	if n == nil {
		return &node{key: key, prio: rand.Uint64(), size: 1}
	}
	switch {
	case key == n.key:
		return n
	case key.Less(n.key):
		n.left = insert(n.left, key)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	default:
		n.right = insert(n.right, key)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key model.GroupKey) *node {
	if n == nil {
		return nil
	}
	switch {
	case key == n.key:
		// Rotate the higher priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key)
		}
	case key.Less(n.key):
		n.left = deleteNode(n.left, key)
	default:
		n.right = deleteNode(n.right, key)
	}
	fix(n)
	return n
}

// collectAfter appends keys strictly greater than after, in order, while
// keep accepts them and fewer than limit were collected.
func collectAfter(n *node, after model.GroupKey, limit int, keep func(model.GroupKey) bool, out *[]model.GroupKey) {
	if n == nil || len(*out) >= limit {
		return
	}
	if after.Less(n.key) {
		collectAfter(n.left, after, limit, keep, out)
		if len(*out) < limit && keep(n.key) {
			*out = append(*out, n.key)
		}
	}
	collectAfter(n.right, after, limit, keep, out)
}

func (p *pendingIndex) add(key model.GroupKey)    { p.root = insert(p.root, key) }
func (p *pendingIndex) remove(key model.GroupKey) { p.root = deleteNode(p.root, key) }
func (p *pendingIndex) len() int                  { return nsize(p.root) }

func (p *pendingIndex) after(after model.GroupKey, limit int, keep func(model.GroupKey) bool) []model.GroupKey {
	var out []model.GroupKey
	collectAfter(p.root, after, limit, keep, &out)
	return out
}
