// Package memory implements the in-memory MVCC virtual-table module (spec
// §4.6): copy-on-write B-trees layered into a committed chain plus one
// pending transaction layer per writer connection.
//
// No third-party ordered-map/persistent-tree library appears anywhere in
// the example corpus (the teacher's own `memory` package ships only its
// test files in this retrieval pack, and no other pack repo imports one);
// the tree below is therefore written in plain Go (pointer-based nodes,
// key comparisons, no `sort`) rather than on a teacher pattern, and is
// recorded as a justified stdlib fallback in DESIGN.md.
package memory

import "github.com/Digithought/quereus-sub010/sql"

// Key is a composite index key: one value per indexed column, compared
// column-by-column honoring each column's declared sort direction.
type Key []sql.Value

// Comparator orders two Keys according to an index's column list.
type Comparator func(a, b Key) int

// ColumnComparator builds a Comparator from an index's column descriptors
// (spec §4.6 primary/secondary trees are both keyed this way).
func ColumnComparator(cols []sql.IndexColumn) Comparator {
	return func(a, b Key) int {
		for i, c := range cols {
			cmp := sql.Compare(a[i], b[i])
			if c.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	}
}

// node is one entry of a persistent (path-copying) AVL tree. A node is
// never mutated after construction; every insert/delete that touches it
// allocates replacement nodes along the search path only, leaving every
// subtree untouched by the write structurally shared with whatever older
// tree still references it. This is the concrete mechanism behind spec
// §4.6's "TransactionLayer instantiates new B-trees inheriting from the
// parent's trees: writes are local copy-on-write; reads fall through" — a
// transaction layer simply starts from the parent's root pointer, and an
// insert/delete only ever replaces nodes on the path to the changed key.
type node struct {
	key         Key
	val         interface{}
	left, right *node
	height      int8
}

func height(n *node) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func max8(a, b int8) int8 {
	if a > b {
		return a
	}
	return b
}

func newNode(key Key, val interface{}, left, right *node) *node {
	return &node{key: key, val: val, left: left, right: right, height: 1 + max8(height(left), height(right))}
}

func balanceFactor(n *node) int8 {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func rotateRight(n *node) *node {
	l := n.left
	return newNode(l.key, l.val, l.left, newNode(n.key, n.val, l.right, n.right))
}

func rotateLeft(n *node) *node {
	r := n.right
	return newNode(r.key, r.val, newNode(n.key, n.val, n.left, r.left), r.right)
}

func rebalance(n *node) *node {
	bf := balanceFactor(n)
	if bf > 1 {
		if balanceFactor(n.left) < 0 {
			n = newNode(n.key, n.val, rotateLeft(n.left), n.right)
		}
		return rotateRight(n)
	}
	if bf < -1 {
		if balanceFactor(n.right) > 0 {
			n = newNode(n.key, n.val, n.left, rotateRight(n.right))
		}
		return rotateLeft(n)
	}
	return n
}

func insert(n *node, key Key, val interface{}, cmp Comparator) (*node, bool) {
	if n == nil {
		return newNode(key, val, nil, nil), false
	}
	c := cmp(key, n.key)
	switch {
	case c < 0:
		left, existed := insert(n.left, key, val, cmp)
		return rebalance(newNode(n.key, n.val, left, n.right)), existed
	case c > 0:
		right, existed := insert(n.right, key, val, cmp)
		return rebalance(newNode(n.key, n.val, n.left, right)), existed
	default:
		return newNode(key, val, n.left, n.right), true
	}
}

func minNode(n *node) *node {
	for n.left != nil {
		n = n.left
	}
	return n
}

func remove(n *node, key Key, cmp Comparator) (*node, bool) {
	if n == nil {
		return nil, false
	}
	c := cmp(key, n.key)
	switch {
	case c < 0:
		left, removed := remove(n.left, key, cmp)
		if !removed {
			return n, false
		}
		return rebalance(newNode(n.key, n.val, left, n.right)), true
	case c > 0:
		right, removed := remove(n.right, key, cmp)
		if !removed {
			return n, false
		}
		return rebalance(newNode(n.key, n.val, n.left, right)), true
	default:
		if n.left == nil {
			return n.right, true
		}
		if n.right == nil {
			return n.left, true
		}
		succ := minNode(n.right)
		right, _ := remove(n.right, succ.key, cmp)
		return rebalance(newNode(succ.key, succ.val, n.left, right)), true
	}
}

func get(n *node, key Key, cmp Comparator) (interface{}, bool) {
	for n != nil {
		c := cmp(key, n.key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.val, true
		}
	}
	return nil, false
}

// Tree is an immutable ordered map from Key to an arbitrary payload (a row
// for a primary tree, a list of primary keys for a secondary index entry).
// Every mutating method returns a new Tree; the receiver is never modified,
// so any reference retained to a prior Tree value observes exactly the
// snapshot it had when retained — the "mutation-safe iterator" spec §4.6
// asks for falls out of this for free, rather than requiring a separate
// snapshot-cursor mechanism.
type Tree struct {
	root *node
	cmp  Comparator
	size int
}

func NewTree(cmp Comparator) *Tree {
	return &Tree{cmp: cmp}
}

func (t *Tree) Len() int { return t.size }

func (t *Tree) Get(key Key) (interface{}, bool) {
	if t == nil || t.root == nil {
		return nil, false
	}
	return get(t.root, key, t.cmp)
}

// Insert returns a new Tree with key upserted to val.
func (t *Tree) Insert(key Key, val interface{}) *Tree {
	root, existed := insert(t.root, key, val, t.cmp)
	size := t.size
	if !existed {
		size++
	}
	return &Tree{root: root, cmp: t.cmp, size: size}
}

// Delete returns a new Tree with key removed, and whether it was present.
func (t *Tree) Delete(key Key) (*Tree, bool) {
	root, removed := remove(t.root, key, t.cmp)
	if !removed {
		return t, false
	}
	return &Tree{root: root, cmp: t.cmp, size: t.size - 1}, true
}

// Entry is one (key, value) pair yielded by an iterator.
type Entry struct {
	Key Key
	Val interface{}
}

// BoundFunc reports where a candidate key sits relative to some bound: a
// negative result means key is strictly before the bound, zero means
// exactly at it, positive means strictly after — in traversal order, not
// necessarily raw value order (a bound over a Descending column flips the
// sign). Expressing bounds as a function of the full composite key, rather
// than as a same-shaped Key to compare with the tree's whole-key
// Comparator, lets a caller seed/stop a scan using only a leading subset
// of the columns (spec §4.6 "seeded at a range lower bound"), which a
// composite Comparator alone cannot express.
type BoundFunc func(key Key) int

// Iterator walks a Tree snapshot in key order (ascending or descending),
// optionally seeded at a bound and stopping early past another bound. It
// holds only the (immutable) nodes on the current path, so it is entirely
// unaffected by inserts/deletes performed against the live Tree variable
// after the iterator was constructed.
type Iterator struct {
	stack      []*node
	descending bool
	stop       BoundFunc
}

func (it *Iterator) pushPath(n *node, start BoundFunc) {
	for n != nil {
		if start == nil {
			if it.descending {
				it.stack = append(it.stack, n)
				n = n.right
			} else {
				it.stack = append(it.stack, n)
				n = n.left
			}
			continue
		}
		c := start(n.key)
		if it.descending {
			// n.key <= bound: a candidate (largest-so-far <= bound); look
			// right for a larger key that might still qualify. Otherwise
			// n is too big — only its left subtree can hold a qualifying key.
			if c <= 0 {
				it.stack = append(it.stack, n)
				n = n.right
			} else {
				n = n.left
			}
		} else {
			// n.key >= bound: a candidate (smallest-so-far >= bound); look
			// left for a smaller key that might still qualify. Otherwise
			// n is too small — only its right subtree can hold a qualifying key.
			if c >= 0 {
				it.stack = append(it.stack, n)
				n = n.left
			} else {
				n = n.right
			}
		}
	}
}

// Ascend returns an ascending iterator. If start is non-nil, iteration
// begins at the first key with start(key) >= 0; if stop is non-nil,
// iteration ends before yielding any key with stop(key) > 0.
func (t *Tree) Ascend(start, stop BoundFunc) *Iterator {
	it := &Iterator{stop: stop}
	it.pushPath(t.root, start)
	return it
}

// Descend returns a descending iterator. If start is non-nil, iteration
// begins at the last key with start(key) <= 0; if stop is non-nil,
// iteration ends before yielding any key with stop(key) < 0.
func (t *Tree) Descend(start, stop BoundFunc) *Iterator {
	it := &Iterator{descending: true, stop: stop}
	it.pushPath(t.root, start)
	return it
}

// Next advances the iterator, returning ok=false once exhausted or once the
// configured bound has been crossed.
func (it *Iterator) Next() (Entry, bool) {
	if len(it.stack) == 0 {
		return Entry{}, false
	}
	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	if it.stop != nil {
		c := it.stop(n.key)
		if (!it.descending && c > 0) || (it.descending && c < 0) {
			it.stack = nil
			return Entry{}, false
		}
	}
	if it.descending {
		it.pushPath(n.left, nil)
	} else {
		it.pushPath(n.right, nil)
	}
	return Entry{Key: n.key, Val: n.val}, true
}

// ColumnBound builds a BoundFunc comparing only one column of a composite
// key against v, honoring that column's declared sort direction — the
// primitive a single-leading-column range scan needs (memory/module.go's
// tryRange, memory/cursor.go).
func ColumnBound(colIdx int, descending bool, v sql.Value) BoundFunc {
	return func(key Key) int {
		c := sql.Compare(key[colIdx], v)
		if descending {
			c = -c
		}
		return c
	}
}
