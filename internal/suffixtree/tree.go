// Package suffixtree implements spec sections 4.7-4.9's streaming
// heavy-hitter engine: see package doc in node.go for the grounding
// rationale. This file holds the arena, the leaf queue, and the
// handful of primitives (edge length, label slicing, queue
// splice/remove) every other file in the package is built on.
package suffixtree

import "math"

// Tree is a generalized suffix tree over backtraces (spec section
// 4.7), overlaid with lossy counting (spec section 4.8) to bound its
// size. One Tree accumulates every string inserted into it; strings
// are distinguished on the wire only by the Terminator token each
// must end with.
type Tree struct {
	arena []Node
	array []Token

	front Node
	back  Node

	// openLeaves collects the handles of leaves created during the
	// current insertion whose edge is still tracking curEnd, so they
	// can be closed (edge length fixed) once the string's terminator
	// is reached, per this file's closeOpenLeaves.
	openLeaves []Handle
	curEnd     int

	// Lossy-counting state, spec section 4.8. bucketSize is the fixed
	// weight-width of one bucket (ceil(1/error)); bucketIndex is the
	// current bucket number; countInBucket tracks how much weight has
	// landed in the bucket still open.
	errorRate     float64
	bucketSize    float64
	bucketIndex   float64
	countInBucket float64
	totalWeight   float64
}

// New returns an empty tree whose lossy-counting governor prunes
// leaves with bucket width ceil(1/errorRate) (spec section 4.8).
// errorRate must be in (0,1].
func New(errorRate float64) *Tree {
	t := &Tree{errorRate: errorRate}
	t.bucketSize = math.Ceil(1 / errorRate)
	t.bucketIndex = 1
	t.arena = append(t.arena, Node{
		Kind:       KindRoot,
		Parent:     Dummy,
		SuffixLink: Dummy,
		Children:   make(map[Token]Handle),
	})
	t.front.QNext = Back
	t.back.QPrev = Front
	return t
}

// node dereferences a handle, including the two queue sentinels which
// live outside the arena slice (spec section 9's design notes).
func (t *Tree) node(h Handle) *Node {
	switch h {
	case Front:
		return &t.front
	case Back:
		return &t.back
	case Dummy:
		panic("suffixtree: dereferenced the Dummy handle")
	default:
		return &t.arena[h]
	}
}

// newNode appends a fresh node to the arena and returns its handle.
func (t *Tree) newNode(n Node) Handle {
	h := Handle(len(t.arena))
	t.arena = append(t.arena, n)
	return h
}

// edgeLen returns h's current edge length, resolving an open leaf's
// length against curEnd (Ukkonen's trick 3: a leaf created mid-phase
// implicitly grows with every further token of the string currently
// being inserted, without the algorithm touching it again).
func (t *Tree) edgeLen(h Handle) int {
	n := t.node(h)
	if h == Root {
		return 0
	}
	if n.Len == openLen {
		return t.curEnd - n.Start
	}
	return n.Len
}

// edgeToken returns the token at offset i of h's edge.
func (t *Tree) edgeToken(h Handle, i int) Token {
	return t.array[t.node(h).Start+i]
}

// label reconstructs the full token sequence from the root to h,
// concatenating every edge along the path. Used only at output time
// (spec section 4.9's enumeration); never on the hot insertion path.
func (t *Tree) label(h Handle) []Token {
	var segs [][]Token
	for cur := h; cur != Root && cur != Dummy; {
		n := t.node(cur)
		l := t.edgeLen(cur)
		segs = append(segs, t.array[n.Start:n.Start+l])
		cur = n.Parent
	}
	total := 0
	for _, s := range segs {
		total += len(s)
	}
	out := make([]Token, 0, total)
	for i := len(segs) - 1; i >= 0; i-- {
		out = append(out, segs[i]...)
	}
	return out
}

// queuePushBack appends h (a leaf, or a node about to become one) to
// the back of the leaf queue, before the Back sentinel.
func (t *Tree) queuePushBack(h Handle) {
	back := t.node(Back)
	prev := back.QPrev
	t.node(prev).QNext = h
	n := t.node(h)
	n.QPrev = prev
	n.QNext = Back
	back.QPrev = h
}

// queueRemove splices h out of the leaf queue. h's own QPrev/QNext
// are left as-is so an in-progress iterator can still read them to
// find where to resume (spec section 4.8: "remembers the previous
// live node").
func (t *Tree) queueRemove(h Handle) {
	n := t.node(h)
	p, nx := n.QPrev, n.QNext
	t.node(p).QNext = nx
	t.node(nx).QPrev = p
}

// closeOpenLeaves fixes the edge length of every leaf created during
// the insertion just finished, so the next string's tokens (appended
// after this one in the shared array) don't appear to extend them.
func (t *Tree) closeOpenLeaves() {
	for _, h := range t.openLeaves {
		n := t.node(h)
		if n.Len == openLen {
			n.Len = t.curEnd - n.Start
		}
	}
	t.openLeaves = t.openLeaves[:0]
}

// addChild records child under parent's first edge token, bumping
// parent's incoming count (spec section 3: children plus suffix-link
// referrers).
func (t *Tree) addChild(parent, child Handle) {
	n := t.node(parent)
	tok := t.edgeToken(child, 0)
	n.Children[tok] = child
	n.Incoming++
}

// removeChild drops child from parent's child map and decrements
// parent's incoming count.
func (t *Tree) removeChild(parent, child Handle) {
	n := t.node(parent)
	tok := t.edgeToken(child, 0)
	delete(n.Children, tok)
	n.Incoming--
}
