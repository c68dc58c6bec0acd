// Package suffixtree implements spec section 4.7/4.8/4.9's streaming
// heavy-hitter engine: a generalized suffix tree over backtraces,
// built with Ukkonen's incremental construction and overlaid with
// lossy counting to bound memory while preserving every substring
// whose weighted frequency exceeds a configurable floor.
//
// No suffix-tree or streaming heavy-hitter library appears in the
// retrieved examples; this package is built directly against the
// spec's own node/active-point/lossy-counting contract, modeling the
// cyclic parent/suffix-link/child-map/queue references as handles
// into a flat arena the way spec section 9's design notes direct.
package suffixtree

import "github.com/getsentry/memtrace/internal/location"

// Token is one element of an inserted sequence — a backtrace frame.
type Token = location.ID

// Terminator is the reserved token value spec section 4.7 requires to
// appear only at the end of an inserted string, marking where a
// string (as opposed to an arbitrary substring) ends. Real location
// IDs are program-counter derived and never collide with it in
// practice; callers must not pass it as a genuine frame.
const Terminator Token = ^Token(0)

// Handle indexes the node arena. The zero Handle is the root; three
// negative sentinels distinguish "unset" and the leaf queue's two
// list endpoints, per spec section 9's design notes.
type Handle int32

const (
	Root  Handle = 0
	Dummy Handle = -1
	Front Handle = -2
	Back  Handle = -3
)

// Kind tags a node's variant (spec section 9: "Encode the node
// variant as a tagged union"). Queue membership is a property of Leaf
// and the two sentinels only; child maps exist only on Root and Branch.
type Kind uint8

const (
	KindRoot Kind = iota
	KindBranch
	KindLeaf
	KindDead
)

// openLen marks a leaf's edge as still growing with the string
// currently being inserted (Ukkonen's "trick 3": the edge's true
// length is the distance from Start to the insertion's current
// position, finalized once the whole string has been appended).
const openLen = -1

// Node is spec section 3's suffix-tree node. Parent, SuffixLink,
// QPrev and QNext are handles, not pointers, so the tree lives in a
// flat arena (spec section 9) rather than needing a GC-traced cyclic
// object graph.
type Node struct {
	Kind Kind

	// Edge label: array[Start:Start+Len), or array[Start:curEnd) while Len == openLen.
	Start int
	Len   int

	Parent     Handle
	SuffixLink Handle
	Children   map[Token]Handle

	// Incoming counts children plus suffix-link referrers pointing at
	// this node; used to decide whether a childless suffix-link
	// referent converts to a leaf (spec section 3's branch invariant).
	Incoming int

	Count         float64
	Delta         float64
	MaxChildDelta float64

	// Leaf queue links; meaningful only while Kind == KindLeaf (or
	// for the two list sentinels, which are never stored in the main
	// arena slice).
	QPrev, QNext Handle

	// Output-time aggregates (spec section 4.9), recomputed on every
	// enumeration pass rather than kept live during construction.
	DescendantsCount      float64
	HeavyDescendantsCount float64
}

// IsOpen reports whether this leaf's edge still tracks the current
// insertion's end position.
func (n *Node) IsOpen() bool { return n.Len == openLen }
