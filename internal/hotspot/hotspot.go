// Package hotspot renders the flat ranked list spec section 4.9's
// heavy-hitter enumerator produces into the shapes a report actually
// wants: a nested tree of hotspots for a human-readable listing, and a
// cross-trace aggregation for merging several runs' reports together.
//
// Grounded on vroom's internal/nodetree.Node/.Collapse (the tree shape
// and the collapsing rule for frames that add no information beyond
// their single child) and internal/metrics.Aggregator (the worst-example,
// per-key merge across many inputs).
package hotspot

import (
	"sort"

	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/suffixtree"
)

// Node is one hotspot in the nested tree a report renders: the frame
// it represents, its weighted stats from the enumerator, and the
// hotspots nested one frame deeper.
type Node struct {
	Frame    location.ID `json:"frame"`
	Total    float64     `json:"total"`
	Light    float64     `json:"light"`
	Upper    float64     `json:"upper"`
	Children []*Node     `json:"children,omitempty"`
}

// trieBuilder accumulates BuildForest's trie before Children slices are
// frozen; it exists only during construction and is discarded once
// flatten runs.
type trieBuilder struct {
	node *Node
	kids map[location.ID]*trieBuilder
}

// BuildForest assembles suffixtree.Enumerate's flat, per-substring
// output into a forest of nested hotspots, one tree per distinct root
// frame: each hotspot's label is inserted as a path, so a substring
// and every substring it extends share the same underlying nodes the
// way the suffix tree itself does.
func BuildForest(hotspots []suffixtree.Hotspot) []*Node {
	roots := make(map[location.ID]*trieBuilder)
	for _, hs := range hotspots {
		cur := roots
		var leaf *trieBuilder
		for _, tok := range hs.Label {
			if tok == suffixtree.Terminator {
				break
			}
			frame := location.ID(tok)
			tb, ok := cur[frame]
			if !ok {
				tb = &trieBuilder{
					node: &Node{Frame: frame},
					kids: make(map[location.ID]*trieBuilder),
				}
				cur[frame] = tb
			}
			leaf = tb
			cur = tb.kids
		}
		if leaf != nil {
			leaf.node.Total = hs.Total
			leaf.node.Light = hs.Light
			leaf.node.Upper = hs.Upper
		}
	}
	return flatten(roots)
}

func flatten(m map[location.ID]*trieBuilder) []*Node {
	out := make([]*Node, 0, len(m))
	for _, tb := range m {
		tb.node.Children = flatten(tb.kids)
		out = append(out, tb.node)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Frame < out[j].Frame
	})
	return out
}

// Collapse folds a chain of nodes that add no information beyond their
// single child — the child's weighted total already accounts for the
// parent's entire contribution — keeping only the deepest frame in the
// chain, the way vroom's nodetree.Collapse favours the innermost frame
// of a span its single child fully covers.
func (n Node) Collapse() []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, child := range n.Children {
		children = append(children, child.Collapse()...)
	}
	n.Children = children

	if len(n.Children) == 1 && n.Children[0].Total == n.Total {
		child := n.Children[0]
		n = *child
	}

	return []*Node{&n}
}

// CollapseForest applies Collapse to every tree in a forest.
func CollapseForest(forest []*Node) []*Node {
	out := make([]*Node, 0, len(forest))
	for _, n := range forest {
		out = append(out, n.Collapse()...)
	}
	return out
}
