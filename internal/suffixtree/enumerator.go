package suffixtree

import (
	"math"
	"sort"
)

// Hotspot is one heavy hitter reported by Enumerate: a substring
// (concatenated edge labels from the root) together with the
// lossy-counting light/total/upper-bound triple spec section 4.9
// names.
type Hotspot struct {
	Label []Token
	Light float64
	Total float64
	Upper float64
}

// Enumerate implements spec section 4.9's heavy-hitter enumerator:
// threshold = floor(freq*totalWeight); every node whose light count
// plus its error bound (delta) exceeds the threshold is reported,
// sorted descending by light count. Hotspots with equal light counts
// come out in no fixed order.
func (t *Tree) Enumerate(freq float64) []Hotspot {
	threshold := math.Floor(freq * t.totalWeight)

	order := t.liveByDepth()
	for _, h := range order {
		n := t.node(h)
		n.DescendantsCount = 0
		n.HeavyDescendantsCount = 0
	}

	heavy := make(map[Handle]Hotspot, len(order)/4+1)
	for i := len(order) - 1; i >= 0; i-- {
		h := order[i]
		n := t.node(h)
		total := n.Count + n.DescendantsCount
		light := total - n.HeavyDescendantsCount
		var heavyContribution float64
		if light+n.Delta > threshold {
			heavyContribution = total
			heavy[h] = Hotspot{
				Label: t.label(h),
				Light: light,
				Total: total,
				Upper: total + n.Delta,
			}
		} else {
			heavyContribution = n.HeavyDescendantsCount
		}

		if h != Root {
			parent := n.Parent
			pn := t.node(parent)
			pn.DescendantsCount += total
			pn.HeavyDescendantsCount += heavyContribution
			if sp := pn.SuffixLink; sp != Dummy {
				spn := t.node(sp)
				spn.DescendantsCount -= total
				spn.HeavyDescendantsCount -= heavyContribution
			}
		}
		if n.SuffixLink != Dummy {
			sn := t.node(n.SuffixLink)
			sn.DescendantsCount += total
			sn.HeavyDescendantsCount += heavyContribution
		}
	}

	out := make([]Hotspot, 0, len(heavy))
	for _, hs := range heavy {
		out = append(out, hs)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Light > out[j].Light })
	return out
}

// liveByDepth returns every non-dead node's handle, ordered by
// increasing depth from the root (spec section 4.9's "depth-indexed
// bucket list ... precomputed during a root-to-leaves walk"), root
// first. Within a depth, nodes follow their parents' order in the
// previous depth, and siblings are ordered by ascending first edge
// token.
func (t *Tree) liveByDepth() []Handle {
	depth := make(map[Handle]int, len(t.arena))
	depth[Root] = 0

	var buckets [][]Handle
	buckets = append(buckets, []Handle{Root})

	// Children maps only exist on Root/Branch; a breadth-first walk
	// from the root visits every live internal node and every live
	// leaf reachable from it. Leaves converted from dead branches are
	// reachable the same way, since they remain in their parent's
	// child map until explicitly squashed.
	frontier := []Handle{Root}
	d := 0
	for len(frontier) > 0 {
		var next []Handle
		for _, h := range frontier {
			n := t.node(h)
			if n.Children == nil {
				continue
			}
			keys := make([]Token, 0, len(n.Children))
			for k := range n.Children {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			for _, k := range keys {
				child := n.Children[k]
				depth[child] = d + 1
				next = append(next, child)
			}
		}
		if len(next) > 0 {
			buckets = append(buckets, next)
		}
		frontier = next
		d++
	}

	out := make([]Handle, 0, len(t.arena))
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}
