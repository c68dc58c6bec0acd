package suffixtree

// newLeaf creates a fresh leaf under parent, with an edge starting at
// start and growing with the insertion in progress (spec section
// 4.7's open leaf trick). Its delta and max-child-delta initialize
// from parent's max-child-delta, per spec section 4.7's delta
// propagation rule. A parent that a compress pass turned into a leaf
// becomes a branch again and leaves the leaf queue.
func (t *Tree) newLeaf(parent Handle, start int) Handle {
	p := t.node(parent)
	if p.Kind == KindLeaf {
		t.queueRemove(parent)
		p.Kind = KindBranch
		p.Children = make(map[Token]Handle)
	}
	h := t.newNode(Node{
		Kind:          KindLeaf,
		Start:         start,
		Len:           openLen,
		Parent:        parent,
		SuffixLink:    Dummy,
		Delta:         p.MaxChildDelta,
		MaxChildDelta: p.MaxChildDelta,
	})
	t.addChild(parent, h)
	t.openLeaves = append(t.openLeaves, h)
	t.queuePushBack(h)
	return h
}

// Insert adds tokens, which must end with Terminator, to the tree
// with the given weight, per spec section 4.7's per-insertion loop:
// Ukkonen's incremental construction driven by the active-point
// cursor, tracking the destination leaf (the first one created) to
// receive the insertion's weight, or falling back to a split at the
// final cursor position when the string was already present.
func (t *Tree) Insert(tokens []Token, weight float64) {
	if len(tokens) == 0 || tokens[len(tokens)-1] != Terminator {
		panic("suffixtree: inserted string must end with Terminator")
	}
	base := len(t.array)
	t.array = append(t.array, tokens...)

	ap := rootPoint()
	j := 0
	destination := Dummy

	for i := 0; i < len(tokens); i++ {
		t.curEnd = base + i + 1
		tok := tokens[i]
		needSuffixLink := Dummy
		stoppedByRule3 := false

		for j <= i {
			if t.scan(&ap, tok) {
				// Rule 3, the showstopper: this extension (and every
				// shorter one still due this phase) is already
				// present in the tree. Any pending needSuffixLink
				// from an earlier split this phase is left unlinked;
				// goto_suffix resolves it lazily, on demand, the next
				// time something needs to walk through it.
				stoppedByRule3 = true
				break
			}

			splitNode := t.splitAt(&ap)
			leaf := t.newLeaf(splitNode, base+i)
			if destination == Dummy {
				destination = leaf
			}
			if needSuffixLink != Dummy {
				t.linkSuffix(needSuffixLink, splitNode)
			}
			needSuffixLink = splitNode

			j++
			if j > i {
				break
			}
			ap = t.gotoSuffix(splitNode)
		}

		// If the phase ended because every due extension (j..i) was
		// processed (rather than via rule 3's showstopper), the last
		// node created this phase still needs a suffix link: the
		// suffix it is waiting to track, j == i+1, is the
		// single-token-shorter suffix of itself, whose locus is the
		// root once no characters remain unaccounted for. On a rule-3
		// exit, leave it unlinked for goto_suffix to resolve lazily.
		if !stoppedByRule3 && needSuffixLink != Dummy {
			t.linkSuffix(needSuffixLink, Root)
		}
	}
	t.closeOpenLeaves()

	if destination == Dummy {
		destination = t.splitAt(&ap)
	}
	t.materializeSuffixChain(destination)
	t.addWeight(destination, weight)
}

// materializeSuffixChain walks up destination's ancestors and calls
// goto_suffix on each one that has no suffix link yet, which sets the
// link wherever the suffix locus is an explicit node. Links left unset
// by a rule-3 exit of the main loop, or by the end-of-string split_at
// case, are set here for the nodes on this path; an ancestor whose
// suffix locus falls inside an edge stays unlinked.
func (t *Tree) materializeSuffixChain(leaf Handle) {
	for cur := t.node(leaf).Parent; cur != Root && cur != Dummy; cur = t.node(cur).Parent {
		if t.node(cur).SuffixLink != Dummy {
			continue
		}
		t.gotoSuffix(cur)
	}
}
