package suffixtree

// ActivePoint is spec section 4.7's cursor: (parent, len, child) with
// the invariant len < edgeLen(child), and len == 0 implying child ==
// parent (the cursor rests exactly on an explicit node).
type ActivePoint struct {
	Parent Handle
	Len    int
	Child  Handle
}

func rootPoint() ActivePoint {
	return ActivePoint{Parent: Root, Len: 0, Child: Root}
}

// scan attempts to extend ap by one token, per spec section 4.7. It
// reports whether the extension succeeded; on success it also snaps
// the cursor onto the child node when the edge is fully consumed.
func (t *Tree) scan(ap *ActivePoint, tok Token) bool {
	if ap.Len == 0 {
		child, ok := t.node(ap.Parent).Children[tok]
		if !ok {
			return false
		}
		ap.Child = child
		ap.Len = 1
	} else {
		if t.edgeToken(ap.Child, ap.Len) != tok {
			return false
		}
		ap.Len++
	}
	if ap.Len == t.edgeLen(ap.Child) {
		ap.Parent = ap.Child
		ap.Len = 0
		ap.Child = ap.Parent
	}
	return true
}

// splitAt materializes ap's current position as an explicit node,
// splitting the parent-child edge at offset len when len > 0, per
// spec section 4.7. It returns parent unchanged when len == 0 (the
// cursor already rests on an explicit node) and otherwise returns the
// freshly created branch node, leaving ap snapped onto it.
func (t *Tree) splitAt(ap *ActivePoint) Handle {
	if ap.Len == 0 {
		return ap.Parent
	}
	child := ap.Child
	childNode := t.node(child)
	edgeStart := childNode.Start

	branchParent := t.node(ap.Parent)
	branch := t.newNode(Node{
		Kind:          KindBranch,
		Start:         edgeStart,
		Len:           ap.Len,
		Parent:        ap.Parent,
		SuffixLink:    Dummy,
		Children:      make(map[Token]Handle),
		MaxChildDelta: branchParent.MaxChildDelta,
	})

	t.removeChild(ap.Parent, child)
	t.addChild(ap.Parent, branch)

	// newNode may have reallocated the arena; re-fetch the child.
	childNode = t.node(child)
	childNode.Start = edgeStart + ap.Len
	if childNode.Len != openLen {
		childNode.Len -= ap.Len
	}
	childNode.Parent = branch
	t.addChild(branch, child)

	ap.Parent = branch
	ap.Len = 0
	ap.Child = branch
	return branch
}

// rescanFrom walks length tokens of the shared array starting at
// start, beginning at the explicit node from.Parent, skipping whole
// edges at a time (the skip-count trick) instead of token by token.
// from must have Len == 0.
func (t *Tree) rescanFrom(from ActivePoint, start, length int) ActivePoint {
	parent := from.Parent
	pos := start
	remaining := length
	for remaining > 0 {
		tok := t.array[pos]
		child, ok := t.node(parent).Children[tok]
		if !ok {
			// Invariant violation: the edge we're rescanning must
			// already exist in the tree, since it was built by an
			// earlier, shallower extension in the same or a prior
			// phase (Ukkonen's suffix-link invariant).
			panic("suffixtree: rescan found no matching child")
		}
		cl := t.edgeLen(child)
		switch {
		case remaining < cl:
			return ActivePoint{Parent: parent, Len: remaining, Child: child}
		case remaining == cl:
			return ActivePoint{Parent: child, Len: 0, Child: child}
		default:
			remaining -= cl
			pos += cl
			parent = child
		}
	}
	return ActivePoint{Parent: parent, Len: 0, Child: parent}
}

// gotoSuffix implements spec section 4.7's goto_suffix(node): the
// locus of the suffix of node's label, via its suffix link when set,
// else a rescan from the parent's suffix locus along node's own edge.
func (t *Tree) gotoSuffix(node Handle) ActivePoint {
	if node == Root {
		return rootPoint()
	}
	n := t.node(node)
	if n.SuffixLink != Dummy {
		return ActivePoint{Parent: n.SuffixLink, Len: 0, Child: n.SuffixLink}
	}
	base := t.gotoSuffix(n.Parent)
	ap := t.rescanFrom(base, n.Start, t.edgeLen(node))
	if ap.Len == 0 {
		t.linkSuffix(node, ap.Parent)
	}
	return ap
}

// linkSuffix sets node's suffix link to target, bumping target's
// incoming reference count (spec section 3: incoming counts children
// plus suffix-link referrers).
func (t *Tree) linkSuffix(node, target Handle) {
	n := t.node(node)
	if n.SuffixLink == target {
		return
	}
	if n.SuffixLink != Dummy {
		t.node(n.SuffixLink).Incoming--
	}
	n.SuffixLink = target
	t.node(target).Incoming++
}
