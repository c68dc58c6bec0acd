package suffixtree

import (
	"sort"
	"testing"

	"github.com/getsentry/memtrace/internal/testutil"
)

func tok(vs ...int) []Token {
	out := make([]Token, 0, len(vs)+1)
	for _, v := range vs {
		out = append(out, Token(v))
	}
	out = append(out, Terminator)
	return out
}

func TestInsertSingleString(t *testing.T) {
	tr := New(0.5)
	tr.Insert(tok(1, 2, 3), 1)

	// Every suffix of {1,2,3,Terminator} must be findable by walking
	// from the root through scan, confirming the tree actually
	// contains the inserted string end to end.
	full := []Token{1, 2, 3, Terminator}
	for start := 0; start < len(full); start++ {
		ap := rootPoint()
		for _, token := range full[start:] {
			if !tr.scan(&ap, token) {
				t.Fatalf("suffix starting at %d: scan failed on token %d", start, token)
			}
		}
	}
}

func TestInsertRepeatedStringAccumulatesCount(t *testing.T) {
	tr := New(1.0) // bucketSize = 1, compress after every insertion
	tr.Insert(tok(1, 2, 3), 1)
	tr.Insert(tok(1, 2, 3), 1)
	tr.Insert(tok(1, 2, 3), 1)

	hs := tr.Enumerate(0.01)
	var found bool
	for _, h := range hs {
		if equalLabels(h.Label, []Token{1, 2, 3, Terminator}) {
			found = true
			if h.Total < 3 {
				t.Errorf("expected total count >= 3 for repeated string, got %v", h.Total)
			}
		}
	}
	if !found {
		t.Fatalf("full string not reported as heavy: %+v", hs)
	}
}

func TestInsertWeightEquivalence(t *testing.T) {
	// Inserting the same string N times with weight w must be
	// observationally equivalent, at the destination leaf, to
	// inserting it once with weight N*w (spec section 8's
	// idempotence property), as long as no compress pass runs
	// in between to perturb counts.
	a := New(0.001)
	for i := 0; i < 5; i++ {
		a.Insert(tok(7, 8, 9), 2)
	}
	b := New(0.001)
	b.Insert(tok(7, 8, 9), 10)

	ha := a.Enumerate(0.0001)
	hb := b.Enumerate(0.0001)
	totalA := totalFor(ha, []Token{7, 8, 9, Terminator})
	totalB := totalFor(hb, []Token{7, 8, 9, Terminator})
	if totalA != totalB {
		t.Errorf("weight equivalence violated: %v != %v", totalA, totalB)
	}
}

func TestLossyCountingGuarantee(t *testing.T) {
	tr := New(0.1) // bucketSize = 10
	// One frequent stack, many distinct rare ones.
	for i := 0; i < 200; i++ {
		tr.Insert(tok(100, 200, 300), 1)
	}
	for i := 0; i < 50; i++ {
		tr.Insert(tok(100, 200, 1000+i), 1)
	}

	hs := tr.Enumerate(0.1)
	for _, h := range hs {
		if h.Upper < h.Total {
			t.Errorf("upper bound %v below total %v for %v", h.Upper, h.Total, h.Label)
		}
		if h.Light > h.Total {
			t.Errorf("light count %v exceeds total %v for %v", h.Light, h.Total, h.Label)
		}
	}

	// The common prefix {100,200} must appear as heavy; no
	// individual rare suffix (distinct per i) should dominate it.
	var sawCommonPrefix bool
	for _, h := range hs {
		if len(h.Label) >= 2 && h.Label[0] == 100 && h.Label[1] == 200 {
			sawCommonPrefix = true
		}
	}
	if !sawCommonPrefix {
		t.Fatalf("expected the frequent {100,200,...} prefix to be heavy, got %+v", hs)
	}
}

func TestEnumerateSortedDescendingByLight(t *testing.T) {
	tr := New(0.2)
	for i := 0; i < 20; i++ {
		tr.Insert(tok(1, 2), 1)
	}
	for i := 0; i < 5; i++ {
		tr.Insert(tok(1, 3), 1)
	}
	hs := tr.Enumerate(0.05)
	if !sort.SliceIsSorted(hs, func(i, j int) bool { return hs[i].Light >= hs[j].Light }) {
		t.Errorf("enumerate output not sorted descending by light count: %+v", hs)
	}
}

func equalLabels(a, b []Token) bool {
	return testutil.Diff(a, b) == ""
}

func totalFor(hs []Hotspot, label []Token) float64 {
	for _, h := range hs {
		if equalLabels(h.Label, label) {
			return h.Total
		}
	}
	return -1
}
