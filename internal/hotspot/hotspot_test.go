package hotspot

import (
	"testing"

	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/suffixtree"
)

func TestBuildForestSharesCommonPrefix(t *testing.T) {
	forest := BuildForest([]suffixtree.Hotspot{
		{Label: tok(1, 2, 3), Total: 10, Light: 9, Upper: 11},
		{Label: tok(1, 2, 4), Total: 5, Light: 4, Upper: 6},
		{Label: tok(1), Total: 15, Light: 14, Upper: 16},
	})

	if len(forest) != 1 {
		t.Fatalf("expected one root, got %d", len(forest))
	}
	root := forest[0]
	if root.Frame != 1 || root.Total != 15 {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 1 || root.Children[0].Frame != 2 {
		t.Fatalf("expected frame 2 as sole child, got %+v", root.Children)
	}
	if len(root.Children[0].Children) != 2 {
		t.Fatalf("expected two grandchildren, got %+v", root.Children[0].Children)
	}
}

func TestCollapseDropsFullySpannedChain(t *testing.T) {
	forest := BuildForest([]suffixtree.Hotspot{
		{Label: tok(1, 2, 3), Total: 10, Light: 9, Upper: 11},
		{Label: tok(1, 2), Total: 10, Light: 0, Upper: 10},
		{Label: tok(1), Total: 10, Light: 0, Upper: 10},
	})
	collapsed := CollapseForest(forest)
	if len(collapsed) != 1 {
		t.Fatalf("expected one collapsed root, got %d", len(collapsed))
	}
	if collapsed[0].Frame != 3 {
		t.Fatalf("expected the chain to collapse to the innermost frame 3, got %+v", collapsed[0])
	}
}

func TestAggregatorMergesByLabel(t *testing.T) {
	a := NewAggregator(10, 3)
	a.Add("1:2:3", suffixtree.Hotspot{Total: 10, Light: 9, Upper: 11}, "trace-a")
	a.Add("1:2:3", suffixtree.Hotspot{Total: 20, Light: 18, Upper: 22}, "trace-b")
	a.Add("9", suffixtree.Hotspot{Total: 1, Light: 1, Upper: 1}, "trace-a")

	metrics := a.ToMetrics()
	if len(metrics) != 2 {
		t.Fatalf("expected 2 merged stacks, got %d", len(metrics))
	}
	if metrics[0].Label != "1:2:3" || metrics[0].Total != 30 {
		t.Fatalf("unexpected merge for top stack: %+v", metrics[0])
	}
	if metrics[0].Worst != "trace-b" {
		t.Fatalf("expected trace-b to be worst (higher single-trace total), got %q", metrics[0].Worst)
	}
	if metrics[0].SeenIn != 2 {
		t.Errorf("expected \"1:2:3\" to be seen in 2 traces, got %d", metrics[0].SeenIn)
	}
	if metrics[1].Label != "9" || metrics[1].SeenIn != 1 {
		t.Errorf("expected \"9\" to be seen in 1 trace, got %+v", metrics[1])
	}
}

func TestSizeTrackerPercentiles(t *testing.T) {
	s := NewSizeTracker()
	stack := []location.ID{1, 2, 3}
	for _, size := range []uint64{10, 20, 30, 40, 50} {
		s.Observe(stack, size)
	}
	p50, p95, ok := s.Percentiles(Label(stack))
	if !ok {
		t.Fatalf("expected percentiles to be available for observed stack")
	}
	if p50 <= 0 || p95 < p50 {
		t.Errorf("unexpected percentiles p50=%v p95=%v", p50, p95)
	}
	if _, _, ok := s.Percentiles(Label([]location.ID{99})); ok {
		t.Errorf("expected no percentiles for a stack never observed")
	}
}
