package hotspot

import (
	"sort"

	"github.com/getsentry/memtrace/internal/suffixtree"
)

// StackMetrics is one merged hotspot across every trace an Aggregator
// has seen, keyed by its stack label, mirroring the shape of vroom's
// metrics.FunctionMetrics.
type StackMetrics struct {
	Label    string   `json:"label"`
	Total    float64  `json:"total"`
	Light    float64  `json:"light"`
	Upper    float64  `json:"upper"`
	Worst    string   `json:"worst"`
	Examples []string `json:"examples,omitempty"`
	SeenIn   uint     `json:"seen_in"`
}

type stackMetadata struct {
	maxTotal float64
	worstID  string
	examples []string
}

// Aggregator merges heavy-hitter reports from several trace files by
// stack label, the same per-key worst-example tracking vroom's
// metrics.Aggregator applies to functions instead of stacks.
type Aggregator struct {
	MaxUniqueStacks  uint
	MaxNumOfExamples uint

	byLabel  map[string]StackMetrics
	metadata map[string]stackMetadata
}

// NewAggregator returns an empty aggregator keeping at most
// maxUniqueStacks stacks (by total weight) and at most
// maxNumOfExamples source-trace IDs per stack.
func NewAggregator(maxUniqueStacks, maxNumOfExamples uint) *Aggregator {
	return &Aggregator{
		MaxUniqueStacks:  maxUniqueStacks,
		MaxNumOfExamples: maxNumOfExamples,
		byLabel:          make(map[string]StackMetrics),
		metadata:         make(map[string]stackMetadata),
	}
}

// Add folds one trace's hotspot, identified by its stringified label,
// into the running merge. sourceID identifies which trace contributed
// it, for the worst-example and examples bookkeeping.
func (a *Aggregator) Add(label string, hs suffixtree.Hotspot, sourceID string) {
	sm, ok := a.byLabel[label]
	if !ok {
		a.byLabel[label] = StackMetrics{
			Label:  label,
			Total:  hs.Total,
			Light:  hs.Light,
			Upper:  hs.Upper,
			SeenIn: 1,
		}
		a.metadata[label] = stackMetadata{
			maxTotal: hs.Total,
			worstID:  sourceID,
			examples: []string{sourceID},
		}
		return
	}

	sm.Total += hs.Total
	sm.Light += hs.Light
	sm.Upper += hs.Upper
	sm.SeenIn++

	meta := a.metadata[label]
	if hs.Total > meta.maxTotal {
		meta.maxTotal = hs.Total
		meta.worstID = sourceID
	}
	if uint(len(meta.examples)) < a.MaxNumOfExamples {
		meta.examples = append(meta.examples, sourceID)
	}

	a.byLabel[label] = sm
	a.metadata[label] = meta
}

// ToMetrics returns the merged stacks, descending by total weight,
// truncated to MaxUniqueStacks the way vroom's ToMetrics truncates to
// MaxUniqueFunctions.
func (a *Aggregator) ToMetrics() []StackMetrics {
	out := make([]StackMetrics, 0, len(a.byLabel))
	for label, sm := range a.byLabel {
		meta := a.metadata[label]
		sm.Worst = meta.worstID
		sm.Examples = meta.examples
		out = append(out, sm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Label < out[j].Label
	})
	if uint(len(out)) > a.MaxUniqueStacks {
		out = out[:a.MaxUniqueStacks]
	}
	return out
}
