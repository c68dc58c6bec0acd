package hotspot

import (
	"strconv"
	"strings"

	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/quantile"
	"github.com/getsentry/memtrace/internal/suffixtree"
)

// SizeTracker accumulates allocation lengths per distinct full
// backtrace, so a report can summarize per-hotspot allocation-size
// statistics (spec section 3's `length` field on allocation events).
//
// Grounded on vroom's Welford-mean / R8-percentile internal/quantile,
// reused line-for-line rather than reimplemented.
type SizeTracker struct {
	byLabel map[string]*quantile.Quantile
}

// NewSizeTracker returns an empty tracker.
func NewSizeTracker() *SizeTracker {
	return &SizeTracker{byLabel: make(map[string]*quantile.Quantile)}
}

// Observe records one allocation's size against the full backtrace it
// came from, innermost-frame-first per the glossary.
func (s *SizeTracker) Observe(stack []location.ID, size uint64) {
	key := Label(stack)
	q, ok := s.byLabel[key]
	if !ok {
		q = &quantile.Quantile{}
		s.byLabel[key] = q
	}
	q.Add(float64(size))
}

// Percentiles returns the P50/P95 allocation sizes observed for the
// exact full backtrace whose label key is key. ok is false if no
// allocation was ever observed against that exact stack — sizes are
// reported only for hotspots that match a captured full stack, not for
// the substring prefixes the suffix tree also reports.
func (s *SizeTracker) Percentiles(key string) (p50, p95 float64, ok bool) {
	q, found := s.byLabel[key]
	if !found || len(q.Xs) == 0 {
		return 0, 0, false
	}
	return q.Percentile(0.5), q.Percentile(0.95), true
}

// Label renders a backtrace (or a suffix-tree hotspot's label, with its
// trailing terminator trimmed first) as the string key both the size
// tracker and the report use to correlate the two.
func Label(stack []location.ID) string {
	parts := make([]string, len(stack))
	for i, id := range stack {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ":")
}

// TrimTerminator drops a trailing suffixtree.Terminator token, if
// present, so a hotspot's label can be compared against a raw
// backtrace with Label.
func TrimTerminator(tokens []location.ID) []location.ID {
	if len(tokens) > 0 && tokens[len(tokens)-1] == location.ID(suffixtree.Terminator) {
		return tokens[:len(tokens)-1]
	}
	return tokens
}
