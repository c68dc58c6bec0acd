package trace

import "github.com/getsentry/memtrace/internal/location"

// CommonPrefixLen returns the number of frames prev and cur share at
// the deep (older) end of the stack (spec section 3's "common prefix
// / suffix"). Stacks are stored innermost-frame-first, so the shared
// deep frames are a common *suffix* of the two slices; this is the
// quantity spec section 4.5 calls common_prefix_len and has the
// writer compute against the previous allocation's raw stack.
func CommonPrefixLen(prev, cur []location.ID) int {
	n := len(prev)
	if len(cur) < n {
		n = len(cur)
	}
	i := 0
	for i < n && prev[len(prev)-1-i] == cur[len(cur)-1-i] {
		i++
	}
	return i
}

// NewSuffixOldestFirst returns the non-shared (recent) frames of cur
// beyond commonPrefixLen, reordered oldest-new-frame-first — the
// order spec section 4.4 requires the backtrace cache codec to walk.
func NewSuffixOldestFirst(cur []location.ID, commonPrefixLen int) []location.ID {
	newest := cur[:len(cur)-commonPrefixLen]
	out := make([]location.ID, len(newest))
	for i, id := range newest {
		out[len(newest)-1-i] = id
	}
	return out
}

// RebuildStack reassembles a full stack from a decoded oldest-first
// new-frame suffix and the shared deep frames of the previous stack,
// inverting NewSuffixOldestFirst/CommonPrefixLen.
func RebuildStack(prev []location.ID, newSuffixOldestFirst []location.ID, commonPrefixLen int) []location.ID {
	out := make([]location.ID, 0, len(newSuffixOldestFirst)+commonPrefixLen)
	for i := len(newSuffixOldestFirst) - 1; i >= 0; i-- {
		out = append(out, newSuffixOldestFirst[i])
	}
	if commonPrefixLen > 0 {
		out = append(out, prev[len(prev)-commonPrefixLen:]...)
	}
	return out
}
