// Package backtracecache implements spec sections 3 and 4.4's
// backtrace cache: a fixed 2^15-bucket direct-mapped cache of location
// IDs with age-based eviction and a per-bucket next-location
// predictor, used by the writer to compress a stack's non-shared
// suffix to a handful of codewords and by the reader to mirror those
// decisions exactly.
//
// No general-purpose LRU or predictive cache library in the retrieved
// examples matches this two-candidate-bucket, predictor-chained shape,
// so it is built directly against the spec's own algorithm.
//
// Decision (recorded in DESIGN.md): spec section 4.4 and section 6
// give two different codeword bit-layouts for the same wire concept
// (a 1-bit tag over a 15-bit bucket field in 4.4; a 2-bit tag over a
// 14-bit bucket field in 6, which cannot address all 2^15 buckets
// section 3 requires). This package implements section 4.4's literal
// layout, which is internally consistent with the 2^15-bucket cache;
// the round-trip property (spec section 8) only requires this
// package's own encoder and decoder to agree with each other, not with
// an external reference wire trace.
package backtracecache

import "github.com/getsentry/memtrace/internal/location"

// NumBuckets is the cache's fixed bucket count (spec section 3: "array
// of 2^15 buckets").
const NumBuckets = 1 << 15

const bucketMask = NumBuckets - 1

// maxRun is the 8-bit run-length saturation point (spec section 4.4).
const maxRun = 255

// Cache is the writer-private or reader-mirrored backtrace cache.
// Both sides build one with New and drive it exclusively through
// Encode/Decode so their bucket/date/next state stays in lockstep.
type Cache struct {
	loc  [NumBuckets]location.ID
	date [NumBuckets]uint64
	next [NumBuckets]uint32
}

// New returns an empty cache: all buckets hold location ID 0 with date
// 0, which is indistinguishable from "never used" because allocation
// IDs (the date source) start at 0 too and a real location ID of
// exactly 0 colliding with the sentinel is the one pre-existing corner
// case spec section 3 doesn't resolve; this package treats it like
// any other value, since the cache's correctness doesn't depend on 0
// being special, only on both sides tracking the same state.
func New() *Cache {
	return &Cache{}
}

// Code is one wire codeword plus its payload, independent of how it
// is bit-packed. Bucket is always the bucket the codeword refers to
// before any prediction extension; for a hit, Run is the number of
// additional frames consumed by following the predictor chain.
type Code struct {
	Bucket  uint32
	IsHit   bool
	Run     uint8
	Literal location.ID // valid only when !IsHit
}

// candidates returns the two hash-derived candidate buckets for id.
func candidates(id location.ID) (uint32, uint32) {
	return id.Hash1() & bucketMask, id.Hash2() & bucketMask
}

// lookup finds id among its two candidate buckets, returning the
// bucket and true on a hit.
func (c *Cache) lookup(id location.ID) (uint32, bool) {
	h1, h2 := candidates(id)
	if c.loc[h1] == id {
		return h1, true
	}
	if c.loc[h2] == id {
		return h2, true
	}
	return 0, false
}

// install evicts the older-dated of id's two candidate buckets and
// installs id there, returning the chosen bucket.
func (c *Cache) install(id location.ID, date uint64) uint32 {
	h1, h2 := candidates(id)
	victim := h1
	if c.date[h2] < c.date[h1] {
		victim = h2
	}
	c.loc[victim] = id
	c.date[victim] = date
	return victim
}

// touch refreshes bucket's recency date without changing its
// location, used both on a direct hit and on a predicted hit, so
// eviction always compares true least-recently-used candidates.
func (c *Cache) touch(bucket uint32, date uint64) {
	c.date[bucket] = date
}

// Encode compresses frames (already the non-shared suffix of a stack,
// in oldest-new-to-newest order per spec section 4.4) into a sequence
// of codewords. date is the allocation ID driving recency.
func (c *Cache) Encode(frames []location.ID, date uint64) []Code {
	codes := make([]Code, 0, len(frames))
	var predictor uint32
	i := 0
	for i < len(frames) {
		id := frames[i]
		bucket, hit := c.lookup(id)
		if !hit {
			bucket = c.install(id, date)
			c.next[predictor] = bucket
			codes = append(codes, Code{Bucket: bucket, IsHit: false, Literal: id})
			predictor = bucket
			i++
			continue
		}
		c.touch(bucket, date)
		c.next[predictor] = bucket
		run := 0
		chosen := bucket
		j := i + 1
		for j < len(frames) && run < maxRun {
			predicted := c.next[chosen]
			if c.loc[predicted] != frames[j] {
				break
			}
			c.touch(predicted, date)
			chosen = predicted
			run++
			j++
		}
		codes = append(codes, Code{Bucket: bucket, IsHit: true, Run: uint8(run)})
		predictor = chosen
		i += 1 + run
	}
	return codes
}

// Decode mirrors Encode exactly, replaying codes against the same
// cache state to reconstruct the original frame sequence.
func (c *Cache) Decode(codes []Code, date uint64) []location.ID {
	var frames []location.ID
	var predictor uint32
	for _, code := range codes {
		if !code.IsHit {
			c.loc[code.Bucket] = code.Literal
			c.touch(code.Bucket, date)
			c.next[predictor] = code.Bucket
			frames = append(frames, code.Literal)
			predictor = code.Bucket
			continue
		}
		bucket := code.Bucket
		c.touch(bucket, date)
		c.next[predictor] = bucket
		frames = append(frames, c.loc[bucket])
		chosen := bucket
		for r := 0; r < int(code.Run); r++ {
			predicted := c.next[chosen]
			c.touch(predicted, date)
			frames = append(frames, c.loc[predicted])
			chosen = predicted
		}
		predictor = chosen
	}
	return frames
}
