// Package location implements spec section 3's location ID and
// location record: an opaque program-counter identifier hashed for the
// backtrace cache's bucket selection, and the structured source
// position (file, line, start/end column) a location ID resolves to.
//
// The ID's own fingerprint is grounded on vroom's internal/frame.Frame's
// WriteToHash/ID() mixing, though this one mixes raw integers instead
// of hashing strings, since spec section 3 calls for multiplicative
// mixing of the 64-bit ID itself. PackageBaseName is grounded on
// vroom's internal/frame.Frame.PackageBaseName: the display-only path
// trim a report prints instead of a full filesystem path.
package location

import (
	"strings"
)

// ID identifies a program counter. Equality is value equality; Hash1
// and Hash2 disperse aligned addresses via the two independent
// multiplicative hashes spec section 4.4 calls for (two candidate cache buckets per
// location).
type ID uint64

// Multipliers below are odd 64-bit constants (2^64 divided by the
// golden ratio, and the xxHash64 PRIME64_2 constant), chosen so the
// two hashes decorrelate aligned addresses the way spec section 3
// requires ("a large odd multiplier followed by right shift").
const (
	mul1 = 0x9E3779B97F4A7C15
	mul2 = 0xC2B2AE3D27D4EB4F
)

// bucketBits is the backtrace cache's 2^15-bucket index width (spec
// section 3, section 4.4).
const bucketBits = 15

// Hash1 returns the first of the two candidate bucket indices for id.
func (id ID) Hash1() uint32 {
	return uint32((uint64(id) * mul1) >> (64 - bucketBits))
}

// Hash2 returns the second of the two candidate bucket indices for id,
// derived from an independent multiplier so it very rarely collides
// with Hash1 for the same id.
func (id ID) Hash2() uint32 {
	return uint32((uint64(id) * mul2) >> (64 - bucketBits))
}

// Record is spec section 3's location_record: a source position with
// an inlined-frame filename that the caller is expected to pass
// through the MTF table before putting it on the wire (spec section
// 6). Line and column widths mirror the wire's bit-packed fields so
// validation can happen once, at construction, rather than at encode
// time.
type Record struct {
	Filename string
	Defname  string
	Line     uint32 // clamped to 20 bits on the wire
	StartCol uint32 // clamped to 8 bits on the wire
	EndCol   uint32 // clamped to 10 bits on the wire
}

// Clamp masks Line/StartCol/EndCol down to the widths the wire format
// reserves for them (spec section 6's location_record bit layout),
// rather than overflowing into adjacent fields.
func (r Record) Clamp() Record {
	r.Line &= (1 << 20) - 1
	r.StartCol &= (1 << 8) - 1
	r.EndCol &= (1 << 10) - 1
	return r
}

// PackageBaseName trims r.Filename down to its last path component,
// the same display shortening vroom's Frame.PackageBaseName applies to
// a frame's package/module path, so a report can print a short label
// instead of a full filesystem path. It accepts either path separator,
// since a trace written on one platform may be read on another.
func (r Record) PackageBaseName() string {
	f := r.Filename
	if f == "" {
		return ""
	}
	if i := strings.LastIndexAny(f, `/\`); i >= 0 {
		return f[i+1:]
	}
	return f
}

// Table resolves location IDs to their ordered (inlined, outermost
// first) record list. It is the "external map populated by location
// events" spec section 4.6 hands to the reader's consumer.
type Table struct {
	records map[ID][]Record
}

// NewTable returns an empty location table.
func NewTable() *Table {
	return &Table{records: make(map[ID][]Record)}
}

// Lookup returns the record list for id, or (nil, false) if id has
// never been declared by a location event.
func (t *Table) Lookup(id ID) ([]Record, bool) {
	r, ok := t.records[id]
	return r, ok
}

// Insert declares id's record list for the first time. The caller
// (the reader) is responsible for spec section 4.6's re-declaration
// check: Insert must only be called once per id.
func (t *Table) Insert(id ID, records []Record) {
	t.records[id] = records
}

// Has reports whether id has already been declared.
func (t *Table) Has(id ID) bool {
	_, ok := t.records[id]
	return ok
}

// Len returns the number of distinct locations declared so far.
func (t *Table) Len() int {
	return len(t.records)
}
