// Package packet implements spec section 4.2's CTF packet framer: the
// fixed 44-byte packet header, its write-placeholder/seal lifecycle,
// and the 25-bit low-resolution event timestamp reconstruction rule
// every event header on the wire relies on.
//
// Grounded on the CTF packet-header conventions spec section 4.2
// names directly; no CTF reader/writer library appears in the
// retrieved examples, so the header layout is built straight off
// bytebuf the way the rest of this codec is.
package packet

import (
	"github.com/getsentry/memtrace/internal/bytebuf"
	"github.com/getsentry/memtrace/internal/errorutil"
)

// Magic is the packet header's fixed magic number (spec section 3).
const Magic = 0xc1fc1fc1

// HeaderSize is the fixed on-wire size of a packet header in bytes:
// two u32 size fields, one u32 magic, four u64 fields.
const HeaderSize = 4 + 4 + 4 + 8 + 8 + 8 + 8

// EventTimestampBits is the width of the low-resolution timestamp
// field stored in every event header (spec section 4.2 and 6).
const EventTimestampBits = 25

const eventTimestampMask = (uint64(1) << EventTimestampBits) - 1

// Header is the CTF packet header of spec section 3/4.2. PacketSize
// and ContentSize are measured in bits, per the wire format; spec
// section 4.2 requires them to be equal for every packet this codec
// produces or accepts.
type Header struct {
	PacketSizeBits  uint32
	ContentSizeBits uint32
	TsBegin         uint64
	TsEnd           uint64
	AllocIDBegin    uint64
	AllocIDEnd      uint64
}

// WriteHeader serializes h in the fixed 44-byte layout.
func WriteHeader(buf *bytebuf.Buffer, h Header) error {
	if err := buf.PutU32(Magic); err != nil {
		return err
	}
	if err := buf.PutU32(h.PacketSizeBits); err != nil {
		return err
	}
	if err := buf.PutU32(h.ContentSizeBits); err != nil {
		return err
	}
	if err := buf.PutU64(h.TsBegin); err != nil {
		return err
	}
	if err := buf.PutU64(h.TsEnd); err != nil {
		return err
	}
	if err := buf.PutU64(h.AllocIDBegin); err != nil {
		return err
	}
	return buf.PutU64(h.AllocIDEnd)
}

// ReadHeader parses and validates a packet header per spec section
// 4.2: magic must match, packet size must equal content size, and
// both the timestamp and allocation-ID intervals must be
// non-decreasing.
func ReadHeader(buf *bytebuf.Buffer) (Header, error) {
	var h Header
	magic, err := buf.GetU32()
	if err != nil {
		return h, err
	}
	if magic != Magic {
		return h, errorutil.Errorf("bad packet magic: got 0x%x, want 0x%x", magic, Magic)
	}
	if h.PacketSizeBits, err = buf.GetU32(); err != nil {
		return h, err
	}
	if h.ContentSizeBits, err = buf.GetU32(); err != nil {
		return h, err
	}
	if h.PacketSizeBits != h.ContentSizeBits {
		return h, errorutil.Errorf("packet size %d bits != content size %d bits", h.PacketSizeBits, h.ContentSizeBits)
	}
	if h.TsBegin, err = buf.GetU64(); err != nil {
		return h, err
	}
	if h.TsEnd, err = buf.GetU64(); err != nil {
		return h, err
	}
	if h.TsBegin > h.TsEnd {
		return h, errorutil.Errorf("packet timestamps non-monotone: begin=%d end=%d", h.TsBegin, h.TsEnd)
	}
	if h.AllocIDBegin, err = buf.GetU64(); err != nil {
		return h, err
	}
	if h.AllocIDEnd, err = buf.GetU64(); err != nil {
		return h, err
	}
	if h.AllocIDBegin > h.AllocIDEnd {
		return h, errorutil.Errorf("packet alloc-id interval inverted: begin=%d end=%d", h.AllocIDBegin, h.AllocIDEnd)
	}
	return h, nil
}

// TruncateTimestamp extracts the 25-bit low-resolution field stored
// in an event header for the absolute microsecond tick ts.
func TruncateTimestamp(ts uint64) uint32 {
	return uint32(ts & eventTimestampMask)
}

// ReconstructTimestamp rebuilds an event's absolute timestamp from
// the packet's begin-time and the event's stored 25-bit field, per
// spec section 4.2's single-overflow rule: if the stored low bits
// fall below tsBegin's low bits, the high bits are incremented by one
// before splicing, to account for exactly one wrap of the 25-bit
// counter since the packet began.
func ReconstructTimestamp(tsBegin uint64, low25 uint32) uint64 {
	high := tsBegin &^ eventTimestampMask
	beginLow := tsBegin & eventTimestampMask
	if uint64(low25) < beginLow {
		high += uint64(1) << EventTimestampBits
	}
	return high | uint64(low25)
}
