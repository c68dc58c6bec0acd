// Package reader implements spec section 4.6: parsing a finalized
// trace stream packet by packet and yielding a timestamped event
// iterator to a consumer callback, maintaining the location lookup
// table and a parallel backtrace cache mirroring the writer's.
package reader

import (
	"io"

	"github.com/getsentry/memtrace/internal/backtracecache"
	"github.com/getsentry/memtrace/internal/bytebuf"
	"github.com/getsentry/memtrace/internal/errorutil"
	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/packet"
	"github.com/getsentry/memtrace/internal/trace"
)

// LocationEvent, AllocEvent, PromoteEvent and CollectEvent are the
// event shapes the reader hands to a consumer; allocation and
// promote/collect events carry the resolved allocation ID already
// (spec section 4.6), not the raw delta.
type LocationEvent struct {
	ID      location.ID
	Records []location.Record
}

type AllocEvent struct {
	ObjID           uint64
	Length          uint64
	Samples         uint64
	IsMajor         bool
	CommonPrefixLen uint64
	Callstack       []location.ID
}

type PromoteEvent struct {
	ObjID uint64
}

type CollectEvent struct {
	ObjID uint64
}

// Event is a timestamped union of the four event kinds; exactly one
// of the typed fields is non-nil.
type Event struct {
	Timestamp uint64
	Location  *LocationEvent
	Alloc     *AllocEvent
	Promote   *PromoteEvent
	Collect   *CollectEvent
}

// Consumer receives each event in stream order, per spec section 4.6.
// Returning an error aborts iteration.
type Consumer func(Event) error

// Reader parses a finalized trace stream.
type Reader struct {
	src   io.Reader
	codec *trace.LocationCodec
	cache *backtracecache.Cache
	table *location.Table
	stack []location.ID
}

// NewReader returns a reader over src. Table exposes the reader's
// location lookup table, populated as location events are parsed, to
// callers that want to resolve IDs in their own report formatting.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:   src,
		codec: trace.NewLocationCodec(),
		cache: backtracecache.New(),
		table: location.NewTable(),
	}
}

// Table returns the reader's location lookup table.
func (r *Reader) Table() *location.Table { return r.table }

// Each parses the stream packet by packet, calling consume for every
// event, in order, with timestamps reconstructed per spec section 4.2.
func (r *Reader) Each(consume Consumer) error {
	nextAllocID := uint64(0)
	sawAnyPacket := false
	for {
		hdr, body, err := r.readPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		sawAnyPacket = true
		if hdr.AllocIDBegin != nextAllocID {
			return errorutil.Errorf("packet alloc-id begin %d does not abut prior end %d", hdr.AllocIDBegin, nextAllocID)
		}
		if err := r.eachInPacket(hdr, body, consume); err != nil {
			return err
		}
		nextAllocID = hdr.AllocIDEnd
	}
	if !sawAnyPacket {
		return errorutil.ErrNoResults
	}
	return nil
}

func (r *Reader) readPacket() (packet.Header, *bytebuf.Buffer, error) {
	var hdrBytes [packet.HeaderSize]byte
	if _, err := io.ReadFull(r.src, hdrBytes[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return packet.Header{}, nil, io.EOF
		}
		return packet.Header{}, nil, err
	}
	hdrBuf := bytebuf.New(hdrBytes[:])
	hdr, err := packet.ReadHeader(hdrBuf)
	if err != nil {
		return packet.Header{}, nil, err
	}
	if hdr.ContentSizeBits%8 != 0 {
		return packet.Header{}, nil, errorutil.Errorf("packet content size %d not byte-aligned", hdr.ContentSizeBits)
	}
	contentLen := int(hdr.ContentSizeBits / 8)
	content := make([]byte, contentLen)
	if _, err := io.ReadFull(r.src, content); err != nil {
		return packet.Header{}, nil, err
	}
	return hdr, bytebuf.New(content), nil
}

func (r *Reader) eachInPacket(hdr packet.Header, body *bytebuf.Buffer, consume Consumer) error {
	allocID := hdr.AllocIDBegin
	lastTS := hdr.TsBegin
	for body.Remaining() > 0 {
		code, low25, err := trace.DecodeHeader(body)
		if err != nil {
			return err
		}
		ts := packet.ReconstructTimestamp(hdr.TsBegin, low25)
		if ts < hdr.TsBegin || ts > hdr.TsEnd {
			return errorutil.Errorf("event timestamp %d outside packet bounds [%d,%d]", ts, hdr.TsBegin, hdr.TsEnd)
		}
		if ts < lastTS {
			return errorutil.Errorf("event timestamps non-monotone within packet: %d after %d", ts, lastTS)
		}
		lastTS = ts

		switch code {
		case trace.EventLocation:
			id, records, err := trace.DecodeLocationEvent(body, r.codec)
			if err != nil {
				return err
			}
			if existing, ok := r.table.Lookup(id); ok {
				if !recordsEqual(existing, records) {
					return errorutil.Errorf("location %d redeclared with different records", id)
				}
			} else {
				r.table.Insert(id, records)
			}
			if err := consume(Event{Timestamp: ts, Location: &LocationEvent{ID: id, Records: records}}); err != nil {
				return err
			}

		case trace.EventAlloc:
			ev, err := trace.DecodeAllocEvent(body)
			if err != nil {
				return err
			}
			decoded := r.cache.Decode(ev.Codes, allocID)
			stack := trace.RebuildStack(r.stack, decoded, int(ev.CommonPrefixLen))
			r.stack = stack
			objID := allocID
			allocID++
			if err := consume(Event{Timestamp: ts, Alloc: &AllocEvent{
				ObjID:           objID,
				Length:          ev.Length,
				Samples:         ev.Samples,
				IsMajor:         ev.IsMajor,
				CommonPrefixLen: ev.CommonPrefixLen,
				Callstack:       stack,
			}}); err != nil {
				return err
			}

		case trace.EventPromote:
			delta, err := trace.DecodeDelta(body)
			if err != nil {
				return err
			}
			objID, err := trace.ResolveDelta(allocID, delta)
			if err != nil {
				return err
			}
			if err := consume(Event{Timestamp: ts, Promote: &PromoteEvent{ObjID: objID}}); err != nil {
				return err
			}

		case trace.EventCollect:
			delta, err := trace.DecodeDelta(body)
			if err != nil {
				return err
			}
			objID, err := trace.ResolveDelta(allocID, delta)
			if err != nil {
				return err
			}
			if err := consume(Event{Timestamp: ts, Collect: &CollectEvent{ObjID: objID}}); err != nil {
				return err
			}

		default:
			return errorutil.Errorf("unknown event code %d", code)
		}
	}
	if allocID != hdr.AllocIDEnd {
		return errorutil.Errorf("packet alloc-id end mismatch: counted %d, header says %d", allocID, hdr.AllocIDEnd)
	}
	return nil
}

func recordsEqual(a, b []location.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
