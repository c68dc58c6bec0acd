package backtracecache

import (
	"testing"

	"github.com/getsentry/memtrace/internal/bytebuf"
	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/testutil"
)

func idsOf(vs ...uint64) []location.ID {
	out := make([]location.ID, len(vs))
	for i, v := range vs {
		out[i] = location.ID(v)
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := New()
	dec := New()

	frames := idsOf(100, 200, 300, 400)
	codes := enc.Encode(frames, 1)
	got := dec.Decode(codes, 1)

	if diff := testutil.Diff(got, frames); diff != "" {
		t.Fatalf("round trip mismatch: got - want +\n%s", diff)
	}
}

func TestEncodeReusesPredictorOnRepeatedStack(t *testing.T) {
	enc := New()
	dec := New()

	frames := idsOf(1, 2, 3)

	// First occurrence: every frame is a literal miss.
	codes1 := enc.Encode(frames, 1)
	for i, c := range codes1 {
		if c.IsHit {
			t.Fatalf("code %d: expected a miss on first insertion, got a hit", i)
		}
	}
	got1 := dec.Decode(codes1, 1)
	if diff := testutil.Diff(got1, frames); diff != "" {
		t.Fatalf("round trip 1 mismatch: got - want +\n%s", diff)
	}

	// Second occurrence of the identical sequence should collapse into
	// a single hit-with-run codeword, since every frame is already
	// cached and the predictor chain was built by the first pass.
	codes2 := enc.Encode(frames, 2)
	if len(codes2) != 1 {
		t.Fatalf("expected the repeated stack to collapse into one codeword, got %d", len(codes2))
	}
	if !codes2[0].IsHit || codes2[0].Run != uint8(len(frames)-1) {
		t.Fatalf("expected a hit with run %d, got %+v", len(frames)-1, codes2[0])
	}

	got2 := dec.Decode(codes2, 2)
	if diff := testutil.Diff(got2, frames); diff != "" {
		t.Fatalf("round trip 2 mismatch: got - want +\n%s", diff)
	}
}

func TestEncodeDecodeDivergentTail(t *testing.T) {
	enc := New()
	dec := New()

	first := idsOf(1, 2, 3)
	second := idsOf(1, 2, 4)

	codes1 := enc.Encode(first, 1)
	got1 := dec.Decode(codes1, 1)
	if diff := testutil.Diff(got1, first); diff != "" {
		t.Fatalf("round trip 1 mismatch: got - want +\n%s", diff)
	}

	codes2 := enc.Encode(second, 2)
	got2 := dec.Decode(codes2, 2)
	if diff := testutil.Diff(got2, second); diff != "" {
		t.Fatalf("round trip 2 mismatch: got - want +\n%s", diff)
	}
}

func TestWriteReadCodesRoundTrip(t *testing.T) {
	enc := New()
	frames := idsOf(1, 2, 3, 1, 2, 4)
	codes := enc.Encode(frames, 1)

	buf := bytebuf.New(make([]byte, 4096))
	if err := WriteCodes(buf, codes); err != nil {
		t.Fatalf("WriteCodes: %v", err)
	}
	buf.Seek(0)
	got, err := ReadCodes(buf)
	if err != nil {
		t.Fatalf("ReadCodes: %v", err)
	}
	if diff := testutil.Diff(got, codes); diff != "" {
		t.Fatalf("round trip mismatch: got - want +\n%s", diff)
	}
}
