package packet_test

import (
	"testing"

	"github.com/getsentry/memtrace/internal/bytebuf"
	"github.com/getsentry/memtrace/internal/packet"
)

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	want := packet.Header{
		PacketSizeBits:  64,
		ContentSizeBits: 64,
		TsBegin:         1000,
		TsEnd:           2000,
		AllocIDBegin:    5,
		AllocIDEnd:      9,
	}
	buf := bytebuf.New(make([]byte, packet.HeaderSize))
	if err := packet.WriteHeader(buf, want); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	buf.Seek(0)
	got, err := packet.ReadHeader(buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := bytebuf.New(make([]byte, packet.HeaderSize))
	buf.PutU32(0xdeadbeef)
	for i := 0; i < 5; i++ {
		buf.PutU64(0)
	}
	buf.Seek(0)
	if _, err := packet.ReadHeader(buf); err == nil {
		t.Fatal("expected an error for bad magic")
	}
}

func TestReadHeaderRejectsSizeMismatch(t *testing.T) {
	buf := bytebuf.New(make([]byte, packet.HeaderSize))
	buf.PutU32(packet.Magic)
	buf.PutU32(64)
	buf.PutU32(32)
	for i := 0; i < 4; i++ {
		buf.PutU64(0)
	}
	buf.Seek(0)
	if _, err := packet.ReadHeader(buf); err == nil {
		t.Fatal("expected an error for packet/content size mismatch")
	}
}

func TestReconstructTimestampSingleOverflow(t *testing.T) {
	const bits = packet.EventTimestampBits
	tsBegin := uint64(1) << bits // low bits all zero
	// An event whose low 25 bits are small should splice onto the same
	// high bits as tsBegin, since nothing has wrapped yet.
	got := packet.ReconstructTimestamp(tsBegin, 5)
	if got != tsBegin+5 {
		t.Errorf("no-wrap case: got %d, want %d", got, tsBegin+5)
	}

	// tsBegin with nonzero low bits; an event whose stored low25 is
	// smaller than tsBegin's low bits must have wrapped exactly once.
	tsBegin2 := tsBegin + 100
	got2 := packet.ReconstructTimestamp(tsBegin2, 5)
	want2 := tsBegin2 - 100 + (uint64(1) << bits) + 5
	if got2 != want2 {
		t.Errorf("wrap case: got %d, want %d", got2, want2)
	}
}

func TestTruncateTimestampRoundTripsWithinOnePacket(t *testing.T) {
	ts := uint64(123456789)
	low := packet.TruncateTimestamp(ts)
	got := packet.ReconstructTimestamp(ts, low)
	if got != ts {
		t.Errorf("got %d, want %d", got, ts)
	}
}
