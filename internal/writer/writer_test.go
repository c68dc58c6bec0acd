package writer_test

import (
	"bytes"
	"testing"

	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/reader"
	"github.com/getsentry/memtrace/internal/testutil"
	"github.com/getsentry/memtrace/internal/writer"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

type fakeResolver struct{}

func (fakeResolver) Resolve(id location.ID) ([]location.Record, error) {
	return []location.Record{{
		Filename: "main.go",
		Defname:  "fn",
		Line:     uint32(id) % (1 << 20),
	}}, nil
}

type fakeClock struct{ seconds float64 }

func (c *fakeClock) NowSeconds() float64 {
	c.seconds += 0.001
	return c.seconds
}

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{}
	w := writer.New(nopCloser{&buf}, fakeResolver{}, clock)

	stacks := [][]location.ID{
		{10, 20, 30},
		{10, 20, 31},
		{10, 20, 31},
	}
	for _, stack := range stacks {
		if _, err := w.MinorAlloc(64, 1, stack); err != nil {
			t.Fatalf("MinorAlloc: %v", err)
		}
	}
	if err := w.Promote(0); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if err := w.MinorDealloc(0); err != nil {
		t.Fatalf("MinorDealloc: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	r := reader.NewReader(bytes.NewReader(buf.Bytes()))
	var allocs []reader.AllocEvent
	var sawPromote, sawCollect bool
	err := r.Each(func(ev reader.Event) error {
		switch {
		case ev.Alloc != nil:
			allocs = append(allocs, *ev.Alloc)
		case ev.Promote != nil:
			sawPromote = ev.Promote.ObjID == 0
		case ev.Collect != nil:
			sawCollect = ev.Collect.ObjID == 0
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}

	if len(allocs) != len(stacks) {
		t.Fatalf("expected %d allocations, got %d", len(stacks), len(allocs))
	}
	for i, alloc := range allocs {
		if diff := testutil.Diff(alloc.Callstack, stacks[i]); diff != "" {
			t.Errorf("alloc %d callstack mismatch: got - want +\n%s", i, diff)
		}
	}
	if allocs[2].CommonPrefixLen != 3 {
		t.Errorf("expected third allocation to share all 3 frames with the second, got common prefix %d", allocs[2].CommonPrefixLen)
	}
	if !sawPromote {
		t.Errorf("expected a promote event resolving to object 0")
	}
	if !sawCollect {
		t.Errorf("expected a collect event resolving to object 0")
	}

	if r.Table().Len() == 0 {
		t.Errorf("expected the reader's location table to be populated")
	}
}

func TestWriterEmptyTraceYieldsNoEvents(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{}
	w := writer.New(nopCloser{&buf}, fakeResolver{}, clock)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	r := reader.NewReader(bytes.NewReader(buf.Bytes()))
	count := 0
	err := r.Each(func(reader.Event) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if count != 0 {
		t.Errorf("expected zero events for an empty trace, got %d", count)
	}
}
