package hotspot

import (
	"testing"

	gojson "github.com/goccy/go-json"
	jsoniter "github.com/json-iterator/go"

	"github.com/getsentry/memtrace/internal/suffixtree"
)

func tok(vs ...int) []suffixtree.Token {
	out := make([]suffixtree.Token, len(vs))
	for i, v := range vs {
		out[i] = suffixtree.Token(v)
	}
	return out
}

func benchmarkReport() Report {
	forest := BuildForest([]suffixtree.Hotspot{
		{Label: tok(1, 2, 3), Total: 500, Light: 480, Upper: 510},
		{Label: tok(1, 2, 4), Total: 200, Light: 190, Upper: 210},
		{Label: tok(1, 5), Total: 100, Light: 90, Upper: 110},
	})
	return Report{Frequency: 0.01, Hotspots: forest}
}

// BenchmarkGoJSON and BenchmarkJsonIterator compare the two encoders
// this tree carries over the same payload, the pair grounded directly
// on vroom's internal/storageutil benchmark of the same name.

func BenchmarkGoJSON(b *testing.B) {
	r := benchmarkReport()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := gojson.Marshal(r); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJsonIterator(b *testing.B) {
	r := benchmarkReport()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := jsoniter.Marshal(r); err != nil {
			b.Fatal(err)
		}
	}
}
