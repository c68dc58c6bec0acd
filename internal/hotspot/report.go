package hotspot

import (
	gojson "github.com/goccy/go-json"

	"github.com/getsentry/memtrace/internal/timeutil"
)

// Report is the --json rendering of a run: the nested hotspot forest
// plus an optional cross-trace merge in Merged. cmd/hotspot analyzes a
// single trace per run and leaves Merged empty. Grounded on the same report shape vroom's
// profile/occurrence payloads take: a flat struct marshaled straight
// through, no intermediate DTO layer. GeneratedAt follows vroom's
// internal/profile.LegacyProfile.Received field: a timeutil.Time so a
// consumer re-ingesting the report can hand it either an RFC3339
// string or a raw Unix timestamp.
type Report struct {
	GeneratedAt timeutil.Time  `json:"generated_at"`
	Frequency   float64        `json:"frequency"`
	Hotspots    []*Node        `json:"hotspots"`
	Merged      []StackMetrics `json:"merged,omitempty"`
}

// Encode marshals r with goccy/go-json, mirroring vroom's preference
// for it over encoding/json on the hot path.
func Encode(r Report) ([]byte, error) {
	return gojson.Marshal(r)
}
