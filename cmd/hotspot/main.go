// Command hotspot is spec section 6's analyzer CLI: it reads a
// finalized trace, feeds every allocation's backtrace into a streaming
// heavy-hitter suffix tree, and writes a ranked report to stdout.
//
// Grounded on cmd/issuedetection's open-file/decompress/analyze/report
// shape (the closest teacher analog to a one-shot trace analyzer), with
// the startup sequence — sentry.Init, logutil.ConfigureLogger, and
// errorutil.IsCodecError-gated sentry.CaptureException — taken from
// cmd/cleanup, since issuedetection itself has none.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/memtrace/internal/config"
	"github.com/getsentry/memtrace/internal/errorutil"
	"github.com/getsentry/memtrace/internal/hotspot"
	"github.com/getsentry/memtrace/internal/location"
	"github.com/getsentry/memtrace/internal/logutil"
	"github.com/getsentry/memtrace/internal/reader"
	"github.com/getsentry/memtrace/internal/storageprovider"
	"github.com/getsentry/memtrace/internal/storageutil"
	"github.com/getsentry/memtrace/internal/suffixtree"
	"github.com/getsentry/memtrace/internal/timeutil"
)

// lossyCountingErrorRate bounds the suffix tree's memory at the cost of
// precision (spec section 4.8); the CLI's own frequency floor is a
// separate, user-facing knob (spec section 6).
const lossyCountingErrorRate = 0.001

func main() {
	logutil.ConfigureLogger()

	jsonOut := flag.Bool("json", false, "emit the report as JSON instead of the default text listing")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: hotspot <trace-file> [frequency]")
		os.Exit(2)
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("hotspot: failed to load configuration")
	}
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Error().Err(err).Msg("hotspot: failed to initialize sentry")
		}
	}

	frequency := cfg.Frequency
	if len(args) >= 2 {
		f, err := strconv.ParseFloat(args[1], 64)
		if err != nil || f <= 0 || f > 1 {
			fmt.Fprintf(os.Stderr, "hotspot: invalid frequency %q, must be in (0,1]\n", args[1])
			os.Exit(1)
		}
		frequency = f
	}

	if err := run(args[0], frequency, *jsonOut); err != nil {
		if !errorutil.IsCodecError(err) {
			sentry.CaptureException(err)
		}
		fmt.Fprintf(os.Stderr, "hotspot: %v\n", err)
		os.Exit(1)
	}
}

func run(tracePath string, frequency float64, jsonOut bool) error {
	ctx := context.Background()
	local := &storageprovider.Local{}
	src, err := storageutil.OptionalDecompress(ctx, local, tracePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", tracePath, err)
	}
	defer src.Close()

	r := reader.NewReader(src)
	tree := suffixtree.New(lossyCountingErrorRate)
	sizes := hotspot.NewSizeTracker()

	err = r.Each(func(ev reader.Event) error {
		if ev.Alloc == nil {
			return nil
		}
		tokens := make([]suffixtree.Token, 0, len(ev.Alloc.Callstack)+1)
		seen := make(map[location.ID]bool, len(ev.Alloc.Callstack))
		for _, id := range ev.Alloc.Callstack {
			if seen[id] {
				continue
			}
			seen[id] = true
			tokens = append(tokens, suffixtree.Token(id))
		}
		tokens = append(tokens, suffixtree.Terminator)
		tree.Insert(tokens, 1)
		sizes.Observe(ev.Alloc.Callstack, ev.Alloc.Length)
		return nil
	})
	if err == errorutil.ErrNoResults {
		log.Warn().Str("trace", tracePath).Msg("hotspot: trace contained no packets")
		err = nil
	}
	if err != nil {
		return err
	}

	enumerated := tree.Enumerate(frequency)
	forest := hotspot.CollapseForest(hotspot.BuildForest(enumerated))

	if jsonOut {
		out, err := hotspot.Encode(hotspot.Report{
			GeneratedAt: timeutil.Time(time.Now()),
			Frequency:   frequency,
			Hotspots:    forest,
		})
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printReport(forest, r.Table(), sizes)
	return nil
}

func printReport(forest []*hotspot.Node, table *location.Table, sizes *hotspot.SizeTracker) {
	if len(forest) == 0 {
		fmt.Println("no hotspots found")
		return
	}
	for _, n := range forest {
		printNode(n, table, sizes, 0, nil)
	}
}

func printNode(n *hotspot.Node, table *location.Table, sizes *hotspot.SizeTracker, depth int, prefix []location.ID) {
	path := append(append([]location.ID{}, prefix...), n.Frame)

	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s  total=%.0f light=%.0f upper=%.0f", indent, frameLabel(table, n.Frame), n.Total, n.Light, n.Upper)
	if p50, p95, ok := sizes.Percentiles(hotspot.Label(path)); ok {
		line += fmt.Sprintf(" size(p50=%.0f p95=%.0f)", p50, p95)
	}
	fmt.Println(line)

	for _, child := range n.Children {
		printNode(child, table, sizes, depth+1, path)
	}
}

func frameLabel(table *location.Table, id location.ID) string {
	records, ok := table.Lookup(id)
	if !ok || len(records) == 0 {
		return fmt.Sprintf("0x%x", uint64(id))
	}
	r := records[0]
	if r.Defname != "" {
		return fmt.Sprintf("%s (%s:%d)", r.Defname, r.PackageBaseName(), r.Line)
	}
	return fmt.Sprintf("%s:%d", r.PackageBaseName(), r.Line)
}
