// Command retention is spec section 3.6's cron job: it walks the
// configured traces directory daily and removes finalized trace files
// older than the configured retention window. TracesBackend selects
// whether that's a plain filesystem walk or a sweep over an embedded
// Badger database's keys.
//
// Adapted directly from cmd/cleanup/cleanup.go, generalized from a
// hardcoded profiles path/env var pair to internal/config, and with
// the stale github.com/getsentry/vroom/internal/logutil import fixed
// to this module's own path.
package main

import (
	"errors"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/memtrace/internal/config"
	"github.com/getsentry/memtrace/internal/logutil"
	"github.com/getsentry/memtrace/internal/storageprovider"
)

// cleanup prunes tracesPath of everything older than timeLimit,
// dispatching to a filesystem walk or a Badger sweep depending on
// backend.
func cleanup(backend, tracesPath string, timeLimit time.Time) error {
	if backend == "badger" {
		return cleanupBadger(tracesPath, timeLimit)
	}
	return cleanupLocal(tracesPath, timeLimit)
}

// cleanupBadger opens the Badger database at tracesPath and deletes
// every entry last written before timeLimit.
func cleanupBadger(tracesPath string, timeLimit time.Time) error {
	db, err := badger.Open(badger.DefaultOptions(tracesPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return err
	}
	defer db.Close()

	b := &storageprovider.Badger{DB: db}
	n, err := b.Sweep(timeLimit)
	if err != nil {
		return err
	}
	log.Info().Int("removed", n).Str("traces_path", tracesPath).Msg("retention: swept badger traces")
	return nil
}

// cleanupLocal removes every .ctf file under tracesPath last modified
// before timeLimit, recursing into subdirectories.
func cleanupLocal(tracesPath string, timeLimit time.Time) error {
	dirEntries, err := os.ReadDir(tracesPath)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		full := path.Join(tracesPath, entry.Name())

		if entry.IsDir() {
			if err := cleanupLocal(full, timeLimit); err != nil {
				return err
			}
			continue
		}

		if filepath.Ext(entry.Name()) != ".ctf" {
			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}

		if timeLimit.After(fileInfo.ModTime()) {
			if err := os.Remove(full); err != nil {
				return err
			}
		}
	}

	return nil
}

func main() {
	logutil.ConfigureLogger()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("retention: failed to load configuration")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatal().Err(err).Msg("retention: can't initialize sentry")
		}
	}

	c := cron.New()
	_, err = c.AddFunc("@daily", func() {
		timeLimit := time.Now().Add(time.Hour * 24 * -1 * time.Duration(cfg.RetentionDays))
		if err := cleanup(cfg.TracesBackend, cfg.TracesPath, timeLimit); err != nil {
			sentry.CaptureException(err)
			log.Error().Err(err).Str("traces_path", cfg.TracesPath).Msg("retention: error cleaning up traces")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("retention: can't set up cron function")
	}

	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt)

	go func() {
		<-exitSignal
		c.Stop()
	}()

	log.Info().Str("traces_path", cfg.TracesPath).Int64("retention_days", cfg.RetentionDays).Msg("retention: starting daily cleanup job")
	c.Run()
}
