// Package config carries the writer and CLI tunables this tree needs
// that spec.md leaves to an external collaborator: sampling rate,
// buffer watermarks, and the destination a trace is written to or read
// from.
//
// vroom's go.mod declares github.com/ilyakaznacheev/cleanenv but no
// file in the retrieved snapshot actually imports it; this package
// wires it up, following the environment-keyed ServiceConfig shape of
// cmd/vroom/config.go (a small map keyed by environment name, with a
// "development" default) generalized from an HTTP service's
// environment to a CLI tool's.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the set of tunables a writer session or the analyzer CLI
// reads from the environment (or an optional YAML file), rather than
// hardcoding.
type Config struct {
	// Environment selects one of the presets below; unrecognized
	// values fall back to "development".
	Environment string `env:"MEMTRACE_ENV" yaml:"environment" env-default:"development"`

	// Destination names where traces live: a storageutil object name
	// or a gocloud.dev/blob bucket URL. Left empty, it falls back to
	// the Environment preset below. Neither the writer nor cmd/hotspot
	// (which takes the trace path as its argument) reads it.
	Destination string `env:"MEMTRACE_DESTINATION" yaml:"destination"`

	// SamplingRate is the fraction of allocations the runtime's
	// sampling hook delivers. Nothing in this module reads it;
	// writer.New takes no sampling rate.
	SamplingRate float64 `env:"MEMTRACE_SAMPLING_RATE" yaml:"sampling_rate" env-default:"0.01"`

	// PendingWatermark is the pending-locations flush watermark, 128
	// entries by default. The writer does not read it; it always
	// flushes at its own fixed 128-entry watermark.
	PendingWatermark int `env:"MEMTRACE_PENDING_WATERMARK" yaml:"pending_watermark" env-default:"128"`

	// DataPacketBytes is the data-packet buffer capacity, 256 KiB by
	// default. The writer does not read it; it always pre-sizes its
	// data packet buffer to its own fixed 256 KiB.
	DataPacketBytes int `env:"MEMTRACE_DATA_PACKET_BYTES" yaml:"data_packet_bytes" env-default:"262144"`

	// Frequency is the analyzer CLI's default heavy-hitter frequency
	// floor (spec section 6), overridable by the CLI's own argument.
	Frequency float64 `env:"MEMTRACE_FREQUENCY" yaml:"frequency" env-default:"0.01"`

	// SentryDSN configures error reporting (spec.md section 2.3/3.2);
	// empty disables Sentry, the same convention cmd/cleanup uses.
	SentryDSN string `env:"SENTRY_DSN" yaml:"sentry_dsn"`

	// RetentionDays bounds how long cmd/retention keeps trace files.
	RetentionDays int64 `env:"MEMTRACE_RETENTION_DAYS" yaml:"retention_days" env-default:"90"`

	// TracesPath is the directory (or Badger database path, when
	// TracesBackend is "badger") cmd/retention walks to prune old
	// traces. Left empty, it falls back to the Environment preset
	// below.
	TracesPath string `env:"MEMTRACE_TRACES_PATH" yaml:"traces_path"`

	// TracesBackend selects how cmd/retention interprets TracesPath:
	// "local" walks it as a filesystem directory, "badger" opens it as
	// an embedded Badger database and sweeps its keys instead.
	TracesBackend string `env:"MEMTRACE_TRACES_BACKEND" yaml:"traces_backend" env-default:"local"`
}

// environmentDefaults mirrors cmd/vroom/config.go's serviceConfigs map:
// per-environment overrides layered under whatever env vars or a YAML
// file supply, keyed by Environment.
var environmentDefaults = map[string]Config{
	"development": {
		Destination: "traces.ctf",
		TracesPath:  "./traces",
	},
	"production": {
		Destination: "gs://memtrace-traces/current.ctf",
		TracesPath:  "/var/lib/memtrace/traces",
	},
}

// Load reads configuration from an optional YAML file at path (skipped
// if path is empty; a nonempty path naming no file is an error) and then from the
// environment, which always takes precedence, per cleanenv.ReadConfig's
// own layering. The per-environment preset named by the resulting
// Environment field fills in any field the file and environment left
// at its zero value.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	preset, ok := environmentDefaults[cfg.Environment]
	if !ok {
		preset = environmentDefaults["development"]
	}
	if cfg.Destination == "" {
		cfg.Destination = preset.Destination
	}
	if cfg.TracesPath == "" {
		cfg.TracesPath = preset.TracesPath
	}
	return cfg, nil
}
