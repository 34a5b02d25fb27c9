// Package config loads and validates process configuration. YAML on
// disk, checked against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/adewale/keyboardia/internal/coordinator"
	"github.com/adewale/keyboardia/internal/outbox"
	"github.com/adewale/keyboardia/internal/synchealth"
	"github.com/adewale/keyboardia/internal/tracker"
)

//go:embed schema.cue
var schemaSource string

// Config is the full process configuration.
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Client ClientConfig `yaml:"client" json:"client"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig configures the coordinator process.
type ServerConfig struct {
	Addr          string `yaml:"addr" json:"addr"`
	DBPath        string `yaml:"dbPath" json:"dbPath"`
	SnapshotEvery int64  `yaml:"snapshotEvery" json:"snapshotEvery"`
}

// ClientConfig configures a synchronizing peer.
type ClientConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Outbox  OutboxConfig  `yaml:"outbox" json:"outbox"`
	Health  HealthConfig  `yaml:"health" json:"health"`
	Tracker TrackerConfig `yaml:"tracker" json:"tracker"`
}

// OutboxConfig bounds the offline queue.
type OutboxConfig struct {
	MaxSize int    `yaml:"maxSize" json:"maxSize"`
	MaxAge  string `yaml:"maxAge" json:"maxAge"`
}

// HealthConfig sets divergence detection thresholds.
type HealthConfig struct {
	MismatchStreakThreshold int `yaml:"mismatchStreakThreshold" json:"mismatchStreakThreshold"`
	GapThreshold            int `yaml:"gapThreshold" json:"gapThreshold"`
	OutOfOrderThreshold     int `yaml:"outOfOrderThreshold" json:"outOfOrderThreshold"`
}

// TrackerConfig bounds delivery bookkeeping.
type TrackerConfig struct {
	MaxConfirmedAge string `yaml:"maxConfirmedAge" json:"maxConfirmedAge"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:          "localhost:8080",
			DBPath:        "keyboardia.sqlite3",
			SnapshotEvery: coordinator.DefaultSnapshotEvery,
		},
		Client: ClientConfig{
			URL: "",
			Outbox: OutboxConfig{
				MaxSize: outbox.DefaultMaxSize,
				MaxAge:  outbox.DefaultMaxAge.String(),
			},
			Health: HealthConfig{
				MismatchStreakThreshold: synchealth.DefaultMismatchStreakThreshold,
				GapThreshold:            synchealth.DefaultGapThreshold,
				OutOfOrderThreshold:     synchealth.DefaultOutOfOrderThreshold,
			},
			Tracker: TrackerConfig{
				MaxConfirmedAge: tracker.DefaultMaxConfirmedAge.String(),
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, overlays it on the defaults, and
// validates the result against the schema. An empty path returns the
// defaults unvalidated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate unifies the configuration with the embedded CUE schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("resolving schema: %w", err)
	}

	unified := def.Unify(ctx.Encode(cfg))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// The schema cannot express Go duration syntax; check those here.
	if _, err := time.ParseDuration(cfg.Client.Outbox.MaxAge); err != nil {
		return fmt.Errorf("invalid config: client.outbox.maxAge: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Client.Tracker.MaxConfirmedAge); err != nil {
		return fmt.Errorf("invalid config: client.tracker.maxConfirmedAge: %w", err)
	}
	return nil
}

// OutboxOptions converts the client config into queue options.
func (c ClientConfig) OutboxOptions() outbox.Options {
	maxAge, _ := time.ParseDuration(c.Outbox.MaxAge)
	return outbox.Options{
		MaxSize: c.Outbox.MaxSize,
		MaxAge:  maxAge,
	}
}

// HealthOptions converts the client config into monitor thresholds.
func (c ClientConfig) HealthOptions() synchealth.Config {
	return synchealth.Config{
		MismatchStreakThreshold: c.Health.MismatchStreakThreshold,
		GapThreshold:            int64(c.Health.GapThreshold),
		OutOfOrderThreshold:     c.Health.OutOfOrderThreshold,
	}
}

// TrackerOptions converts the client config into tracker options.
func (c ClientConfig) TrackerOptions() tracker.Options {
	maxAge, _ := time.ParseDuration(c.Tracker.MaxConfirmedAge)
	return tracker.Options{MaxConfirmedAge: maxAge}
}
