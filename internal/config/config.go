// Package config loads the wuhistory configuration file.
//
// The file is YAML. Missing fields keep their defaults, and the result is
// checked against the embedded CUE schema (schema.cue) before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Protein metadata sources.
const (
	SourceNone = "none"
	SourceFile = "file"
	SourceHTTP = "http"
)

// DefaultSummaryURL is the public project summary endpoint.
const DefaultSummaryURL = "https://api.foldingathome.org/project/summary"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete configuration.
type Config struct {
	Database Database `yaml:"database" json:"database"`
	Protein  Protein  `yaml:"protein" json:"protein"`
	Log      Log      `yaml:"log" json:"log"`
}

// Database configures the history database file.
type Database struct {
	Path          string `yaml:"path" json:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// BusyTimeout returns BusyTimeoutMS as a duration.
func (d Database) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutMS) * time.Millisecond
}

// Protein configures where project metadata comes from.
type Protein struct {
	Source            string  `yaml:"source" json:"source"`
	CatalogPath       string  `yaml:"catalog_path" json:"catalog_path"`
	URL               string  `yaml:"url" json:"url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           string  `yaml:"timeout" json:"timeout"`
}

// TimeoutDuration parses Timeout. Validate guarantees it parses.
func (p Protein) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Log configures the log level.
type Log struct {
	Level string `yaml:"level" json:"level"`
}

// SlogLevel maps Level to a slog.Level.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: Database{
			Path:          "WuHistory.db3",
			BusyTimeoutMS: 5000,
		},
		Protein: Protein{
			Source:            SourceNone,
			URL:               DefaultSummaryURL,
			RequestsPerSecond: 1,
			Timeout:           "30s",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := time.ParseDuration(c.Protein.Timeout); err != nil {
		return fmt.Errorf("%w: protein.timeout: %v", ErrInvalid, err)
	}
	return nil
}
