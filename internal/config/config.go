// Package config defines the process configuration schema and its strict
// YAML loading, covering the ambient settings (logging, metrics, server)
// alongside the upstream/cache settings the adm and cache packages need.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mozilla-services/tiles-edge/internal/common/yamlutil"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatJSON    = "json"
	LogFormatText    = "text"
	LogFormatConsole = "console"
)

// ConsoleLogConfig configures the stdout log core.
type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// RotationConfig configures lumberjack-backed file rotation.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size_mb"`
	MaxAge     int  `yaml:"max_age_days"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// FileLogConfig configures the rotating-file log core.
type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Level    string         `yaml:"level"`
	Format   string         `yaml:"format"`
	Path     string         `yaml:"path"`
	Rotation RotationConfig `yaml:"rotation"`
}

// LogConfig is the top-level logging configuration.
type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

// MetricsConfig configures the Prometheus collector's own HTTP server,
// always separate from the tile-serving listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// ReportConfig configures the Sentry-backed telemetry sink.
type ReportConfig struct {
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// ServerConfig configures the client-facing fasthttp listener.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AdmConfig is the upstream partner's credentials and fetch shaping, the
// Go analogue of §6's enumerated adm_* settings.
type AdmConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	PartnerID      string        `yaml:"partner_id"`
	Sub1           string        `yaml:"sub1"`
	Timeout        time.Duration `yaml:"timeout"`
	QueryTileCount int           `yaml:"query_tile_count"`
	MaxTiles       int           `yaml:"max_tiles"`

	TestMode     string `yaml:"test_mode"`
	TestFilePath string `yaml:"test_file_path"`
}

// ImageConfig configures the optional image-decoration collaborator (C4).
// Leaving it disabled means Assemble passes tiles through with whatever
// image_url the partner supplied.
type ImageConfig struct {
	Enabled bool          `yaml:"enabled"`
	CDNBase string        `yaml:"cdn_base"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig shapes the audience cache's TTL behavior.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	JitterPercent int           `yaml:"jitter_percent"`
	ShardCount    int           `yaml:"shard_count"`
}

// Config is the complete process configuration, strictly decoded from
// YAML so a typo in a field name fails startup instead of silently
// defaulting.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Adm     AdmConfig     `yaml:"adm"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Report  ReportConfig  `yaml:"report"`
	Image   ImageConfig   `yaml:"image"`

	FallbackCountry      string `yaml:"fallback_country"`
	ExcludedDMAs         []int  `yaml:"excluded_dmas"`
	ExcludedCountries200 bool   `yaml:"excluded_countries_200"`
	FilterRulesetPath    string `yaml:"filter_ruleset_path"`
}

// Load reads and strictly decodes a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the invariants Load depends on: the server listener
// present, an upstream endpoint (unless a test mode is set), a positive
// adm.timeout, and the metrics port kept separate from the main listener
// so a slow scrape can never starve tile traffic.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set")
	}
	if c.Adm.Endpoint == "" && c.Adm.TestMode == "" {
		return fmt.Errorf("adm.endpoint must be set unless adm.test_mode is configured")
	}
	if c.Adm.Timeout <= 0 {
		return fmt.Errorf("adm.timeout must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == c.Server.Listen {
		return fmt.Errorf("metrics.listen must differ from server.listen")
	}
	return nil
}

// ExcludedDMASet converts the configured slice into the map shape
// adm.Settings expects.
func (c *Config) ExcludedDMASet() map[int]struct{} {
	set := make(map[int]struct{}, len(c.ExcludedDMAs))
	for _, dma := range c.ExcludedDMAs {
		set[dma] = struct{}{}
	}
	return set
}
