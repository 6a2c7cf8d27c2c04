package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RoutePath string `yaml:"route_path"` // hcl file or directory

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
	Workers   int    `yaml:"workers"`

	Reporters        []string      `yaml:"reporters"`
	OverlayURL       string        `yaml:"overlay_url"`
	OverlayNamespace string        `yaml:"overlay_namespace"`
	OverlayEvent     string        `yaml:"overlay_event"`
	OverlayTimeout   time.Duration `yaml:"overlay_timeout"`
	OverlayInsecure  bool          `yaml:"overlay_insecure_skip_verify"`

	MetricsAddr string `yaml:"metrics_addr"` // empty disables the metrics server
	TraceFile   string `yaml:"trace_file"`   // empty disables span export

	DebugChannel bool          `yaml:"debug_channel"`
	Watch        bool          `yaml:"watch"`
	WatchDelay   time.Duration `yaml:"watch_delay"`
}

// DefaultConfig returns the settings used when neither a config file nor a
// flag sets a value.
func DefaultConfig() Config {
	return Config{
		LogFormat:    "text",
		LogLevel:     "info",
		Workers:      4,
		Reporters:    []string{"text"},
		DebugChannel: true,
		WatchDelay:   300 * time.Millisecond,
	}
}

// LoadConfigFile overlays the YAML file at path onto base. Unknown keys are
// rejected.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := base
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.RoutePath == "" {
		return nil, errors.New("RoutePath is a required configuration field and cannot be empty")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level '%s': must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if len(cfg.Reporters) == 0 {
		return nil, errors.New("at least one reporter is required")
	}
	if cfg.WatchDelay <= 0 {
		cfg.WatchDelay = DefaultConfig().WatchDelay
	}
	cfg.Reporters = append([]string(nil), cfg.Reporters...)
	return &cfg, nil
}
