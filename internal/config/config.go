// Package config loads pdfstream configuration from YAML files and
// PDFSTREAM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/qpdfjson"
	"github.com/pyhub-apps/pdfstream-golang/pkg/stream"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PDFSTREAM_"

// Config holds all pdfstream configuration.
type Config struct {
	Stream StreamConfig `yaml:"stream"`
	JSON   JSONConfig   `yaml:"json"`
	Text   TextConfig   `yaml:"text"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// StreamConfig tunes the block source and sink.
type StreamConfig struct {
	ChunkSize   int   `yaml:"chunk_size"`
	ReadWindow  int   `yaml:"read_window"`
	MaxFileSize int64 `yaml:"max_file_size"`
}

// JSONConfig holds conversion defaults.
type JSONConfig struct {
	DefaultVersion int `yaml:"default_version"`
}

// TextConfig holds text extraction settings.
type TextConfig struct {
	Normalization string `yaml:"normalization"` // NFC, NFD, NFKC, NFKD or empty
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	MaxUpload        int64         `yaml:"max_upload"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowOrigins     string        `yaml:"allow_origins"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. An empty path uses the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Text.Normalization = strings.ToUpper(cfg.Text.Normalization)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFiles loads the .env files that exist, earlier files taking
// precedence. Variables already set in the environment are kept.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			ChunkSize:   streamio.DefaultChunkSize,
			ReadWindow:  streamio.DefaultWindowSize,
			MaxFileSize: streamio.MaxSize,
		},
		JSON: JSONConfig{
			DefaultVersion: qpdfjson.Version2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:             ":8080",
			MaxUpload:        64 << 20,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowOrigins:     "*",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Stream.ChunkSize < streamio.MinBlockSize || c.Stream.ChunkSize > streamio.MaxBlockSize {
		return fmt.Errorf("stream.chunk_size must be between %d and %d, got %d",
			streamio.MinBlockSize, streamio.MaxBlockSize, c.Stream.ChunkSize)
	}
	if c.Stream.ReadWindow < streamio.MinBlockSize || c.Stream.ReadWindow > streamio.MaxBlockSize {
		return fmt.Errorf("stream.read_window must be between %d and %d, got %d",
			streamio.MinBlockSize, streamio.MaxBlockSize, c.Stream.ReadWindow)
	}
	if c.Stream.MaxFileSize < 1 || c.Stream.MaxFileSize > streamio.MaxSize {
		return fmt.Errorf("stream.max_file_size must be between 1 and %d, got %d",
			int64(streamio.MaxSize), c.Stream.MaxFileSize)
	}
	if !qpdfjson.ValidVersion(c.JSON.DefaultVersion) {
		return fmt.Errorf("json.default_version must be 1 or 2, got %d", c.JSON.DefaultVersion)
	}
	if !pdf.ValidNormalization(c.Text.Normalization) {
		return fmt.Errorf("invalid text.normalization: %s", c.Text.Normalization)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log.format: %s", c.Log.Format)
	}
	if c.Server.MaxUpload < 1 || c.Server.MaxUpload > streamio.MaxSize {
		return fmt.Errorf("server.max_upload must be between 1 and %d, got %d",
			int64(streamio.MaxSize), c.Server.MaxUpload)
	}
	return nil
}

// ToOptions maps the configuration to library options.
func (c *Config) ToOptions() stream.Options {
	return stream.Options{
		ChunkSize:         c.Stream.ChunkSize,
		ReadWindow:        c.Stream.ReadWindow,
		MaxFileSize:       c.Stream.MaxFileSize,
		TextNormalization: c.Text.Normalization,
	}
}

// applyEnvOverrides applies PDFSTREAM_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"CHUNK_SIZE", &cfg.Stream.ChunkSize},
		{"READ_WINDOW", &cfg.Stream.ReadWindow},
		{"JSON_VERSION", &cfg.JSON.DefaultVersion},
	}
	for _, o := range ints {
		if v, ok := lookup(o.name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
			}
			*o.dst = n
		}
	}

	sizes := []struct {
		name string
		dst  *int64
	}{
		{"MAX_FILE_SIZE", &cfg.Stream.MaxFileSize},
		{"MAX_UPLOAD", &cfg.Server.MaxUpload},
	}
	for _, o := range sizes {
		if v, ok := lookup(o.name); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
			}
			*o.dst = n
		}
	}

	if v, ok := lookup("TEXT_NORMALIZATION"); ok {
		cfg.Text.Normalization = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := lookup("ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := lookup("ALLOW_ORIGINS"); ok {
		cfg.Server.AllowOrigins = v
	}
	return nil
}

func lookup(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}
