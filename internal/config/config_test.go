package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 64<<10, cfg.Stream.ChunkSize)
	assert.Equal(t, 4<<10, cfg.Stream.ReadWindow)
	assert.Equal(t, 2, cfg.JSON.DefaultVersion)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	opts := cfg.ToOptions()
	assert.Equal(t, cfg.Stream.ChunkSize, opts.ChunkSize)
	assert.Equal(t, cfg.Stream.MaxFileSize, opts.MaxFileSize)
	assert.Empty(t, opts.TextNormalization)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "pdfstream.yaml", `
stream:
  chunk_size: 2048
  read_window: 8192
json:
  default_version: 1
text:
  normalization: nfkc
log:
  level: debug
  format: json
server:
  addr: 127.0.0.1:9000
  max_upload: 1048576
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Stream.ChunkSize)
	assert.Equal(t, 8192, cfg.Stream.ReadWindow)
	assert.Equal(t, 1, cfg.JSON.DefaultVersion)
	assert.Equal(t, "NFKC", cfg.Text.Normalization)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxUpload)
	assert.Equal(t, "NFKC", cfg.ToOptions().TextNormalization)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PDFSTREAM_CHUNK_SIZE", "1024")
	t.Setenv("PDFSTREAM_JSON_VERSION", "1")
	t.Setenv("PDFSTREAM_MAX_FILE_SIZE", "5000")
	t.Setenv("PDFSTREAM_LOG_LEVEL", "warn")
	t.Setenv("PDFSTREAM_TEXT_NORMALIZATION", "nfc")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Stream.ChunkSize)
	assert.Equal(t, 1, cfg.JSON.DefaultVersion)
	assert.Equal(t, int64(5000), cfg.Stream.MaxFileSize)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "NFC", cfg.Text.Normalization)
}

func TestEnvOverrideNotANumber(t *testing.T) {
	t.Setenv("PDFSTREAM_READ_WINDOW", "big")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDFSTREAM_READ_WINDOW")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"chunk too small", func(c *Config) { c.Stream.ChunkSize = 512 }, "stream.chunk_size"},
		{"chunk too large", func(c *Config) { c.Stream.ChunkSize = 2 << 20 }, "stream.chunk_size"},
		{"window", func(c *Config) { c.Stream.ReadWindow = 0 }, "stream.read_window"},
		{"max file size", func(c *Config) { c.Stream.MaxFileSize = 0 }, "stream.max_file_size"},
		{"json version", func(c *Config) { c.JSON.DefaultVersion = 3 }, "json.default_version"},
		{"normalization", func(c *Config) { c.Text.Normalization = "NFX" }, "text.normalization"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"max upload", func(c *Config) { c.Server.MaxUpload = -1 }, "server.max_upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeFile(t, "bad.yaml", "stream: [unclosed"))
	assert.ErrorContains(t, err, "parse config file")

	_, err = Load(writeFile(t, "invalid.yaml", "json:\n  default_version: 9\n"))
	assert.ErrorContains(t, err, "validate config")
}

func TestLoadEnvFiles(t *testing.T) {
	path := writeFile(t, ".env", "PDFSTREAM_TEST_ONLY=from-file\n")
	t.Setenv("PDFSTREAM_TEST_ONLY", "")
	os.Unsetenv("PDFSTREAM_TEST_ONLY")

	require.NoError(t, LoadEnvFiles(filepath.Join(t.TempDir(), "absent.env"), path))
	assert.Equal(t, "from-file", os.Getenv("PDFSTREAM_TEST_ONLY"))
	os.Unsetenv("PDFSTREAM_TEST_ONLY")
}
