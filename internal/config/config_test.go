package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Run.BatchSize)
	assert.Equal(t, "Symbol", cfg.Input.Column)
	assert.Equal(t, "brotli", cfg.Output.Compression)
	assert.Equal(t, "bz2", cfg.Archive.Compression)
	assert.Equal(t, "topic", cfg.Archive.Prefix)
	assert.Equal(t, ".html", cfg.Archive.Extension)
	assert.Equal(t, BackendNone, cfg.Storage.Backend)
	assert.False(t, cfg.Fetch.ReportFailures)
	assert.Equal(t, 1000, cfg.Workers())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, DefaultScrapeURLTemplate, cfg.URLTemplateFor("scrape"))
	assert.Equal(t, DefaultProfileURLTemplate, cfg.URLTemplateFor("profile"))
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
run:
  batch_size: 50
input:
  files: ["a.csv", "b.csv"]
  column: Ticker
fetch:
  url_template: "http://localhost:8080/p/{id}"
  concurrency: 8
  report_failures: true
headless:
  enabled: true
  max_parallel: 3
  expect: ["asset-profile-container"]
output:
  dst: out.parquet
  compression: zstd
storage:
  backend: local
  base_dir: /tmp/artifacts
ledger:
  backend: memory
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Run.BatchSize)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.Input.Files)
	assert.Equal(t, "Ticker", cfg.Input.Column)
	assert.Equal(t, 8, cfg.Workers())
	assert.True(t, cfg.Fetch.ReportFailures)
	assert.Equal(t, "http://localhost:8080/p/{id}", cfg.URLTemplateFor("profile"))
	assert.Equal(t, []string{"asset-profile-container"}, cfg.Headless.Expect)
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.Equal(t, "/tmp/artifacts", cfg.Storage.BaseDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithBoundFlagsWin(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("output.dst", "from-flag.parquet")
	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, "from-flag.parquet", cfg.Output.Dst)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.Run.BatchSize = 0 }, "run.batch_size"},
		{"concurrency", func(c *Config) { c.Fetch.Concurrency = -1 }, "fetch.concurrency"},
		{"timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, "fetch.timeout_seconds"},
		{"template", func(c *Config) { c.Fetch.URLTemplate = "http://x/static" }, "fetch.url_template"},
		{"headless", func(c *Config) { c.Headless.Enabled, c.Headless.MaxParallel = true, 0 }, "headless.max_parallel"},
		{"codec", func(c *Config) { c.Output.Compression = "lzo" }, "output.compression"},
		{"archive codec", func(c *Config) { c.Archive.Compression = "xz" }, "archive.compression"},
		{"local dir", func(c *Config) { c.Storage.Backend = BackendLocal }, "storage.base_dir"},
		{"gcs bucket", func(c *Config) { c.Storage.Backend = BackendGCS }, "storage.gcs_bucket"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"ledger dsn", func(c *Config) { c.Ledger.Backend = BackendPostgres }, "ledger.dsn"},
		{"ledger backend", func(c *Config) { c.Ledger.Backend = "sqlite" }, "ledger.backend"},
		{"pubsub", func(c *Config) { c.PubSub.Enabled = true }, "pubsub.project_id"},
		{"pubsub backend", func(c *Config) { c.PubSub.Enabled, c.PubSub.Backend = true, "kafka" }, "pubsub.backend"},
		{"pubsub memory topic", func(c *Config) {
			c.PubSub.Enabled, c.PubSub.Backend, c.PubSub.TopicName = true, BackendMemory, ""
		}, "pubsub.topic_name"},
		{"server", func(c *Config) { c.Server.Enabled, c.Server.Addr = true, "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
