// Package config loads and validates ingest configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/page-ingest/internal/archive"
	"github.com/JakeFAU/page-ingest/internal/batch"
	"github.com/JakeFAU/page-ingest/internal/columnar"
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// Default page locations per fetch command.
const (
	DefaultScrapeURLTemplate  = "https://forum.bits.media/index.php?/topic/" + ingest.IdentifierPlaceholder + "/"
	DefaultProfileURLTemplate = "https://finance.yahoo.com/quote/" + ingest.IdentifierPlaceholder +
		"/profile?p=" + ingest.IdentifierPlaceholder
)

// Backend names shared by the storage, ledger and pubsub sections.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
	BackendPubSub   = "pubsub"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Run      RunConfig      `mapstructure:"run"`
	Input    InputConfig    `mapstructure:"input"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Output   OutputConfig   `mapstructure:"output"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Progress ProgressConfig `mapstructure:"progress"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RunConfig holds settings shared by every command.
type RunConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// InputConfig names the identifier files and the column to read.
type InputConfig struct {
	Files  []string `mapstructure:"files"`
	Column string   `mapstructure:"column"`
}

// FetchConfig governs the HTTP worker pool.
type FetchConfig struct {
	// URLTemplate overrides the per-command default page location.
	URLTemplate    string `mapstructure:"url_template"`
	Concurrency    int    `mapstructure:"concurrency"`
	QueueDepth     int    `mapstructure:"queue_depth"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	ReportFailures bool   `mapstructure:"report_failures"`
}

// HeadlessConfig configures chromedp promotion.
type HeadlessConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	MaxParallel     int      `mapstructure:"max_parallel"`
	NavTimeoutSec   int      `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs   int      `mapstructure:"settle_delay_ms"`
	WaitSelector    string   `mapstructure:"wait_selector"`
	PromotionThresh int      `mapstructure:"promotion_threshold"`
	Expect          []string `mapstructure:"expect"`
}

// OutputConfig controls the columnar file.
type OutputConfig struct {
	Dst         string `mapstructure:"dst"`
	Compression string `mapstructure:"compression"`
}

// ArchiveConfig controls tar conversions.
type ArchiveConfig struct {
	Src         string `mapstructure:"src"`
	Prefix      string `mapstructure:"prefix"`
	Extension   string `mapstructure:"extension"`
	Compression string `mapstructure:"compression"`
	Encoding    string `mapstructure:"encoding"`
}

// ProgressConfig tunes the progress hub and periodic log line.
type ProgressConfig struct {
	LogEvery        int `mapstructure:"log_every"`
	BufferSize      int `mapstructure:"buffer_size"`
	MaxBatchEvents  int `mapstructure:"max_batch_events"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// StorageConfig selects where finished artifacts are copied.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LedgerConfig selects where run rows are recorded.
type LedgerConfig struct {
	Backend      string `mapstructure:"backend"`
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "pubsub" for Google Cloud Pub/Sub or "memory" for dry runs.
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and INGEST_* env vars.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load over a caller-owned Viper, so command flags bound to v
// take precedence over file and env values.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.batch_size", batch.DefaultSize)
	v.SetDefault("input.column", "Symbol")
	v.SetDefault("fetch.concurrency", 0)
	v.SetDefault("fetch.queue_depth", 0)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_body_bytes", 0)
	v.SetDefault("fetch.report_failures", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.settle_delay_ms", 0)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("output.compression", columnar.DefaultCodec)
	v.SetDefault("archive.prefix", "topic")
	v.SetDefault("archive.extension", ".html")
	v.SetDefault("archive.compression", archive.CompressionBzip2)
	v.SetDefault("archive.encoding", "utf-8")
	v.SetDefault("progress.log_every", 100)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 1000)
	v.SetDefault("progress.flush_interval_ms", 500)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":9090")
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("ledger.backend", BackendNone)
	v.SetDefault("ledger.table", "ingest_runs")
	v.SetDefault("ledger.ensure_schema", false)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.backend", BackendPubSub)
	v.SetDefault("pubsub.topic_name", "ingest-runs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.BatchSize <= 0 {
		return errors.New("run.batch_size must be > 0")
	}
	if c.Fetch.Concurrency < 0 {
		return errors.New("fetch.concurrency must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.URLTemplate != "" && !strings.Contains(c.Fetch.URLTemplate, ingest.IdentifierPlaceholder) {
		return fmt.Errorf("fetch.url_template must contain %s", ingest.IdentifierPlaceholder)
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return errors.New("headless.max_parallel must be > 0 when headless is enabled")
	}
	if _, err := columnar.ParseCodec(c.Output.Compression); err != nil {
		return fmt.Errorf("output.compression: %w", err)
	}
	if _, err := archive.NormalizeCompression(c.Archive.Compression); err != nil {
		return fmt.Errorf("archive.compression: %w", err)
	}
	switch c.Storage.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return errors.New("storage.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Ledger.Backend {
	case BackendNone, BackendMemory:
	case BackendPostgres:
		if c.Ledger.DSN == "" {
			return errors.New("ledger.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("ledger.backend %q is not supported", c.Ledger.Backend)
	}
	if c.PubSub.Enabled {
		switch c.PubSub.Backend {
		case BackendPubSub:
			if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
				return errors.New("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
			}
		case BackendMemory:
			if c.PubSub.TopicName == "" {
				return errors.New("pubsub.topic_name must be set when pubsub is enabled")
			}
		default:
			return fmt.Errorf("pubsub.backend %q is not supported", c.PubSub.Backend)
		}
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return errors.New("server.addr must be set when the server is enabled")
	}
	return nil
}

// URLTemplateFor returns the page template for a fetch command.
func (c Config) URLTemplateFor(command string) string {
	if c.Fetch.URLTemplate != "" {
		return c.Fetch.URLTemplate
	}
	if command == "profile" {
		return DefaultProfileURLTemplate
	}
	return DefaultScrapeURLTemplate
}

// Workers returns the worker pool size; zero concurrency means one worker
// per identifier of a batch.
func (c Config) Workers() int {
	if c.Fetch.Concurrency > 0 {
		return c.Fetch.Concurrency
	}
	return c.Run.BatchSize
}

// FetchTimeout converts the configured seconds to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
