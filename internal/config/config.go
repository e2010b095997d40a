// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobradar/jobradar/internal/filter"
	"github.com/jobradar/jobradar/internal/source"
)

// Storage provider names accepted by database.provider.
const (
	DBMemory   = "memory"
	DBPostgres = "postgres"
)

// Snapshot provider names accepted by archive.provider.
const (
	ArchiveNoop  = "noop"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Sources   source.Boards   `mapstructure:"sources"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// ReadTimeout returns the server read timeout as a duration.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout as a duration. It must
// exceed the worst-case synchronous cycle so POST /v1/sync can respond.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful drain on SIGTERM.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig tunes the shared board transport.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// Timeout returns the per-request timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FetchConfig governs per-adapter orchestration: attempt budget, per-attempt
// deadline, and the retry backoff base.
type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffMs      int `mapstructure:"backoff_ms"`
}

// Timeout returns the per-attempt deadline as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the retry backoff base as a duration.
func (c FetchConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// FilterConfig holds the keyword admission tiers.
type FilterConfig struct {
	Mode            string   `mapstructure:"mode"`
	RoleKeywords    []string `mapstructure:"role_keywords"`
	IncludeKeywords []string `mapstructure:"include_keywords"`
	ExcludeKeywords []string `mapstructure:"exclude_keywords"`
}

// ReconcileConfig controls the expiration pass.
type ReconcileConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// DatabaseConfig selects and tunes the record store.
type DatabaseConfig struct {
	Provider               string `mapstructure:"provider"`
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int    `mapstructure:"max_conns"`
	MinConns               int    `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// MaxConnLifetime returns the pool connection lifetime as a duration.
func (c DatabaseConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMinutes) * time.Minute
}

// ArchiveConfig selects the drift-snapshot destination.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	LocalDir string `mapstructure:"local_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// NotifyConfig configures end-of-cycle notification channels.
type NotifyConfig struct {
	WebhookURL            string       `mapstructure:"webhook_url"`
	WebhookTimeoutSeconds int          `mapstructure:"webhook_timeout_seconds"`
	PubSub                PubSubConfig `mapstructure:"pubsub"`
}

// WebhookTimeout returns the webhook post timeout as a duration.
func (c NotifyConfig) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Enabled reports whether both identifiers are configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.TopicID != ""
}

// ProgressConfig tunes the progress hub and its sinks.
type ProgressConfig struct {
	Enabled            bool        `mapstructure:"enabled"`
	LogEvents          bool        `mapstructure:"log_events"`
	BufferSize         int         `mapstructure:"buffer_size"`
	Batch              BatchConfig `mapstructure:"batch"`
	SinkTimeoutSeconds int         `mapstructure:"sink_timeout_seconds"`
}

// SinkTimeout returns the per-sink flush timeout as a duration.
func (c ProgressConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutSeconds) * time.Second
}

// BatchConfig bounds hub batch size and latency.
type BatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// MaxWait returns the batch flush latency bound as a duration.
func (c BatchConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBRADAR")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("http.user_agent", "jobradar-bot/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.per_host_rps", 1.0)
	v.SetDefault("http.per_host_burst", 2)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff_ms", 1000)
	v.SetDefault("filter.mode", filter.ModeStrict)
	v.SetDefault("reconcile.retention_days", 30)
	v.SetDefault("database.provider", DBMemory)
	v.SetDefault("database.table", "records")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("archive.provider", ArchiveNoop)
	v.SetDefault("archive.local_dir", "snapshots")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("notify.webhook_timeout_seconds", 10)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_events", false)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 256)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_seconds", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Reconcile.RetentionDays <= 0 {
		return fmt.Errorf("reconcile.retention_days must be > 0")
	}
	if c.Filter.Mode != filter.ModeStrict && c.Filter.Mode != filter.ModeLenient {
		return fmt.Errorf("filter.mode must be %q or %q", filter.ModeStrict, filter.ModeLenient)
	}
	switch c.Database.Provider {
	case DBMemory:
	case DBPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set when database.provider is %q", DBPostgres)
		}
	default:
		return fmt.Errorf("unknown database.provider %q", c.Database.Provider)
	}
	switch c.Archive.Provider {
	case ArchiveNoop:
	case ArchiveLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set when archive.provider is %q", ArchiveLocal)
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.provider is %q", ArchiveGCS)
		}
	default:
		return fmt.Errorf("unknown archive.provider %q", c.Archive.Provider)
	}
	if (c.Notify.PubSub.ProjectID == "") != (c.Notify.PubSub.TopicID == "") {
		return fmt.Errorf("notify.pubsub requires both project_id and topic_id")
	}
	return nil
}
