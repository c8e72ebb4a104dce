// Package config loads refreshd configuration from a TOML file.
//
// A missing file yields [Default]. Durations are written as Go duration
// strings ("20s", "1h"). A few deployment settings can be overridden from
// the environment:
//
//	REFRESHD_STORE_DSN    [store] dsn
//	REFRESHD_REDIS_URL    [cache] redis_url
//	REFRESHD_STATUS_ADDR  [status] addr
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/refreshd/pkg/cache"
	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
	"github.com/matzehuels/refreshd/pkg/refresh"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Environment variables read by [Config.ApplyEnv].
const (
	EnvStoreDSN   = "REFRESHD_STORE_DSN"
	EnvRedisURL   = "REFRESHD_REDIS_URL"
	EnvStatusAddr = "REFRESHD_STATUS_ADDR"
)

// Duration is a time.Duration decoded from strings like "20s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full refreshd configuration.
type Config struct {
	Refresh RefreshConfig `toml:"refresh"`
	Fetch   FetchConfig   `toml:"fetch"`
	GitHub  GitHubConfig  `toml:"github"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
	Status  StatusConfig  `toml:"status"`
}

// RefreshConfig holds scheduling and state-machine settings.
type RefreshConfig struct {
	IntervalDays     int      `toml:"interval_days"`
	JitterPercent    float64  `toml:"jitter_percent"`
	BatchMultiplier  float64  `toml:"batch_multiplier"`
	FailureThreshold int      `toml:"failure_threshold"`
	TickPeriod       Duration `toml:"tick_period"`
	Concurrency      int      `toml:"concurrency"`
	RecordTimeout    Duration `toml:"record_timeout"`
}

// FetchConfig holds web extraction limits.
type FetchConfig struct {
	MaxBytes       int64    `toml:"max_bytes"`
	Timeout        Duration `toml:"timeout"`
	UserAgent      string   `toml:"user_agent"`
	MaxMetaRefresh int      `toml:"max_meta_refresh"`
}

// GitHubConfig holds repository API settings.
type GitHubConfig struct {
	BaseURL           string   `toml:"base_url"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// CacheConfig selects the repository response cache.
type CacheConfig struct {
	Backend  string   `toml:"backend"` // none, file or redis
	TTL      Duration `toml:"ttl"`
	Dir      string   `toml:"dir"`
	RedisURL string   `toml:"redis_url"`
}

// StoreConfig selects the bookmark store.
type StoreConfig struct {
	Driver        string `toml:"driver"` // sqlite or mongo
	DSN           string `toml:"dsn"`
	MongoDatabase string `toml:"mongo_database"`
}

// StatusConfig configures the tick-status HTTP server.
type StatusConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := refresh.DefaultPolicy()
	return Config{
		Refresh: RefreshConfig{
			IntervalDays:     p.IntervalDays,
			JitterPercent:    p.JitterPercent,
			BatchMultiplier:  p.BatchMultiplier,
			FailureThreshold: p.FailureThreshold,
			TickPeriod:       Duration{time.Hour},
			Concurrency:      4,
			RecordTimeout:    Duration{2 * time.Minute},
		},
		Fetch: FetchConfig{
			MaxBytes:       extract.DefaultMaxBytes,
			Timeout:        Duration{extract.DefaultTimeout},
			UserAgent:      extract.DefaultUserAgent,
			MaxMetaRefresh: extract.DefaultMaxMetaRefresh,
		},
		GitHub: GitHubConfig{
			BaseURL:           github.DefaultBaseURL,
			Timeout:           Duration{10 * time.Second},
			RequestsPerSecond: 1,
		},
		Cache: CacheConfig{
			Backend: cache.BackendNone,
			TTL:     Duration{cache.TTLRepository},
		},
		Store: StoreConfig{
			Driver:        DriverSQLite,
			DSN:           "refreshd.db",
			MongoDatabase: "refreshd",
		},
		Status: StatusConfig{Addr: ":8089"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty or missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", path)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return Config{}, errs.New(errs.ErrCodeInvalidConfig, "%s: unknown key %s", path, undecoded[0])
			}
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides deployment settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvStoreDSN); ok && v != "" {
		c.Store.DSN = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		c.Cache.RedisURL = v
	}
	if v, ok := lookup(EnvStatusAddr); ok && v != "" {
		c.Status.Addr = v
	}
}

// Validate reports the first invalid setting as INVALID_CONFIG.
func (c Config) Validate() error {
	r := c.Refresh
	switch {
	case r.IntervalDays < 1:
		return invalid("refresh.interval_days must be at least 1, got %d", r.IntervalDays)
	case r.JitterPercent < 0 || r.JitterPercent > 20:
		return invalid("refresh.jitter_percent must be between 0 and 20, got %v", r.JitterPercent)
	case r.BatchMultiplier <= 0:
		return invalid("refresh.batch_multiplier must be positive, got %v", r.BatchMultiplier)
	case r.FailureThreshold < 1:
		return invalid("refresh.failure_threshold must be at least 1, got %d", r.FailureThreshold)
	case r.TickPeriod.Duration <= 0:
		return invalid("refresh.tick_period must be positive")
	case r.Concurrency < 1:
		return invalid("refresh.concurrency must be at least 1, got %d", r.Concurrency)
	case r.RecordTimeout.Duration <= 0:
		return invalid("refresh.record_timeout must be positive")
	}

	f := c.Fetch
	switch {
	case f.MaxBytes <= 0:
		return invalid("fetch.max_bytes must be positive, got %d", f.MaxBytes)
	case f.Timeout.Duration <= 0:
		return invalid("fetch.timeout must be positive")
	case f.MaxMetaRefresh < 0:
		return invalid("fetch.max_meta_refresh must not be negative, got %d", f.MaxMetaRefresh)
	}

	if c.GitHub.Timeout.Duration <= 0 {
		return invalid("github.timeout must be positive")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return invalid("github.requests_per_second must not be negative")
	}
	if c.GitHub.BaseURL != "" {
		if err := errs.ValidateURL(c.GitHub.BaseURL); err != nil {
			return invalid("github.base_url: %s", errs.UserMessage(err))
		}
	}

	switch c.Cache.Backend {
	case cache.BackendNone, cache.BackendFile:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			return invalid("cache.redis_url is required for the redis backend")
		}
	default:
		return invalid("cache.backend %q is not one of none, file, redis", c.Cache.Backend)
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverMongo:
	default:
		return invalid("store.driver %q is not one of sqlite, mongo", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return invalid("store.dsn is required")
	}
	return nil
}

// Policy returns the refresh policy.
func (c Config) Policy() refresh.Policy {
	return refresh.Policy{
		IntervalDays:     c.Refresh.IntervalDays,
		JitterPercent:    c.Refresh.JitterPercent,
		BatchMultiplier:  c.Refresh.BatchMultiplier,
		FailureThreshold: c.Refresh.FailureThreshold,
	}
}

// SchedulerOptions returns the scheduler settings.
func (c Config) SchedulerOptions() refresh.SchedulerOptions {
	return refresh.SchedulerOptions{
		Period:        c.Refresh.TickPeriod.Duration,
		Concurrency:   c.Refresh.Concurrency,
		RecordTimeout: c.Refresh.RecordTimeout.Duration,
	}
}

// ExtractOptions returns the extractor settings.
func (c Config) ExtractOptions() extract.Options {
	return extract.Options{
		MaxBytes:       c.Fetch.MaxBytes,
		Timeout:        c.Fetch.Timeout.Duration,
		UserAgent:      c.Fetch.UserAgent,
		MaxMetaRefresh: c.Fetch.MaxMetaRefresh,
	}
}

// GitHubOptions returns the enrichment client settings. The response cache
// is attached by the caller.
func (c Config) GitHubOptions() github.Options {
	return github.Options{
		BaseURL:           c.GitHub.BaseURL,
		Timeout:           c.GitHub.Timeout.Duration,
		RequestsPerSecond: c.GitHub.RequestsPerSecond,
		UserAgent:         c.Fetch.UserAgent,
		CacheTTL:          c.Cache.TTL.Duration,
	}
}

func invalid(format string, args ...any) error {
	return errs.New(errs.ErrCodeInvalidConfig, format, args...)
}

// Example returns a commented TOML document with the defaults.
func Example() string {
	d := Default()
	return fmt.Sprintf(`[refresh]
interval_days = %d
jitter_percent = %.1f
batch_multiplier = %.1f
failure_threshold = %d
tick_period = %q
concurrency = %d
record_timeout = %q

[fetch]
max_bytes = %d
timeout = %q
max_meta_refresh = %d

[github]
base_url = %q
timeout = %q
requests_per_second = %.1f

[cache]
# none, file or redis
backend = %q
ttl = %q

[store]
# sqlite or mongo
driver = %q
dsn = %q

[status]
addr = %q
`,
		d.Refresh.IntervalDays, d.Refresh.JitterPercent, d.Refresh.BatchMultiplier,
		d.Refresh.FailureThreshold, d.Refresh.TickPeriod, d.Refresh.Concurrency, d.Refresh.RecordTimeout,
		d.Fetch.MaxBytes, d.Fetch.Timeout, d.Fetch.MaxMetaRefresh,
		d.GitHub.BaseURL, d.GitHub.Timeout, d.GitHub.RequestsPerSecond,
		d.Cache.Backend, d.Cache.TTL,
		d.Store.Driver, d.Store.DSN,
		d.Status.Addr)
}
