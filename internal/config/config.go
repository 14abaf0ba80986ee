package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds process-wide settings. It is built once at startup and never
// mutated afterwards.
type Config struct {
	Env  string
	Port int

	// RateLimit is the number of requests admitted per client per window.
	RateLimit       int
	RateLimitWindow time.Duration

	// CacheDuration is the TTL of a cached upstream response. Zero disables expiry.
	CacheDuration time.Duration

	APIURL string
	APIKey string

	UpstreamTimeout time.Duration
	MetricsEnabled  bool
	// AccessLogDB is a SQLite path for persisted access logs; empty disables it.
	AccessLogDB     string
	SweepInterval   time.Duration
	ShutdownTimeout time.Duration
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

const (
	KeyEnv             = "app_env"
	KeyPort            = "port"
	KeyRateLimit       = "rate_limit"
	KeyRateLimitWindow = "rate_limit_window"
	KeyCacheDuration   = "cache_duration"
	KeyAPIURL          = "api_url"
	KeyAPIKey          = "api_key"
	KeyUpstreamTimeout = "upstream_timeout"
	KeyMetricsEnabled  = "metrics_enabled"
	KeyAccessLogDB     = "access_log_db"
	KeySweepInterval   = "sweep_interval"
	KeyShutdownTimeout = "shutdown_timeout"
)

var keys = []string{
	KeyEnv,
	KeyPort,
	KeyRateLimit,
	KeyRateLimitWindow,
	KeyCacheDuration,
	KeyAPIURL,
	KeyAPIKey,
	KeyUpstreamTimeout,
	KeyMetricsEnabled,
	KeyAccessLogDB,
	KeySweepInterval,
	KeyShutdownTimeout,
}

// NewViper returns a viper instance with defaults set and every key bound to
// its upper-cased environment variable (PORT, RATE_LIMIT, ...).
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnvs(v, keys); err != nil {
		return nil, err
	}
	v.AutomaticEnv()
	return v, nil
}

// Load reads and validates configuration from v. A nil v reads the
// environment through NewViper.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		var err error
		if v, err = NewViper(); err != nil {
			return nil, err
		}
	}

	var errs []error
	intVal := func(key string) int {
		n, err := cast.ToIntE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}
	durVal := func(key string) time.Duration {
		d, err := cast.ToDurationE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	boolVal := func(key string) bool {
		b, err := cast.ToBoolE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	cfg := &Config{
		Env:             v.GetString(KeyEnv),
		Port:            intVal(KeyPort),
		RateLimit:       intVal(KeyRateLimit),
		RateLimitWindow: time.Duration(intVal(KeyRateLimitWindow)) * time.Millisecond,
		CacheDuration:   time.Duration(intVal(KeyCacheDuration)) * time.Second,
		APIURL:          v.GetString(KeyAPIURL),
		APIKey:          v.GetString(KeyAPIKey),
		UpstreamTimeout: durVal(KeyUpstreamTimeout),
		MetricsEnabled:  boolVal(KeyMetricsEnabled),
		AccessLogDB:     v.GetString(KeyAccessLogDB),
		SweepInterval:   durVal(KeySweepInterval),
		ShutdownTimeout: durVal(KeyShutdownTimeout),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("parse config: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 65535, got %d", KeyPort, c.Port))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRateLimit))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyRateLimitWindow))
	}
	if c.CacheDuration < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyCacheDuration))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyUpstreamTimeout))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeySweepInterval))
	}
	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL, got %q", KeyAPIURL, c.APIURL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyEnv, "development")
	v.SetDefault(KeyPort, 3000)

	v.SetDefault(KeyRateLimit, 5)
	v.SetDefault(KeyRateLimitWindow, 60000) // milliseconds
	v.SetDefault(KeyCacheDuration, 300)     // seconds

	v.SetDefault(KeyAPIURL, "https://api.github.com/users/gauravmeee")
	v.SetDefault(KeyAPIKey, "")

	v.SetDefault(KeyUpstreamTimeout, "10s")
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyAccessLogDB, "")
	v.SetDefault(KeySweepInterval, "1m")
	v.SetDefault(KeyShutdownTimeout, "10s")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
