// Package config loads batchcall settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azargarov/batchcall"
)

// Duration is a time.Duration that decodes from strings like "1s" or "250ms".
// Bare integers are taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Config holds configuration for a batchcall run.
type Config struct {
	Strategy          string   `yaml:"strategy"`           // sequential, concurrent, bounded, pooled
	MaxConcurrency    int      `yaml:"max_concurrency"`    // gate capacity for bounded
	PoolSize          int      `yaml:"pool_size"`          // workers for pooled
	PinWorkers        bool     `yaml:"pin_workers"`        // pin pool workers to CPUs (linux)
	MaxAttempts       int      `yaml:"max_attempts"`       // attempts per item, first one included
	BackoffMin        Duration `yaml:"backoff_min"`        // lower bound of the backoff window
	BackoffMax        Duration `yaml:"backoff_max"`        // upper bound of the backoff window
	AttemptTimeout    Duration `yaml:"attempt_timeout"`    // per attempt; 0 leaves it to the adapter
	MalformedResponse string   `yaml:"malformed_response"` // transient or fatal
	AbortOnFatal      bool     `yaml:"abort_on_fatal"`

	Endpoint    string   `yaml:"endpoint"`     // HTTP adapter URL
	HTTPTimeout Duration `yaml:"http_timeout"` // HTTP adapter client timeout

	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	LogFormat   string `yaml:"log_format"`   // console, json
	MetricsAddr string `yaml:"metrics_addr"` // serve /metrics here when set
}

// Default returns sensible defaults.
func Default() Config {
	rp := batchcall.GetDefaultRP()
	return Config{
		Strategy:          "bounded",
		MaxConcurrency:    batchcall.DefaultMaxConcurrency,
		MaxAttempts:       rp.Attempts,
		BackoffMin:        Duration(rp.Initial),
		BackoffMax:        Duration(rp.Max),
		MalformedResponse: "transient",
		HTTPTimeout:       Duration(30 * time.Second),
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides fields from BATCHCALL_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *Duration) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	str("BATCHCALL_STRATEGY", &c.Strategy)
	str("BATCHCALL_ENDPOINT", &c.Endpoint)
	str("BATCHCALL_LOG_LEVEL", &c.LogLevel)
	str("BATCHCALL_LOG_FORMAT", &c.LogFormat)
	str("BATCHCALL_METRICS_ADDR", &c.MetricsAddr)
	str("BATCHCALL_MALFORMED_RESPONSE", &c.MalformedResponse)
	return errors.Join(
		num("BATCHCALL_MAX_CONCURRENCY", &c.MaxConcurrency),
		num("BATCHCALL_POOL_SIZE", &c.PoolSize),
		num("BATCHCALL_MAX_ATTEMPTS", &c.MaxAttempts),
		dur("BATCHCALL_BACKOFF_MIN", &c.BackoffMin),
		dur("BATCHCALL_BACKOFF_MAX", &c.BackoffMax),
		dur("BATCHCALL_ATTEMPT_TIMEOUT", &c.AttemptTimeout),
	)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.ParseStrategy(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max_concurrency must not be negative"))
	}
	if c.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("pool_size must not be negative"))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_attempts must not be negative"))
	}
	if c.BackoffMax > 0 && c.BackoffMin > c.BackoffMax {
		errs = append(errs, fmt.Errorf("backoff_min %s exceeds backoff_max %s",
			time.Duration(c.BackoffMin), time.Duration(c.BackoffMax)))
	}
	if _, err := c.malformedKind(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseStrategy resolves Strategy with the matching limit.
func (c Config) ParseStrategy() (batchcall.Strategy, error) {
	limit := 0
	switch strings.ToLower(c.Strategy) {
	case "bounded", "semaphore":
		limit = c.MaxConcurrency
	case "pooled", "pool", "threads":
		limit = c.PoolSize
	}
	return batchcall.ParseStrategy(c.Strategy, limit)
}

func (c Config) malformedKind() (batchcall.ErrorKind, error) {
	switch strings.ToLower(c.MalformedResponse) {
	case "", "transient", "retry":
		return batchcall.KindTransient, nil
	case "fatal":
		return batchcall.KindFatal, nil
	default:
		return 0, fmt.Errorf("malformed_response must be transient or fatal, got %q", c.MalformedResponse)
	}
}

// Options converts the config into executor options. Logger, metrics and
// hooks are left for the caller to set.
func (c Config) Options() batchcall.Options {
	kind, _ := c.malformedKind()
	return batchcall.Options{
		MaxConcurrency: c.MaxConcurrency,
		PoolSize:       c.PoolSize,
		PinWorkers:     c.PinWorkers,
		Retry: batchcall.RetryPolicy{
			Attempts: c.MaxAttempts,
			Initial:  time.Duration(c.BackoffMin),
			Max:      time.Duration(c.BackoffMax),
		},
		AttemptTimeout:    time.Duration(c.AttemptTimeout),
		MalformedResponse: kind,
		AbortOnFatal:      c.AbortOnFatal,
	}
}
