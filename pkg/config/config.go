// Package config loads and validates exporter configuration from environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Load when no G-Core DNS API key is configured.
var ErrMissingAPIKey = errors.New("application key is required, please set GCORE_DNS_API_KEY environment variable")

// Zone reset policies applied by the poller before each cycle.
const (
	// PolicyRetain keeps the last known value of a zone whose fetch fails and
	// drops zones that are no longer listed by the API.
	PolicyRetain = "retain"

	// PolicyZero sets every previously seen zone to 0 before re-fetching.
	PolicyZero = "zero"

	// PolicyClear removes every zone gauge before re-fetching.
	PolicyClear = "clear"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendRedis  = "redis"
)

// Config holds all runtime configuration for the exporter.
type Config struct {
	// Port is the TCP port of the scrape endpoint.
	Port int `yaml:"port"`

	// IntervalSeconds is the pause between two poll cycles.
	IntervalSeconds int `yaml:"interval"`

	// TimeoutSeconds bounds every individual upstream request.
	TimeoutSeconds int `yaml:"timeout"`

	// APIURL is the base URL of the G-Core DNS API (no trailing slash).
	APIURL string `yaml:"api_url"`

	// APIKey is sent as "Authorization: APIKey <key>". Required.
	APIKey string `yaml:"api_key"`

	// ZonesLimit is the page size of the zone list request.
	ZonesLimit int `yaml:"zones_limit"`

	// RequestDelayMillis is the minimum spacing between per-zone statistics requests.
	RequestDelayMillis int `yaml:"request_delay_ms"`

	// ZoneResetPolicy is one of PolicyRetain, PolicyZero, PolicyClear.
	ZoneResetPolicy string `yaml:"zone_reset_policy"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// StoreBackend selects where the last known snapshot is persisted.
	// Valid values: "memory" (default, no persistence), "s3", "redis".
	StoreBackend string `yaml:"store_backend"`

	// S3Bucket is required when StoreBackend is "s3".
	S3Bucket    string `yaml:"s3_bucket"`
	S3KeyPrefix string `yaml:"s3_key_prefix"`
	S3Region    string `yaml:"s3_region"`

	// S3Endpoint is an optional custom endpoint (MinIO, LocalStack).
	S3Endpoint string `yaml:"s3_endpoint"`

	// RedisAddr is required when StoreBackend is "redis".
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
}

const (
	defaultPort               = 9886
	defaultInterval           = 300
	defaultTimeout            = 10
	defaultAPIURL             = "https://dnsapi.gcorelabs.com/v2"
	defaultZonesLimit         = 999
	defaultRequestDelayMillis = 500
	minRequestDelayMillis     = 500
	defaultLogLevel           = "info"
	defaultS3KeyPrefix        = "gcore-dns-exporter"
	defaultS3Region           = "us-east-1"
	defaultRedisKey           = "gcore-dns-exporter:snapshot"
)

// Default returns a Config populated with defaults only. It has no API key
// and therefore does not pass Validate.
func Default() *Config {
	return &Config{
		Port:               defaultPort,
		IntervalSeconds:    defaultInterval,
		TimeoutSeconds:     defaultTimeout,
		APIURL:             defaultAPIURL,
		ZonesLimit:         defaultZonesLimit,
		RequestDelayMillis: defaultRequestDelayMillis,
		ZoneResetPolicy:    PolicyRetain,
		LogLevel:           defaultLogLevel,
		StoreBackend:       BackendMemory,
		S3KeyPrefix:        defaultS3KeyPrefix,
		S3Region:           defaultS3Region,
		RedisKey:           defaultRedisKey,
	}
}

// Load builds the Config: defaults, then CONFIG_FILE (if set), then
// environment variables, then validation.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("invalid CONFIG_FILE: %w", err)
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"PORT", &c.Port},
		{"INTERVAL", &c.IntervalSeconds},
		{"TIMEOUT", &c.TimeoutSeconds},
		{"GCORE_DNS_API_ZONES_LIMIT", &c.ZonesLimit},
		{"GCORE_DNS_API_REQUEST_DELAY_MS", &c.RequestDelayMillis},
		{"REDIS_DB", &c.RedisDB},
	}
	for _, i := range ints {
		v := os.Getenv(i.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", i.name, v)
		}
		*i.dst = n
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"GCORE_DNS_API_URL", &c.APIURL},
		{"GCORE_DNS_API_KEY", &c.APIKey},
		{"ZONE_RESET_POLICY", &c.ZoneResetPolicy},
		{"LOG_LEVEL", &c.LogLevel},
		{"STORE_BACKEND", &c.StoreBackend},
		{"S3_BUCKET", &c.S3Bucket},
		{"S3_KEY_PREFIX", &c.S3KeyPrefix},
		{"S3_REGION", &c.S3Region},
		{"S3_ENDPOINT", &c.S3Endpoint},
		{"REDIS_ADDR", &c.RedisAddr},
		{"REDIS_PASSWORD", &c.RedisPassword},
		{"REDIS_KEY", &c.RedisKey},
	}
	for _, s := range strs {
		if v := os.Getenv(s.name); v != "" {
			*s.dst = v
		}
	}
	return nil
}

// Validate checks required fields and value ranges, normalising a few of them.
func (c *Config) Validate() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("INTERVAL must be a positive integer, got %d", c.IntervalSeconds)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("TIMEOUT must be a positive integer, got %d", c.TimeoutSeconds)
	}
	if c.ZonesLimit < 1 {
		return fmt.Errorf("GCORE_DNS_API_ZONES_LIMIT must be a positive integer, got %d", c.ZonesLimit)
	}
	if c.RequestDelayMillis < minRequestDelayMillis {
		return fmt.Errorf("GCORE_DNS_API_REQUEST_DELAY_MS must be at least %d, got %d", minRequestDelayMillis, c.RequestDelayMillis)
	}

	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("GCORE_DNS_API_URL must be an absolute URL, got %q", c.APIURL)
	}

	switch c.ZoneResetPolicy {
	case PolicyRetain, PolicyZero, PolicyClear:
	default:
		return fmt.Errorf("ZONE_RESET_POLICY must be %q, %q or %q, got %q",
			PolicyRetain, PolicyZero, PolicyClear, c.ZoneResetPolicy)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORE_BACKEND=s3")
		}
		if strings.Contains(c.S3KeyPrefix, "..") {
			return fmt.Errorf("S3_KEY_PREFIX must not contain '..', got %q", c.S3KeyPrefix)
		}
		c.S3KeyPrefix = strings.Trim(c.S3KeyPrefix, "/")
		if c.S3KeyPrefix == "" {
			c.S3KeyPrefix = defaultS3KeyPrefix
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
		if c.RedisKey == "" {
			c.RedisKey = defaultRedisKey
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q or %q, got %q",
			BackendMemory, BackendS3, BackendRedis, c.StoreBackend)
	}

	return nil
}

// Addr is the listen address of the scrape server.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// Interval is the pause between poll cycles.
func (c *Config) Interval() time.Duration { return time.Duration(c.IntervalSeconds) * time.Second }

// Timeout bounds a single upstream request.
func (c *Config) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// RequestDelay is the spacing between per-zone statistics requests.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMillis) * time.Millisecond
}

// ParseLogLevel maps a LOG_LEVEL value to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
