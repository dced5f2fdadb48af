package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{
		"GCORE_DNS_API_KEY": "secret",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9886 {
		t.Errorf("expected default port 9886, got %d", cfg.Port)
	}
	if cfg.Interval() != 300*time.Second {
		t.Errorf("expected default interval 300s, got %s", cfg.Interval())
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %s", cfg.Timeout())
	}
	if cfg.APIURL != "https://dnsapi.gcorelabs.com/v2" {
		t.Errorf("unexpected default API URL %q", cfg.APIURL)
	}
	if cfg.ZonesLimit != 999 {
		t.Errorf("expected default zones limit 999, got %d", cfg.ZonesLimit)
	}
	if cfg.RequestDelay() != 500*time.Millisecond {
		t.Errorf("expected default request delay 500ms, got %s", cfg.RequestDelay())
	}
	if cfg.ZoneResetPolicy != PolicyRetain {
		t.Errorf("expected default policy %q, got %q", PolicyRetain, cfg.ZoneResetPolicy)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Errorf("expected default store backend %q, got %q", BackendMemory, cfg.StoreBackend)
	}
	if cfg.Addr() != ":9886" {
		t.Errorf("expected addr :9886, got %s", cfg.Addr())
	}
}

func TestLoad_AllOptions(t *testing.T) {
	setEnvs(t, map[string]string{
		"PORT":                           "9100",
		"INTERVAL":                       "60",
		"TIMEOUT":                        "3",
		"GCORE_DNS_API_URL":              "http://localhost:8080/v2/",
		"GCORE_DNS_API_KEY":              "  secret  ",
		"GCORE_DNS_API_ZONES_LIMIT":      "50",
		"GCORE_DNS_API_REQUEST_DELAY_MS": "750",
		"ZONE_RESET_POLICY":              "zero",
		"LOG_LEVEL":                      "debug",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9100 {
		t.Errorf("unexpected port: %d", cfg.Port)
	}
	if cfg.IntervalSeconds != 60 {
		t.Errorf("unexpected interval: %d", cfg.IntervalSeconds)
	}
	if cfg.TimeoutSeconds != 3 {
		t.Errorf("unexpected timeout: %d", cfg.TimeoutSeconds)
	}
	if cfg.APIURL != "http://localhost:8080/v2" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("expected trimmed API key, got %q", cfg.APIKey)
	}
	if cfg.ZonesLimit != 50 {
		t.Errorf("unexpected zones limit: %d", cfg.ZonesLimit)
	}
	if cfg.RequestDelay() != 750*time.Millisecond {
		t.Errorf("unexpected request delay: %s", cfg.RequestDelay())
	}
	if cfg.ZoneResetPolicy != PolicyZero {
		t.Errorf("unexpected policy: %q", cfg.ZoneResetPolicy)
	}
	level, err := ParseLogLevel(cfg.LogLevel)
	if err != nil || level != slog.LevelDebug {
		t.Errorf("unexpected log level %q (%v)", cfg.LogLevel, err)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setEnvs(t, map[string]string{})

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "abc"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"zero interval", map[string]string{"INTERVAL": "0"}},
		{"negative timeout", map[string]string{"TIMEOUT": "-1"}},
		{"zero zones limit", map[string]string{"GCORE_DNS_API_ZONES_LIMIT": "0"}},
		{"request delay too small", map[string]string{"GCORE_DNS_API_REQUEST_DELAY_MS": "100"}},
		{"relative api url", map[string]string{"GCORE_DNS_API_URL": "dnsapi/v2"}},
		{"unknown policy", map[string]string{"ZONE_RESET_POLICY": "forget"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "etcd"}},
		{"s3 without bucket", map[string]string{"STORE_BACKEND": "s3"}},
		{"s3 prefix traversal", map[string]string{"STORE_BACKEND": "s3", "S3_BUCKET": "b", "S3_KEY_PREFIX": "../x"}},
		{"redis without addr", map[string]string{"STORE_BACKEND": "redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := map[string]string{"GCORE_DNS_API_KEY": "secret"}
			for k, v := range tt.envs {
				envs[k] = v
			}
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_StoreBackendS3(t *testing.T) {
	setEnvs(t, map[string]string{
		"GCORE_DNS_API_KEY": "secret",
		"STORE_BACKEND":     "s3",
		"S3_BUCKET":         "my-snapshots",
		"S3_KEY_PREFIX":     "/prod/dns/",
		"S3_REGION":         "eu-west-1",
		"S3_ENDPOINT":       "http://minio:9000",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.S3Bucket != "my-snapshots" {
		t.Errorf("unexpected bucket %q", cfg.S3Bucket)
	}
	if cfg.S3KeyPrefix != "prod/dns" {
		t.Errorf("expected trimmed key prefix 'prod/dns', got %q", cfg.S3KeyPrefix)
	}
	if cfg.S3Region != "eu-west-1" {
		t.Errorf("unexpected region %q", cfg.S3Region)
	}
	if cfg.S3Endpoint != "http://minio:9000" {
		t.Errorf("unexpected endpoint %q", cfg.S3Endpoint)
	}
}

func TestLoad_StoreBackendRedis(t *testing.T) {
	setEnvs(t, map[string]string{
		"GCORE_DNS_API_KEY": "secret",
		"STORE_BACKEND":     "redis",
		"REDIS_ADDR":        "redis:6379",
		"REDIS_DB":          "2",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("unexpected redis db %d", cfg.RedisDB)
	}
	if cfg.RedisKey != "gcore-dns-exporter:snapshot" {
		t.Errorf("unexpected default redis key %q", cfg.RedisKey)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.yaml")
	content := []byte(`
port: 9200
interval: 120
api_key: from-file
zones_limit: 10
zone_reset_policy: clear
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	setEnvs(t, map[string]string{
		"CONFIG_FILE": path,
		"INTERVAL":    "30",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("expected port from file, got %d", cfg.Port)
	}
	if cfg.IntervalSeconds != 30 {
		t.Errorf("expected env to override file interval, got %d", cfg.IntervalSeconds)
	}
	if cfg.APIKey != "from-file" {
		t.Errorf("expected API key from file, got %q", cfg.APIKey)
	}
	if cfg.ZonesLimit != 10 {
		t.Errorf("expected zones limit from file, got %d", cfg.ZonesLimit)
	}
	if cfg.ZoneResetPolicy != PolicyClear {
		t.Errorf("expected policy from file, got %q", cfg.ZoneResetPolicy)
	}
	if cfg.TimeoutSeconds != 10 {
		t.Errorf("expected untouched default timeout, got %d", cfg.TimeoutSeconds)
	}
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("port: [1, 2"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	for _, path := range []string{bad, filepath.Join(t.TempDir(), "missing.yaml")} {
		setEnvs(t, map[string]string{
			"CONFIG_FILE":       path,
			"GCORE_DNS_API_KEY": "secret",
		})
		if _, err := Load(); err == nil {
			t.Errorf("expected error for config file %s", path)
		}
	}
}

// setEnvs sets environment variables for the duration of the test and clears
// all config-related env vars first to ensure clean state.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	keys := []string{
		"CONFIG_FILE", "PORT", "INTERVAL", "TIMEOUT",
		"GCORE_DNS_API_URL", "GCORE_DNS_API_KEY", "GCORE_DNS_API_ZONES_LIMIT",
		"GCORE_DNS_API_REQUEST_DELAY_MS", "ZONE_RESET_POLICY", "LOG_LEVEL",
		"STORE_BACKEND", "S3_BUCKET", "S3_KEY_PREFIX", "S3_REGION", "S3_ENDPOINT",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY",
	}
	for _, k := range keys {
		// t.Setenv registers the restore; Unsetenv then removes the variable.
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("failed to unset %s: %v", k, err)
		}
	}
	for k, v := range envs {
		t.Setenv(k, v)
	}
}
