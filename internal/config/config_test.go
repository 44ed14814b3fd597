package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
exchange:
  rest_url: https://testnet.binance.vision
  api_key: test-key
poll:
  system_status:
    interval: 30s
journal:
  backend: file
  dir: /var/lib/metad
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Exchange.RestURL != "https://testnet.binance.vision" {
		t.Errorf("Exchange.RestURL = %q, want %q", cfg.Exchange.RestURL, "https://testnet.binance.vision")
	}
	if cfg.Exchange.APIKey != "test-key" {
		t.Errorf("Exchange.APIKey = %q, want %q", cfg.Exchange.APIKey, "test-key")
	}
	if cfg.Poll.SystemStatus.Interval != 30*time.Second {
		t.Errorf("Poll.SystemStatus.Interval = %v, want %v", cfg.Poll.SystemStatus.Interval, 30*time.Second)
	}
	if cfg.Journal.Dir != "/var/lib/metad" {
		t.Errorf("Journal.Dir = %q, want %q", cfg.Journal.Dir, "/var/lib/metad")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_BINANCE_KEY", "secret123")

	yaml := `
exchange:
  api_key: ${TEST_BINANCE_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Exchange.APIKey != "secret123" {
		t.Errorf("Exchange.APIKey = %q, want %q", cfg.Exchange.APIKey, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "exchange:\n  api_key: k\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Exchange.RestURL != DefaultRestURL {
		t.Errorf("Exchange.RestURL = %q, want default %q", cfg.Exchange.RestURL, DefaultRestURL)
	}
	if cfg.Exchange.Timeout != DefaultAPITimeout {
		t.Errorf("Exchange.Timeout = %v, want default %v", cfg.Exchange.Timeout, DefaultAPITimeout)
	}
	if cfg.Poll.ExchangeInfo.Interval != DefaultExchangeInfoInterval {
		t.Errorf("Poll.ExchangeInfo.Interval = %v, want default %v", cfg.Poll.ExchangeInfo.Interval, DefaultExchangeInfoInterval)
	}
	if cfg.Poll.SystemStatus.Weight != DefaultSystemStatusWeight {
		t.Errorf("Poll.SystemStatus.Weight = %d, want default %d", cfg.Poll.SystemStatus.Weight, DefaultSystemStatusWeight)
	}
	if cfg.Journal.Backend != DefaultJournalBackend {
		t.Errorf("Journal.Backend = %q, want default %q", cfg.Journal.Backend, DefaultJournalBackend)
	}
	if cfg.Service.Port != DefaultServicePort {
		t.Errorf("Service.Port = %d, want default %d", cfg.Service.Port, DefaultServicePort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if len(cfg.RateLimits) != 1 || cfg.RateLimits[0].Bucket != DefaultWeightBucket {
		t.Errorf("RateLimits = %+v, want single %s default", cfg.RateLimits, DefaultWeightBucket)
	}
	if cfg.Journal.Postgres.Port != DefaultDBPort {
		t.Errorf("Journal.Postgres.Port = %d, want default %d", cfg.Journal.Postgres.Port, DefaultDBPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing rest url",
			mutate:  func(c *Config) { c.Exchange.RestURL = "" },
			wantErr: "exchange.rest_url is required",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Poll.SystemStatus.Interval = 0 },
			wantErr: "poll.system_status.interval must be positive",
		},
		{
			name:    "zero bucket limit",
			mutate:  func(c *Config) { c.RateLimits[0].Limit = 0 },
			wantErr: "rate_limits[0].limit must be >= 1",
		},
		{
			name:    "unknown journal backend",
			mutate:  func(c *Config) { c.Journal.Backend = "s3" },
			wantErr: "journal.backend must be \"file\" or \"postgres\", got \"s3\"",
		},
		{
			name: "postgres backend missing host",
			mutate: func(c *Config) {
				c.Journal.Backend = "postgres"
			},
			wantErr: "journal.postgres.host is required",
		},
		{
			name:    "service port out of range",
			mutate:  func(c *Config) { c.Service.Port = 70000 },
			wantErr: "service.port must be between 1 and 65535, got 70000",
		},
		{
			name: "metrics port collides with service port",
			mutate: func(c *Config) {
				c.Metrics.Port = c.Service.Port
			},
			wantErr: "metrics.port and service.port must differ, both are 8000",
		},
		{
			name: "stream symbols without cooldown",
			mutate: func(c *Config) {
				c.Stream.Symbols = []string{"btcusdt"}
				c.Stream.RefreshCooldown = -1
			},
			wantErr: "stream.refresh_cooldown must be positive",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "logging.level must be debug, info, warn, or error, got \"trace\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeTempFile(t, "exchange:\n  api_key: k\n")
		if _, err := LoadAndValidate(path); err != nil {
			t.Errorf("LoadAndValidate failed: %v", err)
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		path := writeTempFile(t, "journal:\n  backend: redis\n")
		if _, err := LoadAndValidate(path); err == nil {
			t.Error("LoadAndValidate should fail for unknown backend")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("LoadAndValidate should fail for missing file")
		}
	})
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
