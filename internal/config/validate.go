package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Exchange.RestURL == "" {
		return errors.New("exchange.rest_url is required")
	}

	if err := validateKind("poll.exchange_info", c.Poll.ExchangeInfo); err != nil {
		return err
	}
	if err := validateKind("poll.account_info", c.Poll.AccountInfo); err != nil {
		return err
	}
	if err := validateKind("poll.system_status", c.Poll.SystemStatus); err != nil {
		return err
	}
	if c.Poll.Timeout <= 0 {
		return errors.New("poll.timeout must be positive")
	}

	for i, b := range c.RateLimits {
		if b.Bucket == "" {
			return fmt.Errorf("rate_limits[%d].bucket is required", i)
		}
		if b.Interval <= 0 {
			return fmt.Errorf("rate_limits[%d].interval must be positive", i)
		}
		if b.Limit < 1 {
			return fmt.Errorf("rate_limits[%d].limit must be >= 1", i)
		}
	}

	switch c.Journal.Backend {
	case "file":
		if c.Journal.Dir == "" {
			return errors.New("journal.dir is required for the file backend")
		}
	case "postgres":
		if err := c.Journal.Postgres.validate("journal.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("journal.backend must be \"file\" or \"postgres\", got %q", c.Journal.Backend)
	}

	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be between 1 and 65535, got %d", c.Service.Port)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if c.Metrics.Port == c.Service.Port {
		return fmt.Errorf("metrics.port and service.port must differ, both are %d", c.Metrics.Port)
	}

	if len(c.Stream.Symbols) > 0 {
		if c.Exchange.StreamURL == "" {
			return errors.New("exchange.stream_url is required when stream.symbols is set")
		}
		if c.Stream.RefreshCooldown <= 0 {
			return errors.New("stream.refresh_cooldown must be positive")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	return nil
}

func validateKind(prefix string, k KindPollConfig) error {
	if k.Interval <= 0 {
		return fmt.Errorf("%s.interval must be positive", prefix)
	}
	if k.Weight < 1 {
		return fmt.Errorf("%s.weight must be >= 1", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
