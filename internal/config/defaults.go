package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL   = "https://api.binance.com"
	DefaultStreamURL = "wss://stream.binance.com:9443"

	DefaultAPITimeout = 30 * time.Second
	DefaultMaxRetries = 3

	DefaultExchangeInfoInterval = 5 * time.Minute
	DefaultAccountInfoInterval  = 5 * time.Minute
	DefaultSystemStatusInterval = 1 * time.Minute
	DefaultExchangeInfoWeight   = 20
	DefaultAccountInfoWeight    = 20
	DefaultSystemStatusWeight   = 1
	DefaultPollTimeout          = 10 * time.Second

	// Spot default until the exchange reports its own limits.
	DefaultWeightBucket   = "REQUEST_WEIGHT"
	DefaultWeightInterval = 1 * time.Minute
	DefaultWeightLimit    = 1200

	DefaultJournalBackend = "file"
	DefaultJournalDir     = "output"

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultServicePort  = 8000
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultMetricsPort  = 9090
	DefaultMetricsPath  = "/metrics"

	DefaultRefreshCooldown    = 1 * time.Minute
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultStreamBufferSize   = 1024

	DefaultLogLevel = "info"
)

func (c *Config) applyDefaults() {
	// Exchange defaults
	if c.Exchange.RestURL == "" {
		c.Exchange.RestURL = DefaultRestURL
	}
	if c.Exchange.StreamURL == "" {
		c.Exchange.StreamURL = DefaultStreamURL
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = DefaultAPITimeout
	}
	if c.Exchange.MaxRetries == 0 {
		c.Exchange.MaxRetries = DefaultMaxRetries
	}

	// Poll defaults
	applyKindDefaults(&c.Poll.ExchangeInfo, DefaultExchangeInfoInterval, DefaultExchangeInfoWeight)
	applyKindDefaults(&c.Poll.AccountInfo, DefaultAccountInfoInterval, DefaultAccountInfoWeight)
	applyKindDefaults(&c.Poll.SystemStatus, DefaultSystemStatusInterval, DefaultSystemStatusWeight)
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = DefaultPollTimeout
	}

	// Rate limit defaults
	if len(c.RateLimits) == 0 {
		c.RateLimits = []BucketConfig{
			{Bucket: DefaultWeightBucket, Interval: DefaultWeightInterval, Limit: DefaultWeightLimit},
		}
	}

	// Journal defaults
	if c.Journal.Backend == "" {
		c.Journal.Backend = DefaultJournalBackend
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = DefaultJournalDir
	}
	applyDBDefaults(&c.Journal.Postgres)

	// Service defaults
	if c.Service.Port == 0 {
		c.Service.Port = DefaultServicePort
	}
	if c.Service.ReadTimeout == 0 {
		c.Service.ReadTimeout = DefaultReadTimeout
	}
	if c.Service.WriteTimeout == 0 {
		c.Service.WriteTimeout = DefaultWriteTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Stream defaults
	if c.Stream.RefreshCooldown == 0 {
		c.Stream.RefreshCooldown = DefaultRefreshCooldown
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

func applyKindDefaults(k *KindPollConfig, interval time.Duration, weight int) {
	if k.Interval == 0 {
		k.Interval = interval
	}
	if k.Weight == 0 {
		k.Weight = weight
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
