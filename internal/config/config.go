package config

import "time"

// Config is the root configuration for a metad instance.
type Config struct {
	Exchange   ExchangeConfig `yaml:"exchange"`
	Poll       PollConfig     `yaml:"poll"`
	RateLimits []BucketConfig `yaml:"rate_limits"`
	Journal    JournalConfig  `yaml:"journal"`
	Service    ServiceConfig  `yaml:"service"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Stream     StreamConfig   `yaml:"stream"`
	Logging    LoggingConfig  `yaml:"logging"`
}

// ExchangeConfig holds Binance API settings.
type ExchangeConfig struct {
	RestURL        string        `yaml:"rest_url"`
	StreamURL      string        `yaml:"stream_url"`
	APIKey         string        `yaml:"api_key"`          // API key (X-MBX-APIKEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to Ed25519 private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// KindPollConfig holds the cadence and request weight for one resource kind.
type KindPollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Weight   int           `yaml:"weight"`
}

// PollConfig holds per-kind poll schedules.
type PollConfig struct {
	ExchangeInfo KindPollConfig `yaml:"exchange_info"`
	AccountInfo  KindPollConfig `yaml:"account_info"`
	SystemStatus KindPollConfig `yaml:"system_status"`
	Timeout      time.Duration  `yaml:"timeout"` // Per-request timeout
}

// BucketConfig seeds one rate limit bucket before the exchange reports its own.
type BucketConfig struct {
	Bucket   string        `yaml:"bucket"`
	Interval time.Duration `yaml:"interval"`
	Limit    int           `yaml:"limit"`
}

// JournalConfig selects and configures the persistence journal backend.
type JournalConfig struct {
	Backend  string   `yaml:"backend"` // "file" or "postgres"
	Dir      string   `yaml:"dir"`     // File backend: one <kind>.log per resource kind
	NoSync   bool     `yaml:"no_sync"` // File backend: skip fsync after each append
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ServiceConfig holds the query interface settings.
type ServiceConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// StreamConfig holds the ticker stream watcher settings. An empty symbol list
// disables the watcher.
type StreamConfig struct {
	Symbols            []string      `yaml:"symbols"`
	RefreshCooldown    time.Duration `yaml:"refresh_cooldown"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
