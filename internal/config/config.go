package config

import "time"

// Config is the root configuration for an ingestion daemon instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Source    SourceConfig    `yaml:"source"`
	Database  DatabaseConfig  `yaml:"database"`
	Extract   ExtractConfig   `yaml:"extract"`
	Domains   DomainsConfig   `yaml:"domains"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Validation ValidateConfig `yaml:"validate"`
	Health    HealthConfig    `yaml:"health"`
}

// InstanceConfig identifies this ingestion daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig holds upstream data source settings.
type SourceConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DatabaseConfig holds the two database connections: Meta for orchestration
// state and dead letters, Timescale for the time-series tables.
type DatabaseConfig struct {
	Meta      DBConfig `yaml:"meta"`
	Timescale DBConfig `yaml:"timescale"`
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

// ExtractConfig holds extraction worker settings. Concurrency bounds the
// number of in-flight upstream requests to respect the source quota.
type ExtractConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DomainsConfig enumerates the keys extracted per domain.
type DomainsConfig struct {
	Prices     PricesConfig     `yaml:"prices"`
	Statements StatementsConfig `yaml:"statements"`
	Indicators IndicatorsConfig `yaml:"indicators"`
}

// PricesConfig holds the daily price-bar universe.
type PricesConfig struct {
	Symbols []string `yaml:"symbols"`
}

// StatementsConfig holds the financial-statement universe.
type StatementsConfig struct {
	Symbols []string `yaml:"symbols"`
}

// IndicatorsConfig holds the economic-indicator universe.
type IndicatorsConfig struct {
	IDs []string `yaml:"ids"`
}

// SchedulerConfig holds cycle scheduling and retry settings.
type SchedulerConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	CycleTimeout      time.Duration `yaml:"cycle_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	BootstrapLookback time.Duration `yaml:"bootstrap_lookback"`
}

// ValidateConfig holds soft-check tuning.
type ValidateConfig struct {
	// BalanceTolerance is the relative tolerance for the balance-sheet
	// identity (total_assets vs liabilities + equity).
	BalanceTolerance float64 `yaml:"balance_tolerance"`
	// MaxDailyMove is the relative day-over-day close move beyond which a
	// price bar is flagged.
	MaxDailyMove float64 `yaml:"max_daily_move"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
