package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSourceTimeout      = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 1 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultConcurrency        = 4
	DefaultRequestTimeout     = 15 * time.Second
	DefaultTickInterval       = 5 * time.Minute
	DefaultCycleTimeout       = 30 * time.Minute
	DefaultMaxAttempts        = 5
	DefaultBackoffBase        = 30 * time.Second
	DefaultBackoffMax         = 15 * time.Minute
	DefaultBootstrapLookback  = 365 * 24 * time.Hour
	DefaultBalanceTolerance   = 0.01
	DefaultMaxDailyMove       = 0.5
	DefaultHealthPort         = 8080
)

func (c *Config) applyDefaults() {
	// Source defaults
	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Source.MaxRetries == 0 {
		c.Source.MaxRetries = DefaultMaxRetries
	}
	if c.Source.RetryBackoff == 0 {
		c.Source.RetryBackoff = DefaultRetryBackoff
	}

	// Database defaults
	applyDBDefaults(&c.Database.Meta)
	applyDBDefaults(&c.Database.Timescale)

	// Extract defaults
	if c.Extract.Concurrency == 0 {
		c.Extract.Concurrency = DefaultConcurrency
	}
	if c.Extract.RequestTimeout == 0 {
		c.Extract.RequestTimeout = DefaultRequestTimeout
	}

	// Scheduler defaults
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = DefaultTickInterval
	}
	if c.Scheduler.CycleTimeout == 0 {
		c.Scheduler.CycleTimeout = DefaultCycleTimeout
	}
	if c.Scheduler.MaxAttempts == 0 {
		c.Scheduler.MaxAttempts = DefaultMaxAttempts
	}
	if c.Scheduler.BackoffBase == 0 {
		c.Scheduler.BackoffBase = DefaultBackoffBase
	}
	if c.Scheduler.BackoffMax == 0 {
		c.Scheduler.BackoffMax = DefaultBackoffMax
	}
	if c.Scheduler.BootstrapLookback == 0 {
		c.Scheduler.BootstrapLookback = DefaultBootstrapLookback
	}

	// Validate defaults
	if c.Validation.BalanceTolerance == 0 {
		c.Validation.BalanceTolerance = DefaultBalanceTolerance
	}
	if c.Validation.MaxDailyMove == 0 {
		c.Validation.MaxDailyMove = DefaultMaxDailyMove
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
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
