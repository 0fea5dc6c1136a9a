package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Source.BaseURL == "" {
		return errors.New("source.base_url is required")
	}
	if c.Source.APIKey == "" {
		return errors.New("source.api_key is required")
	}
	if c.Source.MaxRetries < 0 {
		return errors.New("source.max_retries must be >= 0")
	}

	if err := c.Database.Meta.validate("database.meta"); err != nil {
		return err
	}
	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.Extract.Concurrency < 1 {
		return errors.New("extract.concurrency must be >= 1")
	}

	if len(c.Domains.Prices.Symbols) == 0 &&
		len(c.Domains.Statements.Symbols) == 0 &&
		len(c.Domains.Indicators.IDs) == 0 {
		return errors.New("at least one domain universe must be non-empty")
	}

	if c.Scheduler.MaxAttempts < 1 {
		return errors.New("scheduler.max_attempts must be >= 1")
	}
	if c.Scheduler.BackoffBase <= 0 {
		return errors.New("scheduler.backoff_base must be positive")
	}
	if c.Scheduler.BackoffMax < c.Scheduler.BackoffBase {
		return errors.New("scheduler.backoff_max must be >= scheduler.backoff_base")
	}
	if c.Scheduler.CycleTimeout <= 0 {
		return errors.New("scheduler.cycle_timeout must be positive")
	}

	if c.Validation.BalanceTolerance < 0 {
		return errors.New("validate.balance_tolerance must be >= 0")
	}
	if c.Validation.MaxDailyMove <= 0 {
		return errors.New("validate.max_daily_move must be positive")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
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
