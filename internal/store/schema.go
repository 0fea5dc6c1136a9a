package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Hypertable DDL. Chunk intervals bound range-scan and retention cost:
// monthly chunks for the daily/monthly series, yearly for statements.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS daily_prices (
		symbol          TEXT NOT NULL,
		date            DATE NOT NULL,
		open            DOUBLE PRECISION NOT NULL,
		high            DOUBLE PRECISION NOT NULL,
		low             DOUBLE PRECISION NOT NULL,
		close           DOUBLE PRECISION NOT NULL,
		adjusted_close  DOUBLE PRECISION NOT NULL,
		volume          BIGINT NOT NULL,
		flags           TEXT[] NOT NULL DEFAULT '{}',
		last_updated    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, date)
	)`,
	`SELECT create_hypertable('daily_prices', 'date',
		chunk_time_interval => INTERVAL '1 month', if_not_exists => TRUE)`,

	`CREATE TABLE IF NOT EXISTS financial_statements (
		symbol               TEXT NOT NULL,
		fiscal_date_ending   DATE NOT NULL,
		report_type          TEXT NOT NULL,
		revenue              DOUBLE PRECISION,
		gross_profit         DOUBLE PRECISION,
		net_income           DOUBLE PRECISION,
		eps                  DOUBLE PRECISION,
		ebitda               DOUBLE PRECISION,
		total_assets         DOUBLE PRECISION,
		total_liabilities    DOUBLE PRECISION,
		total_equity         DOUBLE PRECISION,
		operating_cash_flow  DOUBLE PRECISION,
		capital_expenditure  DOUBLE PRECISION,
		date_reported        DATE,
		flags                TEXT[] NOT NULL DEFAULT '{}',
		last_updated         TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, fiscal_date_ending, report_type)
	)`,
	`SELECT create_hypertable('financial_statements', 'fiscal_date_ending',
		chunk_time_interval => INTERVAL '1 year', if_not_exists => TRUE)`,

	`CREATE TABLE IF NOT EXISTS economic_indicators (
		indicator_id  TEXT NOT NULL,
		date          DATE NOT NULL,
		value         DOUBLE PRECISION NOT NULL,
		unit          TEXT NOT NULL DEFAULT '',
		source        TEXT NOT NULL DEFAULT '',
		flags         TEXT[] NOT NULL DEFAULT '{}',
		last_updated  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (indicator_id, date)
	)`,
	`SELECT create_hypertable('economic_indicators', 'date',
		chunk_time_interval => INTERVAL '1 month', if_not_exists => TRUE)`,
}

// EnsureSchema creates the hypertables if they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
