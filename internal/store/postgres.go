package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgoswami/findata/internal/model"
)

const priceUpsertSQL = `
	INSERT INTO daily_prices (symbol, date, open, high, low, close, adjusted_close, volume, flags, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (symbol, date) DO UPDATE SET
		open = excluded.open,
		high = excluded.high,
		low = excluded.low,
		close = excluded.close,
		adjusted_close = excluded.adjusted_close,
		volume = excluded.volume,
		flags = excluded.flags,
		last_updated = excluded.last_updated
	WHERE excluded.last_updated > daily_prices.last_updated`

const statementUpsertSQL = `
	INSERT INTO financial_statements (
		symbol, fiscal_date_ending, report_type,
		revenue, gross_profit, net_income, eps, ebitda,
		total_assets, total_liabilities, total_equity,
		operating_cash_flow, capital_expenditure,
		date_reported, flags, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (symbol, fiscal_date_ending, report_type) DO UPDATE SET
		revenue = excluded.revenue,
		gross_profit = excluded.gross_profit,
		net_income = excluded.net_income,
		eps = excluded.eps,
		ebitda = excluded.ebitda,
		total_assets = excluded.total_assets,
		total_liabilities = excluded.total_liabilities,
		total_equity = excluded.total_equity,
		operating_cash_flow = excluded.operating_cash_flow,
		capital_expenditure = excluded.capital_expenditure,
		date_reported = excluded.date_reported,
		flags = excluded.flags,
		last_updated = excluded.last_updated
	WHERE excluded.last_updated > financial_statements.last_updated`

const indicatorUpsertSQL = `
	INSERT INTO economic_indicators (indicator_id, date, value, unit, source, flags, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (indicator_id, date) DO UPDATE SET
		value = excluded.value,
		unit = excluded.unit,
		source = excluded.source,
		flags = excluded.flags,
		last_updated = excluded.last_updated
	WHERE excluded.last_updated > economic_indicators.last_updated`

// Postgres implements Store on a TimescaleDB pool.
type Postgres struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a TimescaleDB-backed store.
func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

func upsertArgs(rec model.Record) (sql string, args []any, err error) {
	flags := rec.Flags
	if flags == nil {
		flags = []string{}
	}

	switch rec.Domain {
	case model.DomainPrices:
		p := rec.Price
		return priceUpsertSQL, []any{
			p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close,
			p.AdjustedClose, p.Volume, flags, p.LastUpdated,
		}, nil
	case model.DomainStatements:
		s := rec.Statement
		return statementUpsertSQL, []any{
			s.Symbol, s.FiscalDateEnding, s.ReportType,
			s.Revenue, s.GrossProfit, s.NetIncome, s.EPS, s.EBITDA,
			s.TotalAssets, s.TotalLiabilities, s.TotalEquity,
			s.OperatingCashFlow, s.CapitalExpenditure,
			s.DateReported, flags, s.LastUpdated,
		}, nil
	case model.DomainIndicators:
		i := rec.Indicator
		return indicatorUpsertSQL, []any{
			i.IndicatorID, i.Date, i.Value, i.Unit, i.Source, flags, i.LastUpdated,
		}, nil
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnknownDomain, rec.Domain)
}

// Upsert applies a single record.
func (s *Postgres) Upsert(ctx context.Context, rec model.Record) (Outcome, error) {
	sql, args, err := upsertArgs(rec)
	if err != nil {
		return OutcomeSkipped, err
	}

	ct, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("upsert %s: %w", rec, err)
	}
	if ct.RowsAffected() == 0 {
		return OutcomeSkipped, nil
	}
	return OutcomeUpserted, nil
}

// UpsertBatch applies records in one transaction using pgx.Batch. Any failure
// rolls back the whole batch.
func (s *Postgres) UpsertBatch(ctx context.Context, batch []model.Record) (BatchStats, error) {
	var stats BatchStats
	if len(batch) == 0 {
		return stats, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, rec := range batch {
		sql, args, err := upsertArgs(rec)
		if err != nil {
			return BatchStats{}, err
		}
		b.Queue(sql, args...)
	}

	start := time.Now()
	results := tx.SendBatch(ctx, b)
	for range batch {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return BatchStats{}, fmt.Errorf("batch upsert: %w", err)
		}
		if ct.RowsAffected() == 0 {
			stats.Skips++
		} else {
			stats.Upserts++
		}
	}
	if err := results.Close(); err != nil {
		return BatchStats{}, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return BatchStats{}, fmt.Errorf("commit batch: %w", err)
	}

	s.logger.Debug("batch applied",
		"records", len(batch),
		"upserts", stats.Upserts,
		"skips", stats.Skips,
		"duration", time.Since(start),
	)

	return stats, nil
}

// Query returns one series inside the window in ascending time order.
func (s *Postgres) Query(ctx context.Context, domain model.Domain, key string, window model.Window) ([]model.Record, error) {
	switch domain {
	case model.DomainPrices:
		return s.queryPrices(ctx, key, window)
	case model.DomainStatements:
		return s.queryStatements(ctx, key, window)
	case model.DomainIndicators:
		return s.queryIndicators(ctx, key, window)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
}

func (s *Postgres) queryPrices(ctx context.Context, symbol string, window model.Window) ([]model.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT symbol, date, open, high, low, close, adjusted_close, volume, flags, last_updated
		FROM daily_prices
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, symbol, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var p model.PriceRecord
		var flags []string
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close,
			&p.AdjustedClose, &p.Volume, &flags, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		rec := model.NewPrice(p)
		rec.Flags = flags
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) queryStatements(ctx context.Context, symbol string, window model.Window) ([]model.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT symbol, fiscal_date_ending, report_type,
			revenue, gross_profit, net_income, eps, ebitda,
			total_assets, total_liabilities, total_equity,
			operating_cash_flow, capital_expenditure,
			date_reported, flags, last_updated
		FROM financial_statements
		WHERE symbol = $1 AND fiscal_date_ending >= $2 AND fiscal_date_ending <= $3
		ORDER BY fiscal_date_ending ASC, report_type ASC
	`, symbol, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var st model.StatementRecord
		var flags []string
		if err := rows.Scan(&st.Symbol, &st.FiscalDateEnding, &st.ReportType,
			&st.Revenue, &st.GrossProfit, &st.NetIncome, &st.EPS, &st.EBITDA,
			&st.TotalAssets, &st.TotalLiabilities, &st.TotalEquity,
			&st.OperatingCashFlow, &st.CapitalExpenditure,
			&st.DateReported, &flags, &st.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan statement row: %w", err)
		}
		rec := model.NewStatement(st)
		rec.Flags = flags
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) queryIndicators(ctx context.Context, indicatorID string, window model.Window) ([]model.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT indicator_id, date, value, unit, source, flags, last_updated
		FROM economic_indicators
		WHERE indicator_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, indicatorID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var ind model.IndicatorRecord
		var flags []string
		if err := rows.Scan(&ind.IndicatorID, &ind.Date, &ind.Value,
			&ind.Unit, &ind.Source, &flags, &ind.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan indicator row: %w", err)
		}
		rec := model.NewIndicator(ind)
		rec.Flags = flags
		out = append(out, rec)
	}
	return out, rows.Err()
}
