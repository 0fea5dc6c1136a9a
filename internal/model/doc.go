// Package model defines the shared record types for the ingestion engine.
//
// Three domains are ingested on independent cadences:
//   - prices: daily OHLCV bars, keyed by (symbol, date)
//   - statements: quarterly/annual financial statements, keyed by
//     (symbol, fiscal_date_ending, report_type)
//   - indicators: monthly economic indicators, keyed by (indicator_id, date)
//
// Conventions:
//   - Dates: time.Time at UTC midnight (daily resolution)
//   - LastUpdated: timestamp authority for upsert conflict resolution
//   - Optional statement fields: *float64, nil when the upstream omits them
package model
