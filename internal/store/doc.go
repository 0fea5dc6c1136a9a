// Package store provides the partitioned time-series persistence layer.
//
// Three TimescaleDB hypertables hold the domains, each with a composite
// natural primary key and time partitioning on the date column:
//   - daily_prices (symbol, date)
//   - financial_statements (symbol, fiscal_date_ending, report_type)
//   - economic_indicators (indicator_id, date)
//
// Conflict resolution is storage-native: upserts carry a freshness guard
// (excluded.last_updated > existing.last_updated) so an equal-or-older
// incoming record is a no-op. UpsertBatch is atomic; a failed batch leaves
// the store untouched.
package store
