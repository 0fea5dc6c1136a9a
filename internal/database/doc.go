// Package database provides connection pool management for PostgreSQL and
// TimescaleDB.
//
// The ingestion daemon maintains two pools:
//   - Meta (PostgreSQL): orchestration state (cycle claims, run history) and
//     the dead-letter table
//   - Timescale (TimescaleDB): the three time-partitioned domain hypertables
package database
