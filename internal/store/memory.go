package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rgoswami/findata/internal/model"
)

// Memory implements Store in memory with the same conflict semantics as the
// Postgres implementation. Used in tests.
type Memory struct {
	mu   sync.Mutex
	rows map[model.Domain]map[string]model.Record

	// FailWrites forces UpsertBatch/Upsert to fail, for atomicity tests.
	FailWrites bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	rows := make(map[model.Domain]map[string]model.Record)
	for _, d := range model.Domains() {
		rows[d] = make(map[string]model.Record)
	}
	return &Memory{rows: rows}
}

// Upsert applies one record with the freshness guard.
func (m *Memory) Upsert(ctx context.Context, rec model.Record) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return OutcomeSkipped, fmt.Errorf("memory store: writes disabled")
	}
	return m.upsertLocked(rec)
}

func (m *Memory) upsertLocked(rec model.Record) (Outcome, error) {
	if !rec.Domain.Valid() {
		return OutcomeSkipped, fmt.Errorf("%w: %q", ErrUnknownDomain, rec.Domain)
	}

	key := rec.Key()
	if existing, ok := m.rows[rec.Domain][key]; ok {
		// Same guard as the SQL: overwrite only strictly fresher.
		if !rec.LastUpdated().After(existing.LastUpdated()) {
			return OutcomeSkipped, nil
		}
	}
	m.rows[rec.Domain][key] = rec
	return OutcomeUpserted, nil
}

// UpsertBatch applies all records or none.
func (m *Memory) UpsertBatch(ctx context.Context, batch []model.Record) (BatchStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats BatchStats
	if len(batch) == 0 {
		return stats, nil
	}
	if m.FailWrites {
		return BatchStats{}, fmt.Errorf("memory store: writes disabled")
	}

	// Stage on a copy so a mid-batch error leaves the store untouched.
	staged := make(map[model.Domain]map[string]model.Record, len(m.rows))
	for d, rows := range m.rows {
		staged[d] = make(map[string]model.Record, len(rows))
		for k, v := range rows {
			staged[d][k] = v
		}
	}
	live := m.rows
	m.rows = staged

	for _, rec := range batch {
		outcome, err := m.upsertLocked(rec)
		if err != nil {
			m.rows = live
			return BatchStats{}, err
		}
		if outcome == OutcomeUpserted {
			stats.Upserts++
		} else {
			stats.Skips++
		}
	}
	return stats, nil
}

// Query returns one series inside the window in ascending time order.
func (m *Memory) Query(ctx context.Context, domain model.Domain, key string, window model.Window) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.rows[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}

	var out []model.Record
	for _, rec := range rows {
		if rec.SeriesKey() != key {
			continue
		}
		if !window.Contains(rec.Timestamp()) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Timestamp(), out[j].Timestamp()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// Len returns the total number of stored records across domains.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rows := range m.rows {
		n += len(rows)
	}
	return n
}

// Snapshot returns a copy of all stored records keyed by domain and record
// key, for equality checks in tests.
func (m *Memory) Snapshot() map[model.Domain]map[string]model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.Domain]map[string]model.Record, len(m.rows))
	for d, rows := range m.rows {
		out[d] = make(map[string]model.Record, len(rows))
		for k, v := range rows {
			out[d][k] = v
		}
	}
	return out
}
