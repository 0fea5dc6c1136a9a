package store

import (
	"context"
	"errors"

	"github.com/rgoswami/findata/internal/model"
)

// Outcome classifies what a single upsert did.
type Outcome int

const (
	// OutcomeUpserted means the record was inserted or overwrote an older one.
	OutcomeUpserted Outcome = iota
	// OutcomeSkipped means an equal-or-fresher record was already stored.
	OutcomeSkipped
)

// BatchStats summarizes an atomic batch apply.
type BatchStats struct {
	Upserts int
	Skips   int
}

// ErrUnknownDomain is returned for records with an invalid domain tag.
var ErrUnknownDomain = errors.New("unknown domain")

// Store is the persistence contract: pure storage, no pipeline logic.
type Store interface {
	// Upsert applies one record with freshness-guarded conflict resolution.
	Upsert(ctx context.Context, rec model.Record) (Outcome, error)

	// UpsertBatch applies records as a single all-or-nothing unit.
	UpsertBatch(ctx context.Context, batch []model.Record) (BatchStats, error)

	// Query returns records for one series key inside the window, in
	// ascending time order, without duplicates.
	Query(ctx context.Context, domain model.Domain, key string, window model.Window) ([]model.Record, error)
}
