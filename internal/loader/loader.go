// Package loader applies validated record batches to the store.
//
// A batch is one all-or-nothing unit per (domain, window): the store's atomic
// UpsertBatch either applies everything or nothing, and the freshness guard
// makes re-applying an identical batch a no-op. The loader's own job is
// deterministic batch preparation: stable ordering and within-batch
// deduplication by composite key.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rgoswami/findata/internal/model"
	"github.com/rgoswami/findata/internal/store"
)

// Result summarizes one batch apply.
type Result struct {
	Upserts int
	Skips   int
	Deduped int // within-batch duplicates dropped before the write
}

// Loader applies batches through a Store.
type Loader struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Loader.
func New(st store.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: st, logger: logger}
}

// Apply upserts a validated batch atomically. On error nothing was applied.
func (l *Loader) Apply(ctx context.Context, batch []model.Record) (Result, error) {
	var res Result
	if len(batch) == 0 {
		return res, nil
	}

	prepared, deduped := prepare(batch)
	res.Deduped = deduped

	start := time.Now()
	stats, err := l.store.UpsertBatch(ctx, prepared)
	if err != nil {
		return Result{}, fmt.Errorf("apply batch: %w", err)
	}
	res.Upserts = stats.Upserts
	res.Skips = stats.Skips

	l.logger.Info("batch loaded",
		"records", len(prepared),
		"upserts", res.Upserts,
		"skips", res.Skips,
		"deduped", res.Deduped,
		"duration", time.Since(start),
	)

	return res, nil
}

// prepare sorts the batch by (domain, key, last_updated) and keeps only the
// freshest record per composite key. Dropping within-batch duplicates up
// front keeps the stored outcome independent of upstream response order.
func prepare(batch []model.Record) ([]model.Record, int) {
	sorted := make([]model.Record, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Domain != sorted[j].Domain {
			return sorted[i].Domain < sorted[j].Domain
		}
		if ki, kj := sorted[i].Key(), sorted[j].Key(); ki != kj {
			return ki < kj
		}
		return sorted[i].LastUpdated().Before(sorted[j].LastUpdated())
	})

	out := make([]model.Record, 0, len(sorted))
	for _, rec := range sorted {
		n := len(out)
		if n > 0 && out[n-1].Domain == rec.Domain && out[n-1].Key() == rec.Key() {
			// Later sort position means equal-or-newer last_updated.
			out[n-1] = rec
			continue
		}
		out = append(out, rec)
	}
	return out, len(sorted) - len(out)
}
