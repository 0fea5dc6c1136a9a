// Package ingest runs one extraction+validation+load cycle for a domain over
// a date window. It is invoked by the scheduler on cadence and by the
// backfill binary for manual windows.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rgoswami/findata/internal/deadletter"
	"github.com/rgoswami/findata/internal/extract"
	"github.com/rgoswami/findata/internal/loader"
	"github.com/rgoswami/findata/internal/model"
	"github.com/rgoswami/findata/internal/validate"
)

// Universe enumerates the keys extracted per domain.
type Universe struct {
	PriceSymbols     []string
	StatementSymbols []string
	IndicatorIDs     []string
}

// Keys returns the universe for one domain.
func (u Universe) Keys(domain model.Domain) []string {
	switch domain {
	case model.DomainPrices:
		return u.PriceSymbols
	case model.DomainStatements:
		return u.StatementSymbols
	case model.DomainIndicators:
		return u.IndicatorIDs
	}
	return nil
}

// CycleResult is the outcome of one cycle, enumerable per the cycle trigger
// contract: counts plus the keys that failed fatally.
type CycleResult struct {
	Domain     model.Domain
	Window     model.Window
	Succeeded  bool
	Extracted  int
	Loaded     int
	Skipped    int
	Rejected   int
	FailedKeys []extract.KeyFailure
}

// Runner wires extractor, validator, dead-letter sink and loader into the
// cycle pipeline. The store only ever sees a fully validated, atomically
// applied batch; a cycle aborted mid-way leaves no partial rows.
type Runner struct {
	universe  Universe
	extractor *extract.Extractor
	validator validate.Config
	loader    *loader.Loader
	sink      deadletter.Sink
	logger    *slog.Logger
}

// NewRunner creates a cycle Runner.
func NewRunner(
	universe Universe,
	extractor *extract.Extractor,
	validator validate.Config,
	ld *loader.Loader,
	sink deadletter.Sink,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		universe:  universe,
		extractor: extractor,
		validator: validator,
		loader:    ld,
		sink:      sink,
		logger:    logger,
	}
}

// Run executes one cycle. A non-nil error means nothing was applied and the
// window must be retried by the caller.
func (r *Runner) Run(ctx context.Context, domain model.Domain, window model.Window) (CycleResult, error) {
	result := CycleResult{Domain: domain, Window: window}
	if !domain.Valid() {
		return result, fmt.Errorf("run cycle: unknown domain %q", domain)
	}
	if window.Empty() {
		result.Succeeded = true
		return result, nil
	}

	keys := r.universe.Keys(domain)
	if len(keys) == 0 {
		result.Succeeded = true
		return result, nil
	}

	start := time.Now()
	r.logger.Info("cycle started",
		"domain", domain,
		"window", window.String(),
		"keys", len(keys),
	)

	raw, failed, err := r.extractor.Extract(ctx, domain, keys, window)
	result.FailedKeys = failed
	if err != nil {
		return result, fmt.Errorf("cycle extract: %w", err)
	}
	result.Extracted = len(raw)

	valid, rejected := r.validator.ValidateBatch(raw)
	result.Rejected = len(rejected)
	if len(rejected) > 0 {
		rejections := make([]deadletter.Rejection, 0, len(rejected))
		for _, rej := range rejected {
			rejections = append(rejections, deadletter.New(rej.Record, string(rej.Reason), rej.Detail))
		}
		// The dead letter is part of the cycle's contract; losing it is a
		// cycle failure, not a warning.
		if err := r.sink.Record(ctx, rejections); err != nil {
			return result, fmt.Errorf("cycle dead-letter: %w", err)
		}
	}

	applied, err := r.loader.Apply(ctx, valid)
	if err != nil {
		return result, fmt.Errorf("cycle load: %w", err)
	}
	result.Loaded = applied.Upserts
	result.Skipped = applied.Skips
	result.Succeeded = true

	r.logger.Info("cycle complete",
		"domain", domain,
		"window", window.String(),
		"extracted", result.Extracted,
		"loaded", result.Loaded,
		"skipped", result.Skipped,
		"rejected", result.Rejected,
		"failed_keys", len(result.FailedKeys),
		"duration", time.Since(start),
	)

	return result, nil
}
