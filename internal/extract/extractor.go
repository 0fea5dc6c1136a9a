// Package extract fans out upstream fetches for a cycle's keys.
//
// Concurrency is bounded to the upstream quota; excess keys queue. Fatal
// per-key failures (auth, unknown key) go into the manifest and the rest of
// the batch proceeds; transient failures that survive the client's retry
// budget fail the whole extraction so the scheduler can retry the window.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rgoswami/findata/internal/model"
	"github.com/rgoswami/findata/internal/source"
)

// Source is the upstream client contract.
type Source interface {
	DailyPrices(ctx context.Context, symbol string, window model.Window) ([]model.Record, error)
	Statements(ctx context.Context, symbol string, window model.Window) ([]model.Record, error)
	Indicator(ctx context.Context, indicatorID string, window model.Window) ([]model.Record, error)
}

// Config holds extraction settings.
type Config struct {
	Concurrency    int           // Max in-flight upstream requests (default: 4)
	RequestTimeout time.Duration // Per-key fetch timeout (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:    4,
		RequestTimeout: 15 * time.Second,
	}
}

// KeyFailure records a key that could not be extracted.
type KeyFailure struct {
	Key   string
	Fatal bool
	Err   error
}

// Extractor pulls raw records for (domain, keys, window) tuples.
type Extractor struct {
	cfg    Config
	src    Source
	logger *slog.Logger
}

// New creates an Extractor.
func New(cfg Config, src Source, logger *slog.Logger) *Extractor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, src: src, logger: logger}
}

// Extract fetches all keys for one domain concurrently. It returns the
// fetched records plus a manifest of fatally failed keys. A non-nil error
// means the extraction as a whole must be retried (context cancelled or a
// transient failure exhausted its retries).
func (e *Extractor) Extract(ctx context.Context, domain model.Domain, keys []string, window model.Window) ([]model.Record, []KeyFailure, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}

	start := time.Now()

	var (
		mu        sync.Mutex
		records   []model.Record
		manifest  []KeyFailure
		transient error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			recs, err := e.fetchKey(gctx, domain, key, window)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				records = append(records, recs...)
			case source.IsFatal(err):
				e.logger.Warn("key failed fatally",
					"domain", domain,
					"key", key,
					"err", err,
				)
				manifest = append(manifest, KeyFailure{Key: key, Fatal: true, Err: err})
			default:
				// Transient and already retried by the client; the window
				// must be re-run, so surface it as an extraction failure.
				if transient == nil {
					transient = fmt.Errorf("extract %s/%s: %w", domain, key, err)
				}
				manifest = append(manifest, KeyFailure{Key: key, Err: err})
			}
			return nil
		})
	}

	// Workers never return errors; Wait only propagates context cancellation.
	if err := g.Wait(); err != nil {
		return nil, manifest, err
	}
	if err := ctx.Err(); err != nil {
		return nil, manifest, err
	}
	if transient != nil {
		return nil, manifest, transient
	}

	e.logger.Info("extraction complete",
		"domain", domain,
		"keys", len(keys),
		"records", len(records),
		"failed_keys", len(manifest),
		"duration", time.Since(start),
	)

	return records, manifest, nil
}

// fetchKey fetches a single key with a per-request timeout.
func (e *Extractor) fetchKey(ctx context.Context, domain model.Domain, key string, window model.Window) ([]model.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	switch domain {
	case model.DomainPrices:
		return e.src.DailyPrices(ctx, key, window)
	case model.DomainStatements:
		return e.src.Statements(ctx, key, window)
	case model.DomainIndicators:
		return e.src.Indicator(ctx, key, window)
	}
	return nil, fmt.Errorf("unknown domain %q", domain)
}
