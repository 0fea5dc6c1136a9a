// Command backfill runs a single ingestion cycle for one domain over an
// explicit date window. It claims the domain through the shared state store,
// so it cannot overlap a cycle started by a running ingestd.
//
// The scheduler watermark is not advanced: backfill fills history, and the
// upsert freshness rule makes re-covering already-loaded dates harmless.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rgoswami/findata/internal/config"
	"github.com/rgoswami/findata/internal/database"
	"github.com/rgoswami/findata/internal/deadletter"
	"github.com/rgoswami/findata/internal/extract"
	"github.com/rgoswami/findata/internal/ingest"
	"github.com/rgoswami/findata/internal/loader"
	"github.com/rgoswami/findata/internal/model"
	"github.com/rgoswami/findata/internal/source"
	"github.com/rgoswami/findata/internal/state"
	"github.com/rgoswami/findata/internal/store"
	"github.com/rgoswami/findata/internal/validate"
	"github.com/rgoswami/findata/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestd.local.yaml", "path to config file")
	domainFlag := flag.String("domain", "", "domain to backfill: prices, statements or indicators")
	fromFlag := flag.String("from", "", "window start (inclusive), YYYY-MM-DD")
	toFlag := flag.String("to", "", "window end (inclusive), YYYY-MM-DD")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	domain := model.Domain(*domainFlag)
	if !domain.Valid() {
		fmt.Fprintf(os.Stderr, "invalid -domain %q (want prices, statements or indicators)\n", *domainFlag)
		os.Exit(2)
	}
	window, err := parseWindow(*fromFlag, *toFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger.Info("starting backfill",
		"version", version.Version,
		"domain", domain,
		"window", window.String(),
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pools, err := database.NewPools(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to databases", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	if err := store.EnsureSchema(ctx, pools.Timescale); err != nil {
		logger.Error("failed to ensure time-series schema", "error", err)
		os.Exit(1)
	}
	states := state.NewPostgres(pools.Meta)
	states.StaleClaimAfter = state.StaleClaimBound(cfg.Scheduler.CycleTimeout)
	if err := states.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure state schema", "error", err)
		os.Exit(1)
	}
	sink := deadletter.NewPostgresSink(pools.Meta)
	if err := sink.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure dead-letter schema", "error", err)
		os.Exit(1)
	}

	client := source.NewClient(
		cfg.Source.BaseURL,
		cfg.Source.APIKey,
		source.WithLogger(logger),
		source.WithTimeout(cfg.Source.Timeout),
		source.WithRetries(cfg.Source.MaxRetries, cfg.Source.RetryBackoff),
	)
	runner := ingest.NewRunner(
		ingest.Universe{
			PriceSymbols:     cfg.Domains.Prices.Symbols,
			StatementSymbols: cfg.Domains.Statements.Symbols,
			IndicatorIDs:     cfg.Domains.Indicators.IDs,
		},
		extract.New(extract.Config{
			Concurrency:    cfg.Extract.Concurrency,
			RequestTimeout: cfg.Extract.RequestTimeout,
		}, client, logger),
		validate.Config{
			BalanceTolerance: cfg.Validation.BalanceTolerance,
			MaxDailyMove:     cfg.Validation.MaxDailyMove,
		},
		loader.New(store.NewPostgres(pools.Timescale, logger), logger),
		sink,
		logger,
	)

	// Claim the domain so a concurrent scheduled cycle cannot overlap.
	if err := states.EnsureDomains(ctx, []model.Domain{domain}); err != nil {
		logger.Error("failed to ensure domain state", "error", err)
		os.Exit(1)
	}
	_, claimed, err := states.Claim(ctx, domain)
	if err != nil {
		logger.Error("failed to claim domain", "error", err)
		os.Exit(1)
	}
	if !claimed {
		logger.Error("domain has a running cycle, try again later", "domain", domain)
		os.Exit(1)
	}

	started := time.Now()
	result, runErr := runner.Run(ctx, domain, window)

	run := state.CycleRun{
		Domain:      domain,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Succeeded:   runErr == nil,
		Loaded:      result.Loaded,
		Skipped:     result.Skipped,
		FailedKeys:  len(result.FailedKeys),
		Rejected:    result.Rejected,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	finishRun(states, domain, run, logger)

	if runErr != nil {
		logger.Error("backfill failed", "domain", domain, "error", runErr)
		os.Exit(1)
	}

	fmt.Printf("backfill %s %s: loaded=%d skipped=%d rejected=%d failed_keys=%d\n",
		domain, window.String(), result.Loaded, result.Skipped, result.Rejected, len(result.FailedKeys))
	for _, failure := range result.FailedKeys {
		fmt.Printf("  failed key %s: %v\n", failure.Key, failure.Err)
	}
}

// finishRun records the outcome and releases the claim. It runs on its own
// context so the claim is still released when the run context was cancelled
// by a shutdown signal; a leaked claim would block the daemon's next cycle
// for this domain until the stale-claim reclaim.
func finishRun(states state.Store, domain model.Domain, run state.CycleRun, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := states.RecordRun(ctx, run); err != nil {
		logger.Error("failed to record run", "error", err)
	}
	if err := states.Release(ctx, domain); err != nil {
		logger.Error("failed to release domain claim", "error", err)
	}
}

func parseWindow(from, to string) (model.Window, error) {
	if from == "" || to == "" {
		return model.Window{}, fmt.Errorf("both -from and -to are required")
	}
	start, err := model.ParseDate(from)
	if err != nil {
		return model.Window{}, fmt.Errorf("invalid -from: %w", err)
	}
	end, err := model.ParseDate(to)
	if err != nil {
		return model.Window{}, fmt.Errorf("invalid -to: %w", err)
	}
	w := model.Window{Start: start, End: end}
	if w.Empty() {
		return model.Window{}, fmt.Errorf("window %s to %s is empty (end must not be before start)", from, to)
	}
	return w, nil
}
