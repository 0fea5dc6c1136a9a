package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
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
	"github.com/rgoswami/findata/internal/scheduler"
	"github.com/rgoswami/findata/internal/source"
	"github.com/rgoswami/findata/internal/state"
	"github.com/rgoswami/findata/internal/store"
	"github.com/rgoswami/findata/internal/validate"
	"github.com/rgoswami/findata/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestd.local.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local development; config expands ${VAR} references.
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingestd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"source_url", cfg.Source.BaseURL,
		"price_symbols", len(cfg.Domains.Prices.Symbols),
		"statement_symbols", len(cfg.Domains.Statements.Symbols),
		"indicator_ids", len(cfg.Domains.Indicators.IDs),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the databases
	logger.Info("connecting to databases",
		"meta", fmt.Sprintf("%s:%d/%s", cfg.Database.Meta.Host, cfg.Database.Meta.Port, cfg.Database.Meta.Name),
		"timescale", fmt.Sprintf("%s:%d/%s", cfg.Database.Timescale.Host, cfg.Database.Timescale.Port, cfg.Database.Timescale.Name),
	)

	pools, err := database.NewPools(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to databases", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	logger.Info("databases connected")

	// Ensure schemas
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

	// Upstream client
	client := source.NewClient(
		cfg.Source.BaseURL,
		cfg.Source.APIKey,
		source.WithLogger(logger),
		source.WithTimeout(cfg.Source.Timeout),
		source.WithRetries(cfg.Source.MaxRetries, cfg.Source.RetryBackoff),
	)

	// Cycle pipeline
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

	alert := func(domain model.Domain, window model.Window, attempts int, err error) {
		logger.Error("ALERT: retry budget exhausted",
			"domain", domain,
			"window", window.String(),
			"attempts", attempts,
			"error", err,
		)
	}

	sched := scheduler.New(scheduler.Config{
		TickInterval:      cfg.Scheduler.TickInterval,
		CycleTimeout:      cfg.Scheduler.CycleTimeout,
		BootstrapLookback: cfg.Scheduler.BootstrapLookback,
		Backoff: scheduler.Policy{
			MaxAttempts: cfg.Scheduler.MaxAttempts,
			Base:        cfg.Scheduler.BackoffBase,
			Max:         cfg.Scheduler.BackoffMax,
		},
	}, states, runner, alert, logger)

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(pools, states, logger),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("ingestd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Scheduler blocks until shutdown
	if err := sched.Run(ctx, model.Domains()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", "error", err)
	}

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("ingestd stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(pools *database.Pools, states state.Store, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check databases
		if err := pools.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		// Per-domain cycle state
		domains := make(map[string]interface{}, len(model.Domains()))
		for _, domain := range model.Domains() {
			st, err := states.Get(ctx, domain)
			if err != nil {
				domains[string(domain)] = map[string]string{"error": err.Error()}
				continue
			}
			entry := map[string]interface{}{
				"status":   string(st.Status),
				"attempts": st.Attempts,
			}
			if !st.LastWindowEnd.IsZero() {
				entry["last_window_end"] = st.LastWindowEnd.UTC().Format(time.RFC3339)
			}
			domains[string(domain)] = entry
			if st.Status == state.StatusFailed {
				health.Status = "degraded"
			}
		}
		health.Components["domains"] = domains

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Error("failed to encode health response", "error", err)
		}
	})

	return mux
}
