// Package scheduler drives per-domain ingestion on cadence.
//
// Each domain runs its own loop: on every tick it tries to claim the domain
// in the state store, computes the due window from the persisted watermark,
// and hands the window to the cycle runner. The persisted claim, not any
// in-process lock, is what prevents overlapping windows for a domain.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rgoswami/findata/internal/ingest"
	"github.com/rgoswami/findata/internal/model"
	"github.com/rgoswami/findata/internal/state"
)

// Runner executes one ingestion cycle for a claimed window.
type Runner interface {
	Run(ctx context.Context, domain model.Domain, window model.Window) (ingest.CycleResult, error)
}

// AlertFunc is invoked once when a window exhausts its retry budget.
type AlertFunc func(domain model.Domain, window model.Window, attempts int, err error)

// Config holds the scheduler's tunables.
type Config struct {
	TickInterval      time.Duration
	CycleTimeout      time.Duration
	BootstrapLookback time.Duration
	Backoff           Policy
}

// Scheduler owns one goroutine per domain and serializes that domain's
// cycles through the state store claim.
type Scheduler struct {
	cfg    Config
	states state.Store
	runner Runner
	alert  AlertFunc
	logger *slog.Logger

	// now and sleep are swappable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler. alert may be nil.
func New(cfg Config, states state.Store, runner Runner, alert AlertFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		states: states,
		runner: runner,
		alert:  alert,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Run blocks until ctx is cancelled, driving every given domain on its
// cadence. One attempt is made per tick so a crashed process simply resumes
// from the persisted watermark on restart.
func (s *Scheduler) Run(ctx context.Context, domains []model.Domain) error {
	if err := s.states.EnsureDomains(ctx, domains); err != nil {
		return fmt.Errorf("scheduler: ensure domains: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			return s.runDomain(ctx, domain)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runDomain(ctx context.Context, domain model.Domain) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx, domain); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("tick failed", "domain", domain, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick makes at most one cycle attempt for the domain: claim, compute the
// due window, run, record. A domain already claimed elsewhere or with no
// window due is a no-op. The returned error covers state store failures
// only; a failed cycle is recorded and retried on a later tick.
func (s *Scheduler) Tick(ctx context.Context, domain model.Domain) error {
	st, claimed, err := s.states.Claim(ctx, domain)
	if err != nil {
		return fmt.Errorf("claim %s: %w", domain, err)
	}
	if !claimed {
		return nil
	}

	window := NextWindow(domain, st.LastWindowEnd, s.now(), s.cfg.BootstrapLookback)
	if window.Empty() {
		return s.states.Release(ctx, domain)
	}

	started := s.now()
	runCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.CycleTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}
	result, runErr := s.runner.Run(runCtx, domain, window)

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
		FinishedAt:  s.now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if runErr == nil {
		if err := s.states.MarkSucceeded(ctx, domain, window.End); err != nil {
			return fmt.Errorf("mark succeeded %s: %w", domain, err)
		}
		s.recordRun(ctx, run)
		return nil
	}

	attempts, err := s.states.MarkFailed(ctx, domain)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", domain, err)
	}
	s.recordRun(ctx, run)

	s.logger.Warn("cycle failed",
		"domain", domain,
		"window", window.String(),
		"attempt", attempts,
		"error", runErr,
	)

	if s.cfg.Backoff.Exhausted(attempts) {
		// Alert once at the threshold; later ticks keep retrying on the
		// normal cadence without re-alerting.
		if attempts == s.cfg.Backoff.MaxAttempts && s.alert != nil {
			s.alert(domain, window, attempts, runErr)
		}
		return nil
	}

	// Pause before handing the window back to the tick loop so consecutive
	// failures space out.
	return s.sleep(ctx, s.cfg.Backoff.Delay(attempts))
}

func (s *Scheduler) recordRun(ctx context.Context, run state.CycleRun) {
	if err := s.states.RecordRun(ctx, run); err != nil {
		s.logger.Error("record run failed", "domain", run.Domain, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
