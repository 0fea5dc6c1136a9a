package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rgoswami/findata/internal/ingest"
	"github.com/rgoswami/findata/internal/model"
	"github.com/rgoswami/findata/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu      sync.Mutex
	err     error
	calls   int
	windows []model.Window
}

func (f *fakeRunner) Run(_ context.Context, domain model.Domain, window model.Window) (ingest.CycleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.windows = append(f.windows, window)
	if f.err != nil {
		return ingest.CycleResult{Domain: domain, Window: window}, f.err
	}
	return ingest.CycleResult{Domain: domain, Window: window, Succeeded: true, Loaded: 3}, nil
}

func newTestScheduler(t *testing.T, runner Runner, alert AlertFunc) (*Scheduler, *state.Memory) {
	t.Helper()
	states := state.NewMemory()
	cfg := Config{
		TickInterval:      time.Hour,
		CycleTimeout:      time.Minute,
		BootstrapLookback: 30 * 24 * time.Hour,
		Backoff:           Policy{MaxAttempts: 3, Base: time.Second, Max: 10 * time.Second},
	}
	s := New(cfg, states, runner, alert, discardLogger())
	s.now = func() time.Time {
		return time.Date(2023, time.May, 17, 12, 0, 0, 0, time.UTC)
	}
	s.sleep = func(context.Context, time.Duration) error { return nil }

	if err := states.EnsureDomains(context.Background(), model.Domains()); err != nil {
		t.Fatalf("EnsureDomains: %v", err)
	}
	return s, states
}

func TestTickAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	s, states := newTestScheduler(t, runner, nil)

	if err := s.Tick(ctx, model.DomainPrices); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", runner.calls)
	}

	st, err := states.Get(ctx, model.DomainPrices)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	wantEnd := time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)
	if !st.LastWindowEnd.Equal(wantEnd) {
		t.Errorf("LastWindowEnd = %v, want %v", st.LastWindowEnd, wantEnd)
	}
	if st.Status != state.StatusSucceeded {
		t.Errorf("Status = %q, want %q", st.Status, state.StatusSucceeded)
	}
	if st.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", st.Attempts)
	}

	runs := states.Runs()
	if len(runs) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(runs))
	}
	if !runs[0].Succeeded || runs[0].Loaded != 3 {
		t.Errorf("run = %+v, want succeeded with 3 loaded", runs[0])
	}

	// Nothing more is due until the next day boundary.
	if err := s.Tick(ctx, model.DomainPrices); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("runner calls after no-op tick = %d, want 1", runner.calls)
	}
}

func TestTickSkipsClaimedDomain(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	s, states := newTestScheduler(t, runner, nil)

	// Another cycle holds the claim.
	if _, claimed, err := states.Claim(ctx, model.DomainPrices); err != nil || !claimed {
		t.Fatalf("setup claim failed: claimed=%v err=%v", claimed, err)
	}

	if err := s.Tick(ctx, model.DomainPrices); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if runner.calls != 0 {
		t.Errorf("runner invoked on a claimed domain: %d calls", runner.calls)
	}
}

func TestTickRetryBackoff(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{err: errors.New("upstream down")}
	s, states := newTestScheduler(t, runner, nil)

	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 2; i++ {
		if err := s.Tick(ctx, model.DomainPrices); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}

	st, err := states.Get(ctx, model.DomainPrices)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", st.Attempts)
	}
	if st.Status != state.StatusFailed {
		t.Errorf("Status = %q, want %q", st.Status, state.StatusFailed)
	}
	if !st.LastWindowEnd.IsZero() {
		t.Errorf("failed cycles must not advance the watermark, got %v", st.LastWindowEnd)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}

	// Every failed window is retried with the same bounds.
	runner.mu.Lock()
	defer runner.mu.Unlock()
	for i := 1; i < len(runner.windows); i++ {
		if !runner.windows[i].Start.Equal(runner.windows[0].Start) ||
			!runner.windows[i].End.Equal(runner.windows[0].End) {
			t.Errorf("retry window %d = %v, want %v", i, runner.windows[i], runner.windows[0])
		}
	}
}

func TestTickAlertsOnExhaustedBudget(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{err: errors.New("persistent failure")}

	var alerts int
	alert := func(domain model.Domain, _ model.Window, attempts int, err error) {
		alerts++
		if domain != model.DomainIndicators {
			t.Errorf("alert domain = %q", domain)
		}
		if attempts != 3 {
			t.Errorf("alert attempts = %d, want 3", attempts)
		}
		if err == nil {
			t.Error("alert err is nil")
		}
	}
	s, _ := newTestScheduler(t, runner, alert)

	// Attempts 1 and 2 back off, attempt 3 crosses the budget, attempt 4
	// keeps retrying on cadence without re-alerting.
	for i := 0; i < 4; i++ {
		if err := s.Tick(ctx, model.DomainIndicators); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if alerts != 1 {
		t.Errorf("alerts = %d, want exactly 1", alerts)
	}
	if runner.calls != 4 {
		t.Errorf("runner calls = %d, want 4", runner.calls)
	}
}

func TestTickReleasesEmptyWindow(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	s, states := newTestScheduler(t, runner, nil)

	// Already caught up to the current boundary.
	boundary := time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)
	if _, claimed, err := states.Claim(ctx, model.DomainPrices); err != nil || !claimed {
		t.Fatalf("setup claim: claimed=%v err=%v", claimed, err)
	}
	if err := states.MarkSucceeded(ctx, model.DomainPrices, boundary); err != nil {
		t.Fatalf("setup MarkSucceeded: %v", err)
	}

	if err := s.Tick(ctx, model.DomainPrices); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if runner.calls != 0 {
		t.Errorf("runner invoked for an empty window: %d calls", runner.calls)
	}

	st, err := states.Get(ctx, model.DomainPrices)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Status == state.StatusRunning {
		t.Error("domain left claimed after empty window")
	}
}
