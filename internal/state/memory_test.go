package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rgoswami/findata/internal/model"
)

func newTestStore(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	if err := m.EnsureDomains(context.Background(), model.Domains()); err != nil {
		t.Fatalf("EnsureDomains: %v", err)
	}
	return m
}

func TestClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)

	st, claimed, err := m.Claim(ctx, model.DomainPrices)
	if err != nil || !claimed {
		t.Fatalf("first Claim: claimed=%v err=%v", claimed, err)
	}
	if st.Status != StatusRunning {
		t.Errorf("claimed status = %q, want %q", st.Status, StatusRunning)
	}

	if _, claimed, err := m.Claim(ctx, model.DomainPrices); err != nil || claimed {
		t.Errorf("second Claim: claimed=%v err=%v, want not claimed", claimed, err)
	}

	// Other domains are independent.
	if _, claimed, err := m.Claim(ctx, model.DomainStatements); err != nil || !claimed {
		t.Errorf("Claim other domain: claimed=%v err=%v", claimed, err)
	}
}

func TestClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	windowEnd := time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)

	if _, claimed, _ := m.Claim(ctx, model.DomainPrices); !claimed {
		t.Fatal("claim failed")
	}
	if _, err := m.MarkFailed(ctx, model.DomainPrices); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	// Failed domains are claimable again and keep their attempt count.
	st, claimed, err := m.Claim(ctx, model.DomainPrices)
	if err != nil || !claimed {
		t.Fatalf("reclaim after failure: claimed=%v err=%v", claimed, err)
	}
	if st.Attempts != 1 {
		t.Errorf("Attempts after failure = %d, want 1", st.Attempts)
	}

	if err := m.MarkSucceeded(ctx, model.DomainPrices, windowEnd); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	st, err = m.Get(ctx, model.DomainPrices)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !st.LastWindowEnd.Equal(windowEnd) {
		t.Errorf("LastWindowEnd = %v, want %v", st.LastWindowEnd, windowEnd)
	}
	if st.Attempts != 0 {
		t.Errorf("Attempts after success = %d, want 0", st.Attempts)
	}
}

func TestTransitionsRequireClaim(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)

	if err := m.Release(ctx, model.DomainPrices); !errors.Is(err, ErrNotClaimed) {
		t.Errorf("Release without claim: err = %v, want ErrNotClaimed", err)
	}
	if err := m.MarkSucceeded(ctx, model.DomainPrices, time.Now()); !errors.Is(err, ErrNotClaimed) {
		t.Errorf("MarkSucceeded without claim: err = %v, want ErrNotClaimed", err)
	}
	if _, err := m.MarkFailed(ctx, model.DomainPrices); !errors.Is(err, ErrNotClaimed) {
		t.Errorf("MarkFailed without claim: err = %v, want ErrNotClaimed", err)
	}
}

func TestStaleClaimIsReclaimable(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)
	m.StaleClaimAfter = 10 * time.Millisecond

	if _, claimed, _ := m.Claim(ctx, model.DomainPrices); !claimed {
		t.Fatal("claim failed")
	}
	if _, claimed, _ := m.Claim(ctx, model.DomainPrices); claimed {
		t.Fatal("fresh running claim was stolen")
	}

	time.Sleep(20 * time.Millisecond)

	if _, claimed, err := m.Claim(ctx, model.DomainPrices); err != nil || !claimed {
		t.Errorf("stale claim not reclaimable: claimed=%v err=%v", claimed, err)
	}
}

func TestStaleClaimBound(t *testing.T) {
	tests := []struct {
		name         string
		cycleTimeout time.Duration
		want         time.Duration
	}{
		{name: "short timeout keeps default", cycleTimeout: 30 * time.Minute, want: DefaultStaleClaimAfter},
		{name: "at the default boundary", cycleTimeout: time.Hour, want: DefaultStaleClaimAfter},
		{name: "long timeout widens bound", cycleTimeout: 3 * time.Hour, want: 6 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StaleClaimBound(tt.cycleTimeout)
			if got != tt.want {
				t.Errorf("StaleClaimBound(%v) = %v, want %v", tt.cycleTimeout, got, tt.want)
			}
			if got < 2*tt.cycleTimeout {
				t.Errorf("bound %v does not exceed twice the timeout %v", got, tt.cycleTimeout)
			}
		})
	}
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	m := newTestStore(t)

	run := CycleRun{
		Domain:      model.DomainIndicators,
		WindowStart: time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC),
		Succeeded:   true,
		Loaded:      12,
	}
	if err := m.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs := m.Runs()
	if len(runs) != 1 {
		t.Fatalf("Runs() = %d entries, want 1", len(runs))
	}
	if runs[0].Domain != model.DomainIndicators || runs[0].Loaded != 12 {
		t.Errorf("recorded run = %+v", runs[0])
	}
}
