// Package state persists per-domain scheduler state in the meta database.
//
// The state is never an in-process singleton: claims and advances go through
// compare-and-set updates so only the active cycle for a domain can mutate
// its row (single-writer discipline).
package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rgoswami/findata/internal/model"
)

// Status is a domain's cycle status.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusFailed    Status = "failed"
	StatusSucceeded Status = "succeeded"
)

// CycleState is one domain's persisted scheduling state.
type CycleState struct {
	Domain        model.Domain
	LastWindowEnd time.Time // End of the last successful window; zero before bootstrap
	Status        Status
	Attempts      int // Consecutive failed attempts for the current window
	UpdatedAt     time.Time
}

// CycleRun is one recorded cycle outcome, kept for operator inspection.
type CycleRun struct {
	ID          uuid.UUID
	Domain      model.Domain
	WindowStart time.Time
	WindowEnd   time.Time
	Succeeded   bool
	Loaded      int
	Skipped     int
	FailedKeys  int
	Rejected    int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ErrNotClaimed is returned when a mutation requires holding the running
// claim but the domain is not in the running state.
var ErrNotClaimed = errors.New("cycle not claimed")

// Store is the orchestration metadata contract.
type Store interface {
	// EnsureDomains creates state rows for the given domains if missing.
	EnsureDomains(ctx context.Context, domains []model.Domain) error

	// Get returns a domain's current state.
	Get(ctx context.Context, domain model.Domain) (CycleState, error)

	// Claim atomically transitions a non-running domain to running and
	// returns its state. claimed is false when another cycle holds the
	// domain; the caller must then do nothing. A running claim left behind
	// by a crashed process goes stale and becomes claimable again.
	Claim(ctx context.Context, domain model.Domain) (st CycleState, claimed bool, err error)

	// Release returns a claimed domain to idle without advancing the window
	// (used when a claimed window turns out to be empty).
	Release(ctx context.Context, domain model.Domain) error

	// MarkSucceeded advances the window end, resets attempts and sets the
	// succeeded status. Requires the running claim.
	MarkSucceeded(ctx context.Context, domain model.Domain, windowEnd time.Time) error

	// MarkFailed increments attempts and sets the failed status. Requires
	// the running claim. Returns the new attempt count.
	MarkFailed(ctx context.Context, domain model.Domain) (int, error)

	// RecordRun appends a cycle outcome to the run history.
	RecordRun(ctx context.Context, run CycleRun) error
}
