package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgoswami/findata/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ingestion_cycles (
	domain           TEXT PRIMARY KEY,
	last_window_end  TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	status           TEXT NOT NULL DEFAULT 'idle',
	attempts         INT NOT NULL DEFAULT 0,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS cycle_runs (
	id            UUID PRIMARY KEY,
	domain        TEXT NOT NULL,
	window_start  TIMESTAMPTZ NOT NULL,
	window_end    TIMESTAMPTZ NOT NULL,
	succeeded     BOOLEAN NOT NULL,
	loaded        INT NOT NULL,
	skipped       INT NOT NULL,
	failed_keys   INT NOT NULL,
	rejected      INT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS cycle_runs_domain_time_idx
	ON cycle_runs (domain, started_at);
`

// DefaultStaleClaimAfter bounds how long a crashed process can hold a claim.
// It must exceed the cycle timeout so live cycles are never stolen.
const DefaultStaleClaimAfter = 2 * time.Hour

// StaleClaimBound returns the reclaim age to use with a given cycle timeout:
// at least DefaultStaleClaimAfter, and always twice the timeout so a live
// cycle's claim can never go stale, however long the timeout is configured.
func StaleClaimBound(cycleTimeout time.Duration) time.Duration {
	if b := 2 * cycleTimeout; b > DefaultStaleClaimAfter {
		return b
	}
	return DefaultStaleClaimAfter
}

// Postgres implements Store on the meta database.
type Postgres struct {
	db *pgxpool.Pool

	// StaleClaimAfter is the age after which a running claim is treated as
	// abandoned and may be reclaimed.
	StaleClaimAfter time.Duration
}

// NewPostgres creates a meta-database-backed state store.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db, StaleClaimAfter: DefaultStaleClaimAfter}
}

// EnsureSchema creates the orchestration tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create orchestration schema: %w", err)
	}
	return nil
}

// EnsureDomains inserts missing state rows.
func (s *Postgres) EnsureDomains(ctx context.Context, domains []model.Domain) error {
	for _, d := range domains {
		_, err := s.db.Exec(ctx, `
			INSERT INTO ingestion_cycles (domain) VALUES ($1)
			ON CONFLICT (domain) DO NOTHING
		`, string(d))
		if err != nil {
			return fmt.Errorf("ensure domain %s: %w", d, err)
		}
	}
	return nil
}

// Get returns a domain's current state.
func (s *Postgres) Get(ctx context.Context, domain model.Domain) (CycleState, error) {
	var st CycleState
	st.Domain = domain
	err := s.db.QueryRow(ctx, `
		SELECT last_window_end, status, attempts, updated_at
		FROM ingestion_cycles WHERE domain = $1
	`, string(domain)).Scan(&st.LastWindowEnd, &st.Status, &st.Attempts, &st.UpdatedAt)
	if err != nil {
		return CycleState{}, fmt.Errorf("get cycle state %s: %w", domain, err)
	}
	return st, nil
}

// Claim transitions a non-running domain to running via compare-and-set.
// A running claim older than StaleClaimAfter is treated as abandoned by a
// crashed process and reclaimed.
func (s *Postgres) Claim(ctx context.Context, domain model.Domain) (CycleState, bool, error) {
	var st CycleState
	st.Domain = domain
	err := s.db.QueryRow(ctx, `
		UPDATE ingestion_cycles
		SET status = $2, updated_at = now()
		WHERE domain = $1 AND (status <> $2 OR updated_at < now() - make_interval(secs => $3))
		RETURNING last_window_end, attempts, updated_at
	`, string(domain), string(StatusRunning), s.StaleClaimAfter.Seconds()).Scan(&st.LastWindowEnd, &st.Attempts, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Another cycle holds the claim.
		return CycleState{}, false, nil
	}
	if err != nil {
		return CycleState{}, false, fmt.Errorf("claim %s: %w", domain, err)
	}
	st.Status = StatusRunning
	return st, true, nil
}

// Release returns a claimed domain to idle.
func (s *Postgres) Release(ctx context.Context, domain model.Domain) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE ingestion_cycles
		SET status = $2, updated_at = now()
		WHERE domain = $1 AND status = $3
	`, string(domain), string(StatusIdle), string(StatusRunning))
	if err != nil {
		return fmt.Errorf("release %s: %w", domain, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("release %s: %w", domain, ErrNotClaimed)
	}
	return nil
}

// MarkSucceeded advances the window under the running claim.
func (s *Postgres) MarkSucceeded(ctx context.Context, domain model.Domain, windowEnd time.Time) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE ingestion_cycles
		SET status = $2, last_window_end = $3, attempts = 0, updated_at = now()
		WHERE domain = $1 AND status = $4
	`, string(domain), string(StatusSucceeded), windowEnd, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("mark succeeded %s: %w", domain, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("mark succeeded %s: %w", domain, ErrNotClaimed)
	}
	return nil
}

// MarkFailed increments attempts under the running claim.
func (s *Postgres) MarkFailed(ctx context.Context, domain model.Domain) (int, error) {
	var attempts int
	err := s.db.QueryRow(ctx, `
		UPDATE ingestion_cycles
		SET status = $2, attempts = attempts + 1, updated_at = now()
		WHERE domain = $1 AND status = $3
		RETURNING attempts
	`, string(domain), string(StatusFailed), string(StatusRunning)).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("mark failed %s: %w", domain, ErrNotClaimed)
	}
	if err != nil {
		return 0, fmt.Errorf("mark failed %s: %w", domain, err)
	}
	return attempts, nil
}

// RecordRun appends one cycle outcome.
func (s *Postgres) RecordRun(ctx context.Context, run CycleRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO cycle_runs (
			id, domain, window_start, window_end, succeeded,
			loaded, skipped, failed_keys, rejected, error,
			started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, run.ID, string(run.Domain), run.WindowStart, run.WindowEnd, run.Succeeded,
		run.Loaded, run.Skipped, run.FailedKeys, run.Rejected, run.Error,
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
