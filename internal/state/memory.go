package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rgoswami/findata/internal/model"
)

// Memory implements Store in memory with the same claim semantics as the
// Postgres implementation. Used in tests.
type Memory struct {
	mu     sync.Mutex
	states map[model.Domain]CycleState
	runs   []CycleRun

	// StaleClaimAfter mirrors the Postgres stale-claim reclaim window.
	StaleClaimAfter time.Duration
}

// NewMemory creates an empty in-memory state store.
func NewMemory() *Memory {
	return &Memory{
		states:          make(map[model.Domain]CycleState),
		StaleClaimAfter: DefaultStaleClaimAfter,
	}
}

// EnsureDomains creates missing state rows.
func (m *Memory) EnsureDomains(_ context.Context, domains []model.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range domains {
		if _, ok := m.states[d]; !ok {
			m.states[d] = CycleState{Domain: d, Status: StatusIdle, UpdatedAt: time.Now()}
		}
	}
	return nil
}

// Get returns a domain's state.
func (m *Memory) Get(_ context.Context, domain model.Domain) (CycleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[domain]
	if !ok {
		return CycleState{}, fmt.Errorf("get cycle state %s: not found", domain)
	}
	return st, nil
}

// Claim transitions a non-running domain to running.
func (m *Memory) Claim(_ context.Context, domain model.Domain) (CycleState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[domain]
	if !ok {
		return CycleState{}, false, fmt.Errorf("claim %s: not found", domain)
	}
	if st.Status == StatusRunning && time.Since(st.UpdatedAt) < m.StaleClaimAfter {
		return CycleState{}, false, nil
	}
	st.Status = StatusRunning
	st.UpdatedAt = time.Now()
	m.states[domain] = st
	return st, true, nil
}

// Release returns a claimed domain to idle.
func (m *Memory) Release(_ context.Context, domain model.Domain) error {
	return m.transition(domain, func(st *CycleState) {
		st.Status = StatusIdle
	})
}

// MarkSucceeded advances the window under the running claim.
func (m *Memory) MarkSucceeded(_ context.Context, domain model.Domain, windowEnd time.Time) error {
	return m.transition(domain, func(st *CycleState) {
		st.Status = StatusSucceeded
		st.LastWindowEnd = windowEnd
		st.Attempts = 0
	})
}

// MarkFailed increments attempts under the running claim.
func (m *Memory) MarkFailed(_ context.Context, domain model.Domain) (int, error) {
	var attempts int
	err := m.transition(domain, func(st *CycleState) {
		st.Status = StatusFailed
		st.Attempts++
		attempts = st.Attempts
	})
	return attempts, err
}

func (m *Memory) transition(domain model.Domain, apply func(*CycleState)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[domain]
	if !ok {
		return fmt.Errorf("transition %s: not found", domain)
	}
	if st.Status != StatusRunning {
		return fmt.Errorf("transition %s: %w", domain, ErrNotClaimed)
	}
	apply(&st)
	st.UpdatedAt = time.Now()
	m.states[domain] = st
	return nil
}

// RecordRun appends one cycle outcome.
func (m *Memory) RecordRun(_ context.Context, run CycleRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	m.runs = append(m.runs, run)
	return nil
}

// Runs returns a copy of the recorded cycle outcomes.
func (m *Memory) Runs() []CycleRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CycleRun, len(m.runs))
	copy(out, m.runs)
	return out
}
