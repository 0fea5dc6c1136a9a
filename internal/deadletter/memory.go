package deadletter

import (
	"context"
	"sync"
)

// MemorySink collects rejections in memory. Used in tests and as a fallback
// when no meta database is configured.
type MemorySink struct {
	mu         sync.Mutex
	rejections []Rejection
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends rejections.
func (s *MemorySink) Record(_ context.Context, rejections []Rejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections = append(s.rejections, rejections...)
	return nil
}

// All returns a copy of the collected rejections.
func (s *MemorySink) All() []Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Rejection, len(s.rejections))
	copy(out, s.rejections)
	return out
}
