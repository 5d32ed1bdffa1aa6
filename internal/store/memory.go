package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process RunStore for the CLI and tests.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[string]*Run
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

func (m *MemoryStore) PutRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Unix()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	m.runs[run.ID] = cloneRun(run)
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, sessionID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneRun(run), nil
}

func (m *MemoryStore) UpdateRunStage(_ context.Context, sessionID, status, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[sessionID]
	if !ok {
		run = &Run{ID: sessionID, CreatedAt: time.Now().Unix()}
		m.runs[sessionID] = run
	}
	run.Status = status
	run.Stage = stage
	run.UpdatedAt = time.Now().Unix()
	return nil
}

func cloneRun(r *Run) *Run {
	c := *r
	c.Skips = slices.Clone(r.Skips)
	c.Artifacts = maps.Clone(r.Artifacts)
	return &c
}
