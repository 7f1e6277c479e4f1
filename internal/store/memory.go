package store

import (
	"context"
	"sync"

	"formbridge/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	subs      map[string]model.Submission // id -> submission
	byTen     map[string][]string         // tenant -> submission ids, newest last
	overrides map[string]map[string]any   // tenant -> override record
}

func NewMemory() *Memory {
	return &Memory{
		subs:      map[string]model.Submission{},
		byTen:     map[string][]string{},
		overrides: map[string]map[string]any{},
	}
}

func (m *Memory) CreateSubmission(ctx context.Context, sub model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	m.byTen[sub.TenantID] = append(m.byTen[sub.TenantID], sub.ID)
	return nil
}

func (m *Memory) GetSubmission(ctx context.Context, tenantID, id string) (model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok || sub.TenantID != tenantID {
		return model.Submission{}, ErrNotFound
	}
	return sub, nil
}

func (m *Memory) ListSubmissions(ctx context.Context, tenantID string, limit int) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byTen[tenantID]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	out := make([]model.Submission, 0, limit)
	// newest first
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.subs[ids[i]])
	}
	return out, nil
}

func (m *Memory) GetTenantOverride(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.overrides[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) SaveTenantOverride(ctx context.Context, tenantID string, rec map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[tenantID] = rec
	return nil
}
