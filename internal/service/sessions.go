package service

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SessionStore keeps the set of live sessions so tokens can be revoked on sign-out.
type SessionStore interface {
	// Put registers a session.
	Put(ctx context.Context, s model.Session) error
	// Get returns a live session or errs.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (model.Session, error)
	// Delete revokes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemorySessions is a process-local SessionStore. Sessions do not survive a restart.
type MemorySessions struct {
	mu  sync.Mutex
	m   map[uuid.UUID]model.Session
	now func() time.Time
}

// NewMemorySessions constructs an empty session registry.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{m: map[uuid.UUID]model.Session{}, now: time.Now}
}

// Put registers s and drops expired entries.
func (m *MemorySessions) Put(_ context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, old := range m.m {
		if !old.ExpiresAt.After(now) {
			delete(m.m, id)
		}
	}
	s.Token = "" // the registry never needs the bearer secret
	m.m[s.ID] = s
	return nil
}

// Get returns a live session.
func (m *MemorySessions) Get(_ context.Context, id uuid.UUID) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.m[id]
	if !ok || !s.ExpiresAt.After(m.now()) {
		return model.Session{}, errs.ErrNotFound
	}
	return s, nil
}

// Delete revokes a session.
func (m *MemorySessions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.m, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of registered sessions, expired ones included.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}
