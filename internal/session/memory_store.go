package session

import (
	"context"
	"sync"
	"time"

	"github.com/Krisp140/sebi/internal/models"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore хранилище сессий в памяти процесса.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memoryEntry
	inFlight map[string]string
	now      func() time.Time
}

// NewMemoryStore создает хранилище. ttl <= 0 отключает истечение сессий.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]memoryEntry),
		inFlight: make(map[string]string),
		now:      time.Now,
	}
}

func (m *MemoryStore) Acquire(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[id]; busy {
		return "", models.ErrGenerationInProgress
	}
	token := uuid.NewString()
	m.inFlight[id] = token
	return token, nil
}

func (m *MemoryStore) Release(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[id] == token {
		delete(m.inFlight, id)
	}
	return nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{session: s.Clone()}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}
	m.sessions[s.ID] = entry
	m.evictExpiredLocked()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok || m.expired(entry) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

func (m *MemoryStore) evictExpiredLocked() {
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
		}
	}
}
