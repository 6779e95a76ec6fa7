package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
)

// SessionStore keeps conversion sessions in memory for the serve mode.
type SessionStore struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// GetAll returns a copy of every session, oldest first.
func (s *SessionStore) GetAll() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Update runs fn on the session while holding the store's write lock, so
// concurrent requests never see a half-modified working set.
func (s *SessionStore) Update(sessionID string, fn func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return fn(session)
}
