package memory

import (
	"context"
	"sync"

	"imnci-mentorship/internal/domain"
)

// SessionStore keeps persisted sessions in a map (useful for tests/demos).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionStore(seed ...domain.Session) *SessionStore {
	s := &SessionStore{sessions: make(map[string]domain.Session)}
	for _, session := range seed {
		s.sessions[session.ID] = copySession(session)
	}
	return s
}

func (s *SessionStore) Save(_ context.Context, session domain.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[session.ID]; ok && prev.Status == domain.StatusComplete {
		return "", domain.ErrSessionCompleted
	}
	s.sessions[session.ID] = copySession(session)
	return session.ID, nil
}

func (s *SessionStore) Load(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return copySession(session), nil
}

func copySession(s domain.Session) domain.Session {
	out := s
	out.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	out.Lists = make(map[string][]string, len(s.Lists))
	for k, v := range s.Lists {
		out.Lists[k] = append([]string(nil), v...)
	}
	out.Scores = make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = v
	}
	return out
}
