package memory

import (
	"context"
	"sync"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/domain"
)

// EditorStore is an in-memory implementation of app.EditorRepository.
type EditorStore struct {
	mu      sync.RWMutex
	editors map[string]*app.Editor
}

func NewEditorStore() *EditorStore {
	return &EditorStore{
		editors: make(map[string]*app.Editor),
	}
}

func (s *EditorStore) Claim(_ context.Context, id, owner string, open func() (*app.Editor, error)) (*app.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ed, ok := s.editors[id]; ok {
		if ed.Owner() != owner {
			return nil, domain.ErrNotOwner
		}
		return ed, nil
	}
	ed, err := open()
	if err != nil {
		return nil, err
	}
	s.editors[id] = ed
	return ed, nil
}

func (s *EditorStore) Get(_ context.Context, id string) (*app.Editor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ed, ok := s.editors[id]
	return ed, ok
}

func (s *EditorStore) Release(_ context.Context, id, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ed, ok := s.editors[id]
	if !ok || ed.Owner() != owner {
		return
	}
	if ed.Idle() {
		delete(s.editors, id)
	}
}
