package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/domain"
)

// EditorStore is a Redis-aware implementation of app.EditorRepository.
// Notes:
//   - Editors live in a local map so broadcasts stay in-process.
//   - An ownership key (SET NX with TTL) holds "<instance>|<owner>", so at most one instance keeps a live
//     editor per session. Every Get refreshes the TTL while the owner keeps editing.
//   - A claim against a live lock fails: ErrNotOwner for another evaluator, ErrSessionLocked for the same
//     evaluator on another instance. An instance whose lock expired drops its local editor.
type EditorStore struct {
	client   *redis.Client
	lockTTL  time.Duration
	instance string
	mu       sync.RWMutex
	editors  map[string]*app.Editor
}

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	if tonumber(ARGV[2]) > 0 then
		redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 1
end
return 0
`)

func NewEditorStore(client *redis.Client, lockTTL time.Duration) *EditorStore {
	return &EditorStore{
		client:   client,
		lockTTL:  lockTTL,
		instance: uuid.NewString(),
		editors:  make(map[string]*app.Editor),
	}
}

func (s *EditorStore) Claim(ctx context.Context, id, owner string, open func() (*app.Editor, error)) (*app.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ed, ok := s.editors[id]; ok {
		if ed.Owner() != owner {
			return nil, domain.ErrNotOwner
		}
		held, err := s.refresh(ctx, id, owner)
		if err != nil || held {
			return ed, nil
		}
		delete(s.editors, id)
	}

	if err := s.acquire(ctx, id, owner); err != nil {
		return nil, err
	}
	ed, err := open()
	if err != nil {
		_ = releaseLock.Run(ctx, s.client, []string{s.key(id)}, s.value(owner)).Err()
		return nil, err
	}
	s.editors[id] = ed
	return ed, nil
}

func (s *EditorStore) Get(ctx context.Context, id string) (*app.Editor, bool) {
	s.mu.RLock()
	ed, ok := s.editors[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	held, err := s.refresh(ctx, id, ed.Owner())
	if err != nil || held {
		// keep serving on redis errors
		return ed, true
	}

	s.mu.Lock()
	if s.editors[id] == ed {
		delete(s.editors, id)
	}
	s.mu.Unlock()
	return nil, false
}

func (s *EditorStore) Release(ctx context.Context, id, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ed, ok := s.editors[id]
	if !ok || ed.Owner() != owner || !ed.Idle() {
		return
	}
	delete(s.editors, id)
	_ = releaseLock.Run(ctx, s.client, []string{s.key(id)}, s.value(owner)).Err()
}

func (s *EditorStore) acquire(ctx context.Context, id, owner string) error {
	// one retry covers a lock that expires between SETNX and GET
	for attempt := 0; attempt < 2; attempt++ {
		acquired, err := s.client.SetNX(ctx, s.key(id), s.value(owner), s.lockTTL).Result()
		if err != nil {
			return fmt.Errorf("lock session %s: %w", id, err)
		}
		if acquired {
			return nil
		}
		holder, err := s.client.Get(ctx, s.key(id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("lock session %s: %w", id, err)
		}
		if _, heldBy, _ := strings.Cut(holder, "|"); heldBy != owner {
			return domain.ErrNotOwner
		}
		return domain.ErrSessionLocked
	}
	return domain.ErrSessionLocked
}

func (s *EditorStore) refresh(ctx context.Context, id, owner string) (bool, error) {
	n, err := refreshLock.Run(ctx, s.client, []string{s.key(id)}, s.value(owner), s.lockTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *EditorStore) key(id string) string {
	return "checklist:editor:" + id
}

func (s *EditorStore) value(owner string) string {
	return s.instance + "|" + owner
}
