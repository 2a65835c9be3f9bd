package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/domain"
)

// SessionCache caches persisted sessions with TTL to avoid repeated DB hits.
// Saves go through to the backing store first and refresh the cache only on success.
type SessionCache struct {
	store app.SessionStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSession
}

type cachedSession struct {
	session   domain.Session
	expiresAt time.Time
}

func NewSessionCache(store app.SessionStore, ttl time.Duration) *SessionCache {
	return &SessionCache{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedSession),
	}
}

func (c *SessionCache) Save(ctx context.Context, session domain.Session) (string, error) {
	id, err := c.store.Save(ctx, session)
	if err != nil {
		return "", err
	}
	c.put(session)
	return id, nil
}

func (c *SessionCache) Load(ctx context.Context, id string) (domain.Session, error) {
	if session, ok := c.lookup(id); ok {
		return session, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if session, ok := c.lookup(id); ok {
			return session, nil
		}
		session, err := c.store.Load(ctx, id)
		if err != nil {
			return domain.Session{}, err
		}
		c.put(session)
		return session, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return copySession(result.(domain.Session)), nil
}

func (c *SessionCache) lookup(id string) (domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Session{}, false
	}
	return copySession(entry.session), true
}

func (c *SessionCache) put(session domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[session.ID] = cachedSession{
		session:   copySession(session),
		expiresAt: c.clock().Add(c.ttlWithJitter()),
	}
}

// ttlWithJitter must be called with c.mu held; rand.Rand is not safe for concurrent use.
func (c *SessionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
