package redis

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/domain"
)

// SessionCache keeps persisted sessions in Redis (one hash per session) in front of a durable store.
// Layout of HSET checklist:session:{id}:
//
//	meta:<attr>    envelope attributes (date, status, updatedAt, subject, evaluator)
//	field:<key>    scalar answers and single-select classifications
//	list:<field>   multi-select labels joined by listSep
//	score:<node>   flattened scores
type SessionCache struct {
	client *redis.Client
	store  app.SessionStore
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

const listSep = "\x1f"

func NewSessionCache(client *redis.Client, store app.SessionStore, ttl time.Duration) *SessionCache {
	return &SessionCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SessionCache) Save(ctx context.Context, session domain.Session) (string, error) {
	id, err := c.store.Save(ctx, session)
	if err != nil {
		return "", err
	}
	if err := c.fill(ctx, session); err != nil {
		// the durable write succeeded; drop the entry so the next load refills it
		log.Printf("session cache %s: %v", session.ID, err)
		_ = c.client.Del(ctx, c.key(session.ID)).Err()
	}
	return id, nil
}

func (c *SessionCache) Load(ctx context.Context, id string) (domain.Session, error) {
	key := c.key(id)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return decodeSession(id, fields)
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return decodeSession(id, fields)
		}

		session, err := c.store.Load(ctx, id)
		if err != nil {
			return domain.Session{}, err
		}
		if err := c.fill(ctx, session); err != nil {
			log.Printf("session cache %s: %v", id, err)
		}
		return session, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return result.(domain.Session), nil
}

func (c *SessionCache) fill(ctx context.Context, session domain.Session) error {
	key := c.key(session.ID)
	ttl := c.ttlWithJitter()

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeSession(session))
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	return nil
}

func (c *SessionCache) key(id string) string {
	return "checklist:session:" + id
}

func (c *SessionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func encodeSession(s domain.Session) map[string]interface{} {
	out := map[string]interface{}{
		"meta:date":           s.Date,
		"meta:status":         string(s.Status),
		"meta:updatedAt":      s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"meta:workerName":     s.Subject.WorkerName,
		"meta:facilityId":     s.Subject.FacilityID,
		"meta:facilityName":   s.Subject.FacilityName,
		"meta:evaluatorName":  s.Evaluator.Name,
		"meta:evaluatorEmail": s.Evaluator.Email,
	}
	for k, v := range s.Fields {
		out["field:"+k] = v
	}
	for k, labels := range s.Lists {
		if len(labels) > 0 {
			out["list:"+k] = strings.Join(labels, listSep)
		}
	}
	for k, v := range s.Scores {
		out["score:"+k] = v
	}
	return out
}

func decodeSession(id string, fields map[string]string) (domain.Session, error) {
	s := domain.Session{
		ID:     id,
		Fields: make(map[string]string),
		Lists:  make(map[string][]string),
		Scores: make(map[string]int),
	}
	for k, v := range fields {
		kind, name, ok := strings.Cut(k, ":")
		if !ok {
			continue
		}
		switch kind {
		case "meta":
			if err := decodeMeta(&s, name, v); err != nil {
				return domain.Session{}, fmt.Errorf("decode cached session %s: %w", id, err)
			}
		case "field":
			s.Fields[name] = v
		case "list":
			s.Lists[name] = strings.Split(v, listSep)
		case "score":
			n, err := strconv.Atoi(v)
			if err != nil {
				return domain.Session{}, fmt.Errorf("decode cached session %s: score %s: %w", id, name, err)
			}
			s.Scores[name] = n
		}
	}
	return s, nil
}

func decodeMeta(s *domain.Session, name, v string) error {
	switch name {
	case "date":
		s.Date = v
	case "status":
		s.Status = domain.Status(v)
	case "updatedAt":
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("updatedAt: %w", err)
		}
		s.UpdatedAt = ts
	case "workerName":
		s.Subject.WorkerName = v
	case "facilityId":
		s.Subject.FacilityID = v
	case "facilityName":
		s.Subject.FacilityName = v
	case "evaluatorName":
		s.Evaluator.Name = v
	case "evaluatorEmail":
		s.Evaluator.Email = v
	}
	return nil
}
