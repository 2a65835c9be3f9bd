package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"imnci-mentorship/internal/domain"
)

// SessionStore persists sessions as JSONB rows in Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// upsertSession never replaces a row whose status is already complete; in that case no row is returned.
const upsertSession = `
INSERT INTO checklist_sessions (id, status, facility_id, evaluator, data, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    facility_id = EXCLUDED.facility_id,
    evaluator = EXCLUDED.evaluator,
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at
WHERE checklist_sessions.status <> 'complete'
RETURNING id`

func (s *SessionStore) Save(ctx context.Context, session domain.Session) (string, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	var id string
	err = s.pool.QueryRow(ctx, upsertSession,
		session.ID, string(session.Status), session.Subject.FacilityID, session.Evaluator.Email, raw, session.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrSessionCompleted
	}
	if err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return id, nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (domain.Session, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM checklist_sessions WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}
