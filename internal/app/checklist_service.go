package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/domain"
)

// EditorRepository abstracts where live editors are held (in-memory, Redis-locked, etc).
type EditorRepository interface {
	// Claim returns the live editor for id, creating it with open when absent.
	// It fails with domain.ErrNotOwner when another evaluator holds the session.
	Claim(ctx context.Context, id, owner string, open func() (*Editor, error)) (*Editor, error)
	Get(ctx context.Context, id string) (*Editor, bool)
	Release(ctx context.Context, id, owner string)
}

// SessionStore persists flat sessions (Postgres, Mongo, Redis cache, memory).
// Save must refuse to overwrite a complete session with domain.ErrSessionCompleted.
type SessionStore interface {
	Save(ctx context.Context, s domain.Session) (string, error)
	Load(ctx context.Context, id string) (domain.Session, error)
}

// ChecklistService contains the mentorship checklist use cases.
type ChecklistService struct {
	engine  *checklist.Engine
	editors EditorRepository
	store   SessionStore
	newID   func() string
}

func NewChecklistService(engine *checklist.Engine, editors EditorRepository, store SessionStore) *ChecklistService {
	return &ChecklistService{engine: engine, editors: editors, store: store, newID: uuid.NewString}
}

// Start opens a new draft owned by the evaluator.
func (s *ChecklistService) Start(ctx context.Context, subject domain.Subject, evaluator domain.Evaluator, date string) (domain.View, error) {
	owner := ownerOf(evaluator)
	if owner == "" {
		return domain.View{}, domain.ErrEvaluatorRequired
	}
	env := checklist.Envelope{ID: s.newID(), Subject: subject, Evaluator: evaluator}
	ed, err := s.editors.Claim(ctx, env.ID, owner, func() (*Editor, error) {
		return NewEditor(s.engine, env, domain.NewAnswerTree(date)), nil
	})
	if err != nil {
		return domain.View{}, err
	}
	return ed.View(), nil
}

// Resume attaches to the live editor of a session or rehydrates its persisted draft.
func (s *ChecklistService) Resume(ctx context.Context, id string, evaluator domain.Evaluator) (domain.View, error) {
	owner := ownerOf(evaluator)
	if owner == "" {
		return domain.View{}, domain.ErrEvaluatorRequired
	}
	ed, err := s.editors.Claim(ctx, id, owner, func() (*Editor, error) {
		persisted, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if persisted.Status == domain.StatusComplete {
			return nil, domain.ErrSessionCompleted
		}
		if ownerOf(persisted.Evaluator) != owner {
			return nil, domain.ErrNotOwner
		}
		env := checklist.Envelope{
			ID:        persisted.ID,
			Subject:   persisted.Subject,
			Evaluator: persisted.Evaluator,
			SavedAt:   persisted.UpdatedAt,
		}
		return NewEditor(s.engine, env, s.engine.Rehydrate(persisted)), nil
	})
	if err != nil {
		return domain.View{}, err
	}
	v := ed.View()
	if v.Status == domain.StatusComplete {
		return domain.View{}, domain.ErrSessionCompleted
	}
	return v, nil
}

// SetAnswer records one skill answer (or decisionMatches).
func (s *ChecklistService) SetAnswer(ctx context.Context, id, actor, key string, value domain.Answer) (domain.View, error) {
	return s.mutate(ctx, id, actor, func(t domain.AnswerTree) (domain.AnswerTree, error) {
		return s.engine.SetAnswer(t, key, value)
	})
}

// SetClassification selects or deselects one classification label.
func (s *ChecklistService) SetClassification(ctx context.Context, id, actor, field, label string, selected bool) (domain.View, error) {
	return s.mutate(ctx, id, actor, func(t domain.AnswerTree) (domain.AnswerTree, error) {
		return s.engine.SetClassification(t, field, label, selected)
	})
}

// SetDecision records the final decision.
func (s *ChecklistService) SetDecision(ctx context.Context, id, actor string, decision domain.Decision) (domain.View, error) {
	return s.mutate(ctx, id, actor, func(t domain.AnswerTree) (domain.AnswerTree, error) {
		return s.engine.SetDecision(t, decision)
	})
}

// SetDate records the visit date.
func (s *ChecklistService) SetDate(ctx context.Context, id, actor, date string) (domain.View, error) {
	return s.mutate(ctx, id, actor, func(t domain.AnswerTree) (domain.AnswerTree, error) {
		return s.engine.SetDate(t, date), nil
	})
}

// SaveDraft persists the current answers without any completeness check.
func (s *ChecklistService) SaveDraft(ctx context.Context, id, actor string) (string, error) {
	ed, err := s.owned(ctx, id, actor)
	if err != nil {
		return "", err
	}
	return s.save(ctx, ed, domain.StatusDraft)
}

// Complete persists the session as complete. It fails with an *domain.IncompleteError while steps remain.
func (s *ChecklistService) Complete(ctx context.Context, id, actor string) (string, error) {
	ed, err := s.owned(ctx, id, actor)
	if err != nil {
		return "", err
	}
	return s.save(ctx, ed, domain.StatusComplete)
}

// Subscribe returns a channel that receives a view after every mutation of a live session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ChecklistService) Subscribe(ctx context.Context, id string) (<-chan domain.View, func(), error) {
	ed, ok := s.editors.Get(ctx, id)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := ed.subscribe()
	return ch, cancel, nil
}

// Leave saves pending edits as a draft and releases the editor once nobody watches it.
func (s *ChecklistService) Leave(ctx context.Context, id, actor string) {
	ed, err := s.owned(ctx, id, actor)
	if err != nil {
		return
	}
	if ed.dirty() {
		if _, err := s.save(ctx, ed, domain.StatusDraft); err != nil && !errors.Is(err, domain.ErrSessionCompleted) {
			log.Printf("leave %s: save draft: %v", id, err)
			return
		}
	}
	if ed.Idle() {
		s.editors.Release(ctx, id, ed.Owner())
	}
}

// Inspect returns a persisted session with its recomputed view. It never touches a live editor.
func (s *ChecklistService) Inspect(ctx context.Context, id string) (domain.Session, domain.View, error) {
	persisted, err := s.store.Load(ctx, id)
	if err != nil {
		return domain.Session{}, domain.View{}, err
	}
	v := s.engine.View(s.engine.Rehydrate(persisted))
	v.SessionID = persisted.ID
	v.Status = persisted.Status
	return persisted, v, nil
}

func (s *ChecklistService) mutate(ctx context.Context, id, actor string, fn func(domain.AnswerTree) (domain.AnswerTree, error)) (domain.View, error) {
	ed, err := s.owned(ctx, id, actor)
	if err != nil {
		return domain.View{}, err
	}
	return ed.apply(fn)
}

func (s *ChecklistService) owned(ctx context.Context, id, actor string) (*Editor, error) {
	ed, ok := s.editors.Get(ctx, id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if ed.Owner() != normalizeEmail(actor) {
		return nil, domain.ErrNotOwner
	}
	return ed, nil
}

func (s *ChecklistService) save(ctx context.Context, ed *Editor, status domain.Status) (string, error) {
	pending, err := ed.beginSave()
	if err != nil {
		return "", err
	}

	session, err := s.serialize(pending, status)
	if err != nil {
		ed.endSave(pending, status, err)
		return "", err
	}
	id, err := s.store.Save(ctx, session)
	ed.endSave(pending, status, err)
	if err != nil {
		return "", err
	}
	log.Printf("session %s saved as %s", id, status)
	return id, nil
}

func (s *ChecklistService) serialize(p pendingSave, status domain.Status) (domain.Session, error) {
	scores := s.engine.ComputeScores(p.tree)
	if status == domain.StatusComplete {
		return s.engine.ToComplete(p.env, p.tree, scores)
	}
	return s.engine.ToDraft(p.env, p.tree, scores), nil
}

func ownerOf(ev domain.Evaluator) string {
	return normalizeEmail(ev.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
