package app

import (
	"sync"
	"time"

	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/domain"
)

// Editor is the single live, in-memory copy of a checklist being filled in.
// Exactly one evaluator owns it; every mutation runs under its lock.
type Editor struct {
	id     string
	owner  string
	engine *checklist.Engine
	now    func() time.Time

	mu          sync.RWMutex
	env         checklist.Envelope
	tree        domain.AnswerTree
	status      domain.Status
	revision    int
	saved       int
	saving      bool
	subscribers map[chan domain.View]struct{}
}

// NewEditor is exported for infrastructure layers that seed editors.
func NewEditor(engine *checklist.Engine, env checklist.Envelope, tree domain.AnswerTree) *Editor {
	return NewEditorWithClock(engine, env, tree, time.Now)
}

// NewEditorWithClock stamps saves with now instead of the wall clock.
func NewEditorWithClock(engine *checklist.Engine, env checklist.Envelope, tree domain.AnswerTree, now func() time.Time) *Editor {
	normalized, _ := engine.Normalize(tree)
	return &Editor{
		id:          env.ID,
		owner:       normalizeEmail(env.Evaluator.Email),
		engine:      engine,
		now:         now,
		env:         env,
		tree:        normalized,
		status:      domain.StatusDraft,
		subscribers: make(map[chan domain.View]struct{}),
	}
}

// ID returns the session id.
func (e *Editor) ID() string {
	return e.id
}

// Owner returns the email of the evaluator allowed to mutate the session.
func (e *Editor) Owner() string {
	return e.owner
}

// Idle reports whether nobody is watching the editor.
func (e *Editor) Idle() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers) == 0
}

// View returns the current snapshot.
func (e *Editor) View() domain.View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// apply runs one engine mutation and broadcasts the result.
func (e *Editor) apply(mutate func(domain.AnswerTree) (domain.AnswerTree, error)) (domain.View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == domain.StatusComplete {
		return domain.View{}, domain.ErrSessionCompleted
	}
	next, err := mutate(e.tree)
	if err != nil {
		return domain.View{}, err
	}
	if !next.Equal(e.tree) {
		e.tree = next
		e.revision++
	}
	return e.broadcastLocked(), nil
}

// dirty reports whether there are edits newer than the last successful save.
func (e *Editor) dirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.revision != e.saved && e.status != domain.StatusComplete
}

// pendingSave is a frozen copy of the editor taken when a save starts.
type pendingSave struct {
	env      checklist.Envelope
	tree     domain.AnswerTree
	revision int
}

func (e *Editor) beginSave() (pendingSave, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == domain.StatusComplete {
		return pendingSave{}, domain.ErrSessionCompleted
	}
	if e.saving {
		return pendingSave{}, domain.ErrSaveInFlight
	}
	e.saving = true
	env := e.env
	env.SavedAt = e.now()
	return pendingSave{env: env, tree: e.tree.Clone(), revision: e.revision}, nil
}

// endSave releases the save slot. On success it records the persisted revision and, for a completed
// session, freezes the editor.
func (e *Editor) endSave(p pendingSave, status domain.Status, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saving = false
	if err != nil {
		return
	}
	e.saved = p.revision
	e.env.SavedAt = p.env.SavedAt
	if status == domain.StatusComplete {
		e.status = domain.StatusComplete
		e.broadcastLocked()
	}
}

func (e *Editor) subscribe() (<-chan domain.View, func()) {
	ch := make(chan domain.View, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	// ch is empty, so this cannot block; sending under the lock keeps it ahead of any broadcast
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Editor) broadcastLocked() domain.View {
	v := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- v:
		default:
			// slow subscriber: replace its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
	return v
}

func (e *Editor) snapshotLocked() domain.View {
	v := e.engine.View(e.tree)
	v.SessionID = e.id
	v.Status = e.status
	return v
}
