package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/domain"
	"imnci-mentorship/internal/infra/memory"
)

const mentor = "mentor@example.org"

func TestStartAndEdit(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	v, err := service.Start(ctx, sampleSubject(), domain.Evaluator{Name: "Mentor", Email: "Mentor@Example.org "}, "2024-05-01")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if v.SessionID == "" || v.Status != domain.StatusDraft {
		t.Fatalf("unexpected initial view %+v", v)
	}

	v, err = service.SetAnswer(ctx, v.SessionID, mentor, "measure_weight", domain.Yes)
	if err != nil {
		t.Fatalf("set answer failed: %v", err)
	}
	if got := v.Scores.Subgroups["vitalSigns"]; got != (domain.Score{Score: 1, MaxScore: 3}) {
		t.Fatalf("expected 1/3 vital signs, got %+v", got)
	}

	if _, err := service.SetAnswer(ctx, v.SessionID, "intruder@example.org", "measure_weight", domain.No); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if _, err := service.SetAnswer(ctx, "missing", mentor, "measure_weight", domain.No); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if _, err := service.SetAnswer(ctx, v.SessionID, mentor, "nope", domain.No); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected unknown field, got %v", err)
	}
}

func TestStartRequiresEvaluator(t *testing.T) {
	service, _ := newTestService()
	if _, err := service.Start(context.Background(), sampleSubject(), domain.Evaluator{Name: "Anonymous"}, "2024-05-01"); !errors.Is(err, domain.ErrEvaluatorRequired) {
		t.Fatalf("expected evaluator required, got %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	id := startSession(t, service)

	ch, cancel, err := service.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := service.SetAnswer(ctx, id, mentor, "measure_temperature", domain.Yes); err != nil {
		t.Fatalf("set answer failed: %v", err)
	}
	update := <-ch
	if update.Answers.Assessment["measure_temperature"] != domain.Yes {
		t.Fatalf("expected update with the new answer, got %+v", update.Answers.Assessment)
	}
}

func TestDraftSaveAndResume(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	id := startSession(t, service)

	if _, err := service.SetAnswer(ctx, id, mentor, "measure_temperature", domain.Yes); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if _, err := service.SaveDraft(ctx, id, mentor); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	persisted, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if persisted.Status != domain.StatusDraft || persisted.Fields["assessment:measure_temperature"] != "yes" {
		t.Fatalf("unexpected persisted draft %+v", persisted)
	}

	// a different service instance shares only the store
	other := app.NewChecklistService(checklist.NewEngine(checklist.IMNCI()), memory.NewEditorStore(), store)
	if _, err := other.Resume(ctx, id, domain.Evaluator{Email: "intruder@example.org"}); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner on resume, got %v", err)
	}
	v, err := other.Resume(ctx, id, domain.Evaluator{Email: mentor})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if v.Answers.Assessment["measure_temperature"] != domain.Yes {
		t.Fatalf("expected resumed answers, got %+v", v.Answers.Assessment)
	}
}

func TestLeaveSavesPendingEdits(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	id := startSession(t, service)

	if _, err := service.SetAnswer(ctx, id, mentor, "count_breathing", domain.Yes); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	service.Leave(ctx, id, mentor)

	persisted, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("expected draft saved on leave: %v", err)
	}
	if persisted.Fields["assessment:count_breathing"] != "yes" {
		t.Fatalf("unexpected fields %v", persisted.Fields)
	}
	if _, err := service.SetAnswer(ctx, id, mentor, "measure_weight", domain.Yes); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected editor released, got %v", err)
	}
}

func TestCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	id := startSession(t, service)

	if _, err := service.Complete(ctx, id, mentor); !errors.Is(err, domain.ErrIncomplete) {
		t.Fatalf("expected incomplete, got %v", err)
	}
	fillComplete(t, service, id)

	if _, err := service.Complete(ctx, id, mentor); err != nil {
		t.Fatalf("complete: %v", err)
	}
	persisted, err := store.Load(ctx, id)
	if err != nil || persisted.Status != domain.StatusComplete {
		t.Fatalf("expected complete session persisted, got %+v err=%v", persisted, err)
	}

	if _, err := service.SetAnswer(ctx, id, mentor, "measure_weight", domain.No); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error on mutation, got %v", err)
	}
	if _, err := service.SaveDraft(ctx, id, mentor); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error on draft save, got %v", err)
	}

	// a watcher keeps the frozen editor live after Leave
	_, unsubscribe, err := service.Subscribe(ctx, id)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	service.Leave(ctx, id, mentor)
	if _, err := service.Resume(ctx, id, domain.Evaluator{Email: mentor}); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected live completed editor not resumable, got %v", err)
	}

	unsubscribe()
	service.Leave(ctx, id, mentor)
	if _, err := service.Resume(ctx, id, domain.Evaluator{Email: mentor}); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed session not resumable, got %v", err)
	}

	_, v, err := service.Inspect(ctx, id)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if v.Status != domain.StatusComplete || v.HighestCompleteStep != v.FinalStep {
		t.Fatalf("unexpected inspected view status=%s step=%d/%d", v.Status, v.HighestCompleteStep, v.FinalStep)
	}
}

func TestOnlyOneSaveInFlight(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{SessionStore: memory.NewSessionStore(), entered: make(chan struct{}), release: make(chan struct{})}
	service := app.NewChecklistService(checklist.NewEngine(checklist.IMNCI()), memory.NewEditorStore(), store)
	id := startSession(t, service)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := service.SaveDraft(ctx, id, mentor); err != nil {
			t.Errorf("first save: %v", err)
		}
	}()
	<-store.entered

	if _, err := service.SaveDraft(ctx, id, mentor); !errors.Is(err, domain.ErrSaveInFlight) {
		t.Fatalf("expected save in flight, got %v", err)
	}
	// editing stays possible while the save runs
	if _, err := service.SetAnswer(ctx, id, mentor, "measure_weight", domain.Yes); err != nil {
		t.Fatalf("set answer during save: %v", err)
	}
	close(store.release)
	wg.Wait()

	if _, err := service.SaveDraft(ctx, id, mentor); err != nil {
		t.Fatalf("save after release: %v", err)
	}
}

type blockingStore struct {
	*memory.SessionStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, session domain.Session) (string, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.SessionStore.Save(ctx, session)
}

func newTestService() (*app.ChecklistService, *memory.SessionStore) {
	store := memory.NewSessionStore()
	return app.NewChecklistService(checklist.NewEngine(checklist.IMNCI()), memory.NewEditorStore(), store), store
}

func startSession(t *testing.T, service *app.ChecklistService) string {
	t.Helper()
	v, err := service.Start(context.Background(), sampleSubject(), domain.Evaluator{Name: "Mentor", Email: mentor}, "2024-05-01")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return v.SessionID
}

func sampleSubject() domain.Subject {
	return domain.Subject{WorkerName: "Amna", FacilityID: "fac-7", FacilityName: "Kassala PHC"}
}

// fillComplete walks a visit with no main symptoms to the final step.
func fillComplete(t *testing.T, service *app.ChecklistService, id string) {
	t.Helper()
	ctx := context.Background()
	answer := func(key string, value domain.Answer) {
		t.Helper()
		if _, err := service.SetAnswer(ctx, id, mentor, key, value); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	classify := func(field, label string) {
		t.Helper()
		if _, err := service.SetClassification(ctx, id, mentor, field, label, true); err != nil {
			t.Fatalf("classify %s: %v", field, err)
		}
	}

	for _, key := range []string{
		"measure_temperature", "measure_weight", "count_breathing",
		"ask_drink_breastfeed", "ask_vomit_everything", "ask_convulsions", "check_lethargic",
	} {
		answer(key, domain.Yes)
	}
	for _, key := range []string{"ask_cough", "ask_diarrhea", "ask_fever", "ask_ear"} {
		answer(key, domain.No)
	}
	for _, key := range []string{"check_wasting", "check_oedema", checklist.ClassifyKey("malnutrition"),
		"check_pallor", checklist.ClassifyKey("anemia"), "check_immunization", "check_vitamin_a"} {
		answer(key, domain.Yes)
	}
	classify(checklist.WorkerField("malnutrition"), checklist.MalnutritionNone)
	classify(checklist.WorkerField("anemia"), checklist.AnemiaNone)

	if _, err := service.SetDecision(ctx, id, mentor, domain.DecisionHomeCare); err != nil {
		t.Fatalf("decide: %v", err)
	}
	answer("decisionMatches", domain.Yes)
	answer("counsel_feeding", domain.Yes)
	answer("home_care_advice", domain.Yes)
}
