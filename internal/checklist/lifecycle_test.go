package checklist

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"imnci-mentorship/internal/domain"
)

func testEnvelope() Envelope {
	return Envelope{
		ID:        "session-1",
		Subject:   domain.Subject{WorkerName: "Amna", FacilityID: "fac-7", FacilityName: "Kassala PHC"},
		Evaluator: domain.Evaluator{Name: "Mentor", Email: "mentor@example.org"},
		SavedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestToCompleteRejectsUnfinishedVisit(t *testing.T) {
	e := newTestEngine()
	tree := domain.NewAnswerTree("2024-05-01")
	tree = mustSet(t, e, tree, "measure_temperature", domain.Yes)

	_, err := e.ToComplete(testEnvelope(), tree, e.ComputeScores(tree))
	if !errors.Is(err, domain.ErrIncomplete) {
		t.Fatalf("expected incomplete, got %v", err)
	}
	var incomplete *domain.IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected *IncompleteError, got %T", err)
	}
	if incomplete.HighestStep != 0 || incomplete.FinalStep != 6 {
		t.Fatalf("unexpected steps %+v", incomplete)
	}
}

func TestToCompleteRejectsMissingDate(t *testing.T) {
	e := newTestEngine()
	tree := completeTree(t, e)
	tree = e.SetDate(tree, " ")

	_, err := e.ToComplete(testEnvelope(), tree, e.ComputeScores(tree))
	var incomplete *domain.IncompleteError
	if !errors.As(err, &incomplete) || !incomplete.MissingDate {
		t.Fatalf("expected missing date, got %v", err)
	}
}

func TestToCompleteRejectsInconsistentTree(t *testing.T) {
	e := newTestEngine()
	tree := completeTree(t, e).Clone()
	tree.Treatment["give_iron"] = domain.Yes

	_, err := e.ToComplete(testEnvelope(), tree, e.ComputeScores(tree))
	var incomplete *domain.IncompleteError
	if !errors.As(err, &incomplete) || !incomplete.Inconsistent {
		t.Fatalf("expected inconsistent tree to be rejected, got %v", err)
	}
}

func TestToCompleteAcceptsFinishedVisit(t *testing.T) {
	e := newTestEngine()
	tree := completeTree(t, e)
	scores := e.ComputeScores(tree)

	s, err := e.ToComplete(testEnvelope(), tree, scores)
	if err != nil {
		t.Fatalf("to complete: %v", err)
	}
	if s.Status != domain.StatusComplete {
		t.Fatalf("expected complete status, got %s", s.Status)
	}
	if s.ID != "session-1" || s.Subject.FacilityID != "fac-7" || s.Date != "2024-05-01" {
		t.Fatalf("envelope not carried: %+v", s)
	}
	if s.Fields["finalDecision"] != string(domain.DecisionTreat) || s.Fields["assessment:ask_cough"] != "yes" {
		t.Fatalf("unexpected fields %v", s.Fields)
	}
	if s.Fields["single:"+WorkerField("cough")] != CoughPneumonia {
		t.Fatalf("expected cough classification flattened, got %v", s.Fields)
	}
	if s.Scores["overall:max"] != scores.Overall.MaxScore {
		t.Fatalf("expected flattened scores, got %v", s.Scores)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	e := newTestEngine()
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		tree, _ := e.Normalize(randomTree(r, e))
		s := e.ToDraft(testEnvelope(), tree, e.ComputeScores(tree))
		if s.Status != domain.StatusDraft {
			t.Fatalf("expected draft status, got %s", s.Status)
		}
		back := e.Rehydrate(s)
		if !back.Equal(tree) {
			t.Fatalf("tree %d: rehydrated draft differs\nfields %v\nlists %v", i, s.Fields, s.Lists)
		}
	}
}

func TestRehydrateDropsUnknownLabels(t *testing.T) {
	e := newTestEngine()
	tree := feverTree(t, e, domain.Yes, FeverMalaria)
	s := e.ToDraft(testEnvelope(), tree, e.ComputeScores(tree))

	s.Lists[WorkerField("fever")] = append(s.Lists[WorkerField("fever")], "حمى الضنك")
	s.Lists["spleen_classification"] = []string{"x"}
	s.Fields["single:"+WorkerField("cough")] = "not a label"
	s.Fields["finalDecision"] = "discharge"

	back := e.Rehydrate(s)
	if got := back.Labels(WorkerField("fever")); len(got) != 1 || got[0] != FeverMalaria {
		t.Fatalf("expected only the known fever label, got %v", got)
	}
	if back.FinalDecision != domain.DecisionNone {
		t.Fatalf("expected unknown decision dropped, got %q", back.FinalDecision)
	}
	if _, ok := back.Multi["spleen_classification"]; ok {
		t.Fatalf("expected unknown field dropped")
	}
	if !back.Equal(tree) {
		t.Fatalf("expected the known part of the draft to survive")
	}
}
