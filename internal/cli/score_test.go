package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/domain"
)

func TestScoreFilePrintsRecomputedScores(t *testing.T) {
	engine := checklist.NewEngine(checklist.IMNCI())
	tree := domain.NewAnswerTree("2024-05-01")
	var err error
	for _, key := range []string{"measure_temperature", "measure_weight", "count_breathing"} {
		if tree, err = engine.SetAnswer(tree, key, domain.Yes); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	env := checklist.Envelope{ID: "s-1", Evaluator: domain.Evaluator{Email: "mentor@example.org"}}
	session := engine.ToDraft(env, tree, engine.ComputeScores(tree))
	// stale persisted scores are ignored
	session.Scores = map[string]int{"overall:score": 99}

	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	if err := scoreFile(path, &out); err != nil {
		t.Fatalf("score: %v", err)
	}

	var report scoreReport
	if err := yaml.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out.String())
	}
	want := engine.ComputeScores(tree).Overall
	if report.Session != "s-1" || report.Status != domain.StatusDraft {
		t.Fatalf("unexpected header %+v", report)
	}
	if report.Scores.Overall != want {
		t.Fatalf("expected overall %+v, got %+v", want, report.Scores.Overall)
	}
	if report.HighestCompleteStep != 1 {
		t.Fatalf("expected highest step 1, got %d", report.HighestCompleteStep)
	}
}

func TestScoreFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := scoreFile(path, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected parse error")
	}
}
