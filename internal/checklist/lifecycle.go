package checklist

import (
	"log"
	"sort"
	"strings"
	"time"

	"imnci-mentorship/internal/domain"
)

// Envelope carries the session attributes that are not part of the answer tree.
type Envelope struct {
	ID        string
	Subject   domain.Subject
	Evaluator domain.Evaluator
	SavedAt   time.Time
}

const (
	fieldFinalDecision   = "finalDecision"
	fieldDecisionMatches = "decisionMatches"
	prefixSingle         = "single:"
)

// ToDraft serializes a tree without any completeness check.
func (e *Engine) ToDraft(env Envelope, t domain.AnswerTree, scores domain.ScoreTree) domain.Session {
	return e.flatten(env, t, scores, domain.StatusDraft)
}

// ToComplete serializes a tree as complete, or returns an *domain.IncompleteError when the tree is
// not normalized, has not reached the final step, or lacks a date.
func (e *Engine) ToComplete(env Envelope, t domain.AnswerTree, scores domain.ScoreTree) (domain.Session, error) {
	normalized, changed := e.Normalize(t)
	incomplete := &domain.IncompleteError{
		HighestStep:  e.HighestCompleteStep(normalized),
		FinalStep:    e.def.FinalStep(),
		Inconsistent: changed,
		MissingDate:  strings.TrimSpace(t.Date) == "",
	}
	if incomplete.Inconsistent || incomplete.HighestStep < incomplete.FinalStep || incomplete.MissingDate {
		return domain.Session{}, incomplete
	}
	return e.flatten(env, t, scores, domain.StatusComplete), nil
}

func (e *Engine) flatten(env Envelope, t domain.AnswerTree, scores domain.ScoreTree, status domain.Status) domain.Session {
	s := domain.Session{
		ID:        env.ID,
		Date:      t.Date,
		Subject:   env.Subject,
		Evaluator: env.Evaluator,
		Fields:    make(map[string]string),
		Lists:     make(map[string][]string),
		Scores:    scores.Flatten(),
		Status:    status,
		UpdatedAt: env.SavedAt,
	}
	if t.FinalDecision != domain.DecisionNone {
		s.Fields[fieldFinalDecision] = string(t.FinalDecision)
	}
	if t.DecisionMatches != domain.Unanswered {
		s.Fields[fieldDecisionMatches] = string(t.DecisionMatches)
	}
	for k, a := range t.Assessment {
		if a != domain.Unanswered {
			s.Fields[string(domain.SectionAssessment)+":"+k] = string(a)
		}
	}
	for k, a := range t.Treatment {
		if a != domain.Unanswered {
			s.Fields[string(domain.SectionTreatment)+":"+k] = string(a)
		}
	}
	for field, label := range t.Single {
		if label != "" {
			s.Fields[prefixSingle+field] = label
		}
	}
	for field := range t.Multi {
		if labels := t.Labels(field); len(labels) > 0 {
			s.Lists[field] = labels
		}
	}
	return s
}

// Rehydrate rebuilds an editable tree from a persisted session. Fields and labels the current
// definition no longer knows are dropped and logged; the result is normalized.
func (e *Engine) Rehydrate(s domain.Session) domain.AnswerTree {
	t := domain.NewAnswerTree(s.Date)
	var dropped []string

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.Fields[k]
		switch {
		case k == fieldFinalDecision:
			d, err := domain.ParseDecision(v)
			if err != nil {
				dropped = append(dropped, k+"="+v)
				continue
			}
			t.FinalDecision = d
		case k == fieldDecisionMatches:
			a, err := domain.ParseAnswer(v)
			if err != nil {
				dropped = append(dropped, k+"="+v)
				continue
			}
			t.DecisionMatches = a
		case strings.HasPrefix(k, prefixSingle):
			field := strings.TrimPrefix(k, prefixSingle)
			if !e.def.HasVocabulary(field, v) || e.def.IsMulti(field) {
				dropped = append(dropped, k+"="+v)
				continue
			}
			t.SetSingle(field, v)
		default:
			section, key, ok := strings.Cut(k, ":")
			want, known := e.def.Section(key)
			a, err := domain.ParseAnswer(v)
			if !ok || !known || string(want) != section || err != nil {
				dropped = append(dropped, k+"="+v)
				continue
			}
			t.Put(want, key, a)
		}
	}

	for field, labels := range s.Lists {
		if !e.def.IsMulti(field) {
			dropped = append(dropped, field)
			continue
		}
		for _, label := range labels {
			if !e.def.HasVocabulary(field, label) {
				dropped = append(dropped, field+"="+label)
				continue
			}
			t.Toggle(field, label, true)
		}
	}

	if len(dropped) > 0 {
		sort.Strings(dropped)
		log.Printf("rehydrate %s: dropped unknown values %v", s.ID, dropped)
	}
	normalized, _ := e.Normalize(t)
	return normalized
}
