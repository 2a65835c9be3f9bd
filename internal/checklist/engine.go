package checklist

import (
	"fmt"

	"imnci-mentorship/internal/domain"
)

// Engine evaluates one Definition. All methods are pure: they never mutate their input tree
// and perform no I/O, so a single Engine can be shared freely.
type Engine struct {
	def *Definition
}

func NewEngine(def *Definition) *Engine {
	return &Engine{def: def}
}

// Definition exposes the static checklist the engine evaluates.
func (e *Engine) Definition() *Definition {
	return e.def
}

// SetAnswer writes one skill answer (or decisionMatches) and returns the normalized tree.
func (e *Engine) SetAnswer(t domain.AnswerTree, key string, value domain.Answer) (domain.AnswerTree, error) {
	if _, err := domain.ParseAnswer(string(value)); err != nil {
		return t, fmt.Errorf("%w: %q", err, value)
	}
	next := t.Clone()
	if key == "decisionMatches" {
		if value == domain.NA {
			return t, fmt.Errorf("%w: %s", domain.ErrAnswerNotOffered, key)
		}
		next.DecisionMatches = value
		return e.commit(t, next), nil
	}
	ref, ok := e.def.skills[key]
	if !ok {
		return t, fmt.Errorf("%w: %s", domain.ErrUnknownField, key)
	}
	if value == domain.NA && (ref.skill == nil || !ref.skill.AllowNA) {
		return t, fmt.Errorf("%w: %s", domain.ErrAnswerNotOffered, key)
	}
	section, _ := e.def.Section(key)
	next.Put(section, key, value)
	return e.commit(t, next), nil
}

// SetDecision records the final decision.
func (e *Engine) SetDecision(t domain.AnswerTree, decision domain.Decision) (domain.AnswerTree, error) {
	if _, err := domain.ParseDecision(string(decision)); err != nil {
		return t, fmt.Errorf("%w: %q", err, decision)
	}
	next := t.Clone()
	next.FinalDecision = decision
	return e.commit(t, next), nil
}

// SetDate records the visit date.
func (e *Engine) SetDate(t domain.AnswerTree, date string) domain.AnswerTree {
	next := t.Clone()
	next.Date = date
	return e.commit(t, next)
}

// commit runs the per-write pipeline: sequential symptom cascade, normalization, and the
// reactivation reset for skills that just became relevant while holding a forced "na".
func (e *Engine) commit(prev, next domain.AnswerTree) domain.AnswerTree {
	e.cascadeAsks(prev, &next)
	next, _ = e.Normalize(next)
	if e.reactivate(prev, &next) {
		next, _ = e.Normalize(next)
	}
	return next
}

// cascadeAsks clears the ask answer of every symptom after the first one whose ask answer changed.
func (e *Engine) cascadeAsks(prev domain.AnswerTree, next *domain.AnswerTree) {
	for gi := range e.def.Groups {
		for si := range e.def.Groups[gi].Subgroups {
			entries := e.def.Groups[gi].Subgroups[si].Symptoms
			for i, entry := range entries {
				if prev.Assessment[entry.AskKey()] == next.Assessment[entry.AskKey()] {
					continue
				}
				for _, later := range entries[i+1:] {
					next.Put(domain.SectionAssessment, later.AskKey(), domain.Unanswered)
				}
				break
			}
		}
	}
}

func (e *Engine) reactivate(prev domain.AnswerTree, next *domain.AnswerTree) bool {
	changed := false
	for key, ref := range e.def.skills {
		if ref.skill == nil || !ref.skill.AllowNA {
			continue
		}
		section, _ := e.def.Section(key)
		if next.Get(section, key) != domain.NA {
			continue
		}
		if !e.SkillRelevant(key, prev) && e.SkillRelevant(key, *next) {
			changed = next.Put(section, key, domain.Unanswered) || changed
		}
	}
	return changed
}
