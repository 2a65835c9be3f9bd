package checklist

import (
	"fmt"

	"imnci-mentorship/internal/domain"
)

// Effective returns the classification used for downstream gating: the worker's own labels when
// skill_classify_<prefix> is "yes", otherwise the supervisor's correction (possibly empty).
// Treatment relevance must go through this function and nowhere else.
func Effective(t domain.AnswerTree, prefix string) []string {
	if t.Assessment[ClassifyKey(prefix)] == domain.Yes {
		return t.Labels(WorkerField(prefix))
	}
	return t.Labels(SupervisorField(prefix))
}

// EffectiveContains reports whether the effective classification of prefix includes label.
func EffectiveContains(t domain.AnswerTree, prefix, label string) bool {
	for _, l := range Effective(t, prefix) {
		if l == label {
			return true
		}
	}
	return false
}

// EffectiveContainsAny reports whether any of the labels is in the effective classification of prefix.
func EffectiveContainsAny(t domain.AnswerTree, prefix string, labels ...string) bool {
	for _, label := range labels {
		if EffectiveContains(t, prefix, label) {
			return true
		}
	}
	return false
}

// SetClassification selects or deselects one label. Single-select fields hold at most one label:
// selecting replaces, deselecting the current label clears. The result is normalized.
func (e *Engine) SetClassification(t domain.AnswerTree, field, label string, selected bool) (domain.AnswerTree, error) {
	ref, ok := e.def.classifications[field]
	if !ok {
		return t, fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}
	if !ref.vocabulary[label] {
		return t, fmt.Errorf("%w: %q for %s", domain.ErrUnknownLabel, label, field)
	}
	next := t.Clone()
	switch {
	case ref.multi:
		next.Toggle(field, label, selected)
	case selected:
		next.SetSingle(field, label)
	case next.Single[field] == label:
		next.SetSingle(field, "")
	}
	return e.commit(t, next), nil
}
