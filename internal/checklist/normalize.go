package checklist

import (
	"log"

	"imnci-mentorship/internal/domain"
)

// maxPasses bounds the fixpoint loop. Each pass walks groups in definition order, which is also
// dependency order, so a consistent tree is normally reached after the first pass.
const maxPasses = 8

// Normalize resets every answer that is no longer relevant and reports whether anything changed.
// It does not assume the input was previously consistent, so it also serves as the warm start
// for rehydrated drafts. Normalize(Normalize(t)) always reports changed == false.
func (e *Engine) Normalize(t domain.AnswerTree) (domain.AnswerTree, bool) {
	out := t.Clone()
	changed := false
	for pass := 0; pass < maxPasses; pass++ {
		if !e.normalizePass(&out) {
			return out, changed
		}
		changed = true
	}
	log.Printf("normalize: no fixpoint after %d passes", maxPasses)
	return out, changed
}

func (e *Engine) normalizePass(t *domain.AnswerTree) bool {
	changed := e.normalizeTopLevel(t)
	for gi := range e.def.Groups {
		g := &e.def.Groups[gi]
		if g.Decision {
			continue
		}
		for si := range g.Subgroups {
			sg := &g.Subgroups[si]
			changed = e.normalizeSkills(g, sg, t) || changed
			changed = e.normalizeSymptoms(sg, t) || changed
			changed = e.normalizeDomain(sg, t) || changed
		}
	}
	return changed
}

func (e *Engine) normalizeTopLevel(t *domain.AnswerTree) bool {
	changed := false
	if _, err := domain.ParseDecision(string(t.FinalDecision)); err != nil {
		t.FinalDecision = domain.DecisionNone
		changed = true
	}
	if t.DecisionMatches != domain.Unanswered && !t.DecisionMatches.Answered() {
		t.DecisionMatches = domain.Unanswered
		changed = true
	}
	return changed
}

// normalizeSkills forces irrelevant plain skills to "na" and gives relevant skills back an empty
// answer when they hold an "na" they do not offer.
func (e *Engine) normalizeSkills(g *Group, sg *Subgroup, t *domain.AnswerTree) bool {
	section := g.Section
	if section == "" {
		section = domain.SectionAssessment
	}
	subgroupOn := e.SubgroupRelevant(sg, *t)
	changed := false
	for ki := range sg.Skills {
		sk := &sg.Skills[ki]
		current := t.Get(section, sk.Key)
		relevant := subgroupOn && Evaluate(sk.Relevant, *t)
		switch {
		case !relevant && current != domain.NA:
			changed = t.Put(section, sk.Key, domain.NA) || changed
		case relevant && current == domain.NA && !sk.AllowNA:
			changed = t.Put(section, sk.Key, domain.Unanswered) || changed
		case current != domain.Unanswered && current != domain.NA && !current.Answered():
			changed = t.Put(section, sk.Key, domain.Unanswered) || changed
		}
	}
	return changed
}

// normalizeSymptoms enforces the ask -> confirm -> check/classify chain of every symptom entry and
// the sequential gating across entries: a symptom is reset while the previous one's ask is unanswered.
func (e *Engine) normalizeSymptoms(sg *Subgroup, t *domain.AnswerTree) bool {
	changed := false
	for i := range sg.Symptoms {
		entry := sg.Symptoms[i]
		var prev *SymptomEntry
		if i > 0 {
			prev = &sg.Symptoms[i-1]
		}
		ask := t.Assessment[entry.AskKey()]
		if !askOpen(prev, *t) || !ask.Answered() {
			ask = domain.Unanswered
			changed = t.Put(domain.SectionAssessment, entry.AskKey(), ask) || changed
		}

		switch ask {
		case domain.Unanswered:
			for _, key := range entry.chainKeys() {
				changed = t.Put(domain.SectionAssessment, key, domain.Unanswered) || changed
			}
			changed = clearFields(t, entry.WorkerField(), entry.SupervisorField()) || changed
			continue
		case domain.No:
			for _, key := range entry.chainKeys() {
				changed = t.Put(domain.SectionAssessment, key, domain.NA) || changed
			}
			changed = clearFields(t, entry.WorkerField(), entry.SupervisorField()) || changed
			continue
		}

		confirm := t.Assessment[entry.ConfirmKey()]
		if !confirm.Answered() && confirm != domain.Unanswered {
			confirm = domain.Unanswered
			changed = t.Put(domain.SectionAssessment, entry.ConfirmKey(), confirm) || changed
		}
		if confirm != domain.Yes {
			changed = t.Put(domain.SectionAssessment, entry.CheckKey(), domain.NA) || changed
			changed = t.Put(domain.SectionAssessment, entry.ClassifyKey(), domain.NA) || changed
			changed = clearFields(t, entry.WorkerField(), entry.SupervisorField()) || changed
			continue
		}

		for _, key := range []string{entry.CheckKey(), entry.ClassifyKey()} {
			if a := t.Assessment[key]; a != domain.Unanswered && !a.Answered() {
				changed = t.Put(domain.SectionAssessment, key, domain.Unanswered) || changed
			}
		}
		if t.Assessment[entry.ClassifyKey()] != domain.No {
			changed = clearFields(t, entry.SupervisorField()) || changed
		}
		changed = e.dropForeignLabels(t, entry.WorkerField(), entry.SupervisorField()) || changed
	}
	return changed
}

// normalizeDomain keeps a standalone classification consistent with its classify skill: a correction
// never coexists with a worker who classified correctly or whose classify skill is unanswered or "na".
func (e *Engine) normalizeDomain(sg *Subgroup, t *domain.AnswerTree) bool {
	cd := sg.Classification
	if cd == nil {
		return false
	}
	changed := false
	if !e.SubgroupRelevant(sg, *t) {
		return clearFields(t, WorkerField(cd.Prefix), SupervisorField(cd.Prefix))
	}
	if t.Assessment[ClassifyKey(cd.Prefix)] != domain.No {
		changed = clearFields(t, SupervisorField(cd.Prefix))
	}
	return e.dropForeignLabels(t, WorkerField(cd.Prefix), SupervisorField(cd.Prefix)) || changed
}

// dropForeignLabels removes labels outside a field's vocabulary and values stored in the wrong shape.
func (e *Engine) dropForeignLabels(t *domain.AnswerTree, fields ...string) bool {
	changed := false
	for _, field := range fields {
		ref := e.def.classifications[field]
		if label, ok := t.Single[field]; ok && (ref.multi || !ref.vocabulary[label]) {
			changed = t.SetSingle(field, "") || changed
		}
		for label := range t.Multi[field] {
			if !ref.multi || !ref.vocabulary[label] {
				changed = t.Toggle(field, label, false) || changed
			}
		}
	}
	return changed
}

func clearFields(t *domain.AnswerTree, fields ...string) bool {
	changed := false
	for _, field := range fields {
		changed = t.ClearClassification(field) || changed
	}
	return changed
}
