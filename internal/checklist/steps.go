package checklist

import "imnci-mentorship/internal/domain"

// HighestCompleteStep returns the last gating step whose groups, and all groups of earlier steps,
// are fully answered. It returns 0 when step one is incomplete. The tree must be normalized.
func (e *Engine) HighestCompleteStep(t domain.AnswerTree) int {
	highest := 0
	for _, step := range e.def.steps {
		for gi := range e.def.Groups {
			g := &e.def.Groups[gi]
			if g.Step == step && !e.GroupComplete(g, t) {
				return highest
			}
		}
		highest = step
	}
	return highest
}

// GroupVisible reports whether progressive disclosure currently reveals a group:
// ungated groups always, gated groups up to the first incomplete step.
func (e *Engine) GroupVisible(g *Group, t domain.AnswerTree) bool {
	if g.Step == 0 {
		return true
	}
	return g.Step <= e.nextStep(e.HighestCompleteStep(t))
}

func (e *Engine) nextStep(highest int) int {
	for _, step := range e.def.steps {
		if step > highest {
			return step
		}
	}
	return highest
}

// GroupComplete reports whether every relevant item of a group has an answer.
func (e *Engine) GroupComplete(g *Group, t domain.AnswerTree) bool {
	if g.Decision {
		return t.FinalDecision != domain.DecisionNone && t.DecisionMatches.Answered()
	}
	section := g.Section
	if section == "" {
		section = domain.SectionAssessment
	}
	for si := range g.Subgroups {
		sg := &g.Subgroups[si]
		if !e.SubgroupRelevant(sg, t) {
			continue
		}
		for ki := range sg.Skills {
			sk := &sg.Skills[ki]
			if Evaluate(sk.Relevant, t) && t.Get(section, sk.Key) == domain.Unanswered {
				return false
			}
		}
		for _, entry := range sg.Symptoms {
			if !chainComplete(entry, t) {
				return false
			}
		}
		if cd := sg.Classification; cd != nil && !classified(t, cd.Prefix) {
			return false
		}
	}
	return true
}

func chainComplete(entry SymptomEntry, t domain.AnswerTree) bool {
	switch t.Assessment[entry.AskKey()] {
	case domain.No:
		return true
	case domain.Yes:
	default:
		return false
	}
	switch t.Assessment[entry.ConfirmKey()] {
	case domain.No:
		return true
	case domain.Yes:
	default:
		return false
	}
	if !t.Assessment[entry.CheckKey()].Answered() {
		return false
	}
	return classified(t, entry.Prefix)
}

// classified requires the classify skill, the worker's classification and, when the worker was
// wrong, the supervisor's correction.
func classified(t domain.AnswerTree, prefix string) bool {
	classify := t.Assessment[ClassifyKey(prefix)]
	if !classify.Answered() || len(t.Labels(WorkerField(prefix))) == 0 {
		return false
	}
	return classify == domain.Yes || len(t.Labels(SupervisorField(prefix))) > 0
}
