package checklist

import (
	"fmt"

	"imnci-mentorship/internal/domain"
)

// ComputeScores derives the ScoreTree of a normalized tree.
// A node whose score exceeds its maxScore means a relevance rule and a scoring rule disagree;
// that is a programming fault and panics instead of being clamped.
func (e *Engine) ComputeScores(t domain.AnswerTree) domain.ScoreTree {
	st := domain.ScoreTree{
		Subgroups: make(map[string]domain.Score),
		Symptoms:  make(map[string]domain.Score),
		Groups:    make(map[string]domain.Score),
	}
	for gi := range e.def.Groups {
		g := &e.def.Groups[gi]
		var group domain.Score
		if g.Decision {
			st.Decision = decisionScore(t)
			group = st.Decision
		} else {
			for si := range g.Subgroups {
				sg := &g.Subgroups[si]
				sc := e.subgroupScore(g, sg, t, st.Symptoms)
				mustBound("subgroup "+sg.Key, sc)
				st.Subgroups[sg.Key] = sc
				group = group.Add(sc)
			}
		}
		mustBound("group "+g.Key, group)
		st.Groups[g.Key] = group
		st.Overall = st.Overall.Add(group)
	}
	mustBound("overall", st.Overall)
	return st
}

func decisionScore(t domain.AnswerTree) domain.Score {
	sc := domain.Score{MaxScore: 1}
	if t.DecisionMatches == domain.Yes {
		sc.Score = 1
	}
	return sc
}

func (e *Engine) subgroupScore(g *Group, sg *Subgroup, t domain.AnswerTree, symptoms map[string]domain.Score) domain.Score {
	if !e.SubgroupRelevant(sg, t) {
		for _, entry := range sg.Symptoms {
			symptoms[entry.Prefix] = domain.Score{}
		}
		return domain.Score{}
	}
	section := g.Section
	if section == "" {
		section = domain.SectionAssessment
	}

	var skills domain.Score
	for ki := range sg.Skills {
		sk := &sg.Skills[ki]
		if !Evaluate(sk.Relevant, t) {
			continue
		}
		a := t.Get(section, sk.Key)
		if a == domain.NA {
			continue
		}
		skills.MaxScore++
		if a == domain.Yes {
			skills.Score++
		}
	}
	if sg.MaxScore > 0 {
		skills.MaxScore = sg.MaxScore
	}

	for _, entry := range sg.Symptoms {
		sc := symptomScore(entry, t)
		mustBound("symptom "+entry.Prefix, sc)
		symptoms[entry.Prefix] = sc
		skills = skills.Add(sc)
	}
	return skills
}

// symptomScore gives one point for answering ask (yes or no), plus the check and classify points,
// which only enter the denominator once ask and the supervisor's confirmation are both "yes".
func symptomScore(entry SymptomEntry, t domain.AnswerTree) domain.Score {
	sc := domain.Score{MaxScore: 1}
	if t.Assessment[entry.AskKey()].Answered() {
		sc.Score++
	}
	if !confirmed(entry, t) {
		return sc
	}
	sc.MaxScore += 2
	if t.Assessment[entry.CheckKey()] == domain.Yes {
		sc.Score++
	}
	if t.Assessment[entry.ClassifyKey()] == domain.Yes {
		sc.Score++
	}
	return sc
}

func mustBound(node string, sc domain.Score) {
	if sc.Score < 0 || sc.Score > sc.MaxScore {
		panic(fmt.Sprintf("checklist: %s scored %d/%d", node, sc.Score, sc.MaxScore))
	}
}
