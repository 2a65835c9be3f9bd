package checklist

import "imnci-mentorship/internal/domain"

// View derives everything the presentation layer needs from a normalized tree.
func (e *Engine) View(t domain.AnswerTree) domain.View {
	scores := e.ComputeScores(t)
	highest := e.HighestCompleteStep(t)

	v := domain.View{
		Answers:             t,
		Scores:              scores,
		Percent:             percentages(scores),
		HighestCompleteStep: highest,
		FinalStep:           e.def.FinalStep(),
		Visible:             make(map[string]bool),
		Status:              domain.StatusDraft,
	}
	for gi := range e.def.Groups {
		g := &e.def.Groups[gi]
		groupOn := e.GroupVisible(g, t)
		v.Visible["group:"+g.Key] = groupOn
		for si := range g.Subgroups {
			sg := &g.Subgroups[si]
			subgroupOn := groupOn && e.SubgroupRelevant(sg, t)
			v.Visible["subgroup:"+sg.Key] = subgroupOn
			for ki := range sg.Skills {
				key := sg.Skills[ki].Key
				v.Visible[key] = subgroupOn && e.SkillRelevant(key, t)
			}
			for _, entry := range sg.Symptoms {
				for _, key := range append([]string{entry.AskKey()}, entry.chainKeys()...) {
					v.Visible[key] = subgroupOn && e.SkillRelevant(key, t)
				}
				for _, field := range []string{entry.WorkerField(), entry.SupervisorField()} {
					v.Visible[field] = subgroupOn && e.ClassificationRelevant(field, t)
				}
			}
			if cd := sg.Classification; cd != nil {
				for _, field := range []string{WorkerField(cd.Prefix), SupervisorField(cd.Prefix)} {
					v.Visible[field] = subgroupOn && e.ClassificationRelevant(field, t)
				}
			}
		}
	}
	return v
}

func percentages(st domain.ScoreTree) map[string]int {
	out := map[string]int{
		"overall":  st.Overall.Percent(),
		"decision": st.Decision.Percent(),
	}
	for k, sc := range st.Groups {
		out["group:"+k] = sc.Percent()
	}
	for k, sc := range st.Subgroups {
		out["subgroup:"+k] = sc.Percent()
	}
	for k, sc := range st.Symptoms {
		out["symptom:"+k] = sc.Percent()
	}
	return out
}
