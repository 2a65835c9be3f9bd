package checklist

import (
	"fmt"
	"sort"

	"imnci-mentorship/internal/domain"
)

// Definition is the static, immutable shape of a checklist.
type Definition struct {
	Groups []Group

	skills          map[string]skillRef
	symptoms        map[string]symptomRef
	classifications map[string]classificationRef
	steps           []int
	warnings        []string
}

// Group is a top-level section. Step gates visibility; zero means ungated.
type Group struct {
	Key       string
	Label     string
	Step      int
	Section   domain.Section
	Decision  bool
	Subgroups []Subgroup
}

// Subgroup holds skills, symptom entries or a standalone classification domain.
// MaxScore > 0 fixes the denominator; zero means it is recounted from relevance on every pass.
type Subgroup struct {
	Key            string
	Label          string
	MaxScore       int
	Relevant       Relevance
	Skills         []Skill
	Symptoms       []SymptomEntry
	Classification *ClassificationDomain
}

// Skill is one observed item answered yes/no (or na when AllowNA).
type Skill struct {
	Key      string
	Label    string
	Relevant Relevance
	AllowNA  bool
}

// SymptomEntry is a main symptom with its implicit ask/confirm/check/classify chain.
type SymptomEntry struct {
	Prefix     string
	Label      string
	Multi      bool
	Vocabulary []string
}

func (s SymptomEntry) AskKey() string          { return "ask_" + s.Prefix }
func (s SymptomEntry) ConfirmKey() string      { return "confirm_" + s.Prefix }
func (s SymptomEntry) CheckKey() string        { return "check_" + s.Prefix }
func (s SymptomEntry) ClassifyKey() string     { return ClassifyKey(s.Prefix) }
func (s SymptomEntry) WorkerField() string     { return WorkerField(s.Prefix) }
func (s SymptomEntry) SupervisorField() string { return SupervisorField(s.Prefix) }

// chainKeys lists the skills that follow the ask question, in chain order.
func (s SymptomEntry) chainKeys() []string {
	return []string{s.ConfirmKey(), s.CheckKey(), s.ClassifyKey()}
}

// ClassificationDomain is a classification not tied to a symptom chain (malnutrition, anemia).
// Its classify skill must be one of the owning subgroup's skills.
type ClassificationDomain struct {
	Prefix     string
	Multi      bool
	Vocabulary []string
}

// ClassifyKey is the skill recording whether the worker classified prefix correctly.
func ClassifyKey(prefix string) string { return "skill_classify_" + prefix }

// WorkerField is the worker's own classification for prefix.
func WorkerField(prefix string) string { return prefix + "_classification" }

// SupervisorField is the supervisor's correction for prefix.
func SupervisorField(prefix string) string { return prefix + "_supervisor_classification" }

type skillRef struct {
	group    *Group
	subgroup *Subgroup
	skill    *Skill
	symptom  string
}

type symptomRef struct {
	subgroup *Subgroup
	index    int
}

type classificationRef struct {
	prefix     string
	multi      bool
	supervisor bool
	vocabulary map[string]bool
}

// NewDefinition indexes and validates groups. Relevance strings are parsed by the caller through
// ParseRelevance; any fail-open results are collected as warnings.
func NewDefinition(groups []Group) (*Definition, error) {
	d := &Definition{
		Groups:          append([]Group(nil), groups...),
		skills:          make(map[string]skillRef),
		symptoms:        make(map[string]symptomRef),
		classifications: make(map[string]classificationRef),
	}
	keys := make(map[string]bool)
	claim := func(key string) error {
		if key == "" {
			return fmt.Errorf("empty key")
		}
		if keys[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		keys[key] = true
		return nil
	}
	stepSeen := make(map[int]bool)
	decisions := 0

	for gi := range d.Groups {
		g := &d.Groups[gi]
		if err := claim("group:" + g.Key); err != nil {
			return nil, fmt.Errorf("group %d: %w", gi, err)
		}
		if g.Step > 0 && !stepSeen[g.Step] {
			stepSeen[g.Step] = true
			d.steps = append(d.steps, g.Step)
		}
		if g.Decision {
			decisions++
			continue
		}
		for si := range g.Subgroups {
			sg := &g.Subgroups[si]
			if err := claim("subgroup:" + sg.Key); err != nil {
				return nil, fmt.Errorf("group %s: %w", g.Key, err)
			}
			d.warn(sg.Key, sg.Relevant)
			if sg.MaxScore > 0 && sg.MaxScore < len(sg.Skills) {
				return nil, fmt.Errorf("subgroup %s: fixed maxScore %d below %d skills", sg.Key, sg.MaxScore, len(sg.Skills))
			}
			for ki := range sg.Skills {
				sk := &sg.Skills[ki]
				if err := claim(sk.Key); err != nil {
					return nil, fmt.Errorf("subgroup %s: %w", sg.Key, err)
				}
				d.warn(sk.Key, sk.Relevant)
				d.skills[sk.Key] = skillRef{group: g, subgroup: sg, skill: sk}
			}
			for ei, entry := range sg.Symptoms {
				if len(entry.Vocabulary) == 0 {
					return nil, fmt.Errorf("symptom %s: empty vocabulary", entry.Prefix)
				}
				for _, key := range append([]string{entry.AskKey()}, entry.chainKeys()...) {
					if err := claim(key); err != nil {
						return nil, fmt.Errorf("symptom %s: %w", entry.Prefix, err)
					}
					d.skills[key] = skillRef{group: g, subgroup: sg, symptom: entry.Prefix}
				}
				d.symptoms[entry.Prefix] = symptomRef{subgroup: sg, index: ei}
				if err := d.addClassification(claim, entry.Prefix, entry.Multi, entry.Vocabulary); err != nil {
					return nil, err
				}
			}
			if cd := sg.Classification; cd != nil {
				if len(cd.Vocabulary) == 0 {
					return nil, fmt.Errorf("classification %s: empty vocabulary", cd.Prefix)
				}
				if ref, ok := d.skills[ClassifyKey(cd.Prefix)]; !ok || ref.subgroup != sg {
					return nil, fmt.Errorf("classification %s: subgroup %s lacks %s", cd.Prefix, sg.Key, ClassifyKey(cd.Prefix))
				}
				if err := d.addClassification(claim, cd.Prefix, cd.Multi, cd.Vocabulary); err != nil {
					return nil, err
				}
			}
		}
	}
	if decisions > 1 {
		return nil, fmt.Errorf("expected at most one decision section, got %d", decisions)
	}
	sort.Ints(d.steps)
	return d, nil
}

func (d *Definition) addClassification(claim func(string) error, prefix string, multi bool, vocabulary []string) error {
	vocab := make(map[string]bool, len(vocabulary))
	for _, label := range vocabulary {
		vocab[label] = true
	}
	for _, supervisor := range []bool{false, true} {
		field := WorkerField(prefix)
		if supervisor {
			field = SupervisorField(prefix)
		}
		if err := claim(field); err != nil {
			return fmt.Errorf("classification %s: %w", prefix, err)
		}
		d.classifications[field] = classificationRef{prefix: prefix, multi: multi, supervisor: supervisor, vocabulary: vocab}
	}
	return nil
}

func (d *Definition) warn(owner string, r Relevance) {
	if u, ok := r.(Unparsed); ok {
		d.warnings = append(d.warnings, fmt.Sprintf("%s: unparseable relevance %q treated as always relevant", owner, u.Expr))
	}
}

// Warnings lists relevance expressions that could not be parsed.
func (d *Definition) Warnings() []string {
	return append([]string(nil), d.warnings...)
}

// FinalStep is the highest gating step, or zero when nothing is gated.
func (d *Definition) FinalStep() int {
	if len(d.steps) == 0 {
		return 0
	}
	return d.steps[len(d.steps)-1]
}

// HasVocabulary reports whether label belongs to a classification field.
func (d *Definition) HasVocabulary(field, label string) bool {
	ref, ok := d.classifications[field]
	return ok && ref.vocabulary[label]
}

// IsMulti reports whether a classification field is multi-select.
func (d *Definition) IsMulti(field string) bool {
	return d.classifications[field].multi
}

// Section reports where a skill key is stored.
func (d *Definition) Section(key string) (domain.Section, bool) {
	ref, ok := d.skills[key]
	if !ok {
		return "", false
	}
	if ref.group.Section == "" {
		return domain.SectionAssessment, true
	}
	return ref.group.Section, true
}
