package domain

import (
	"sort"
	"time"
)

// Answer is the stored value of a single checklist skill.
type Answer string

const (
	Unanswered Answer = ""
	Yes        Answer = "yes"
	No         Answer = "no"
	NA         Answer = "na"
)

// ParseAnswer validates a raw client value.
func ParseAnswer(raw string) (Answer, error) {
	switch a := Answer(raw); a {
	case Unanswered, Yes, No, NA:
		return a, nil
	}
	return Unanswered, ErrInvalidAnswer
}

// Answered reports whether the skill holds yes or no.
func (a Answer) Answered() bool {
	return a == Yes || a == No
}

// Decision is the mentor's final case-management decision.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionReferral Decision = "referral"
	DecisionTreat    Decision = "treatment"
	DecisionHomeCare Decision = "home_care"
)

// ParseDecision validates a raw client value.
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(raw); d {
	case DecisionNone, DecisionReferral, DecisionTreat, DecisionHomeCare:
		return d, nil
	}
	return DecisionNone, ErrInvalidDecision
}

// Section names the part of the answer tree a skill is stored in.
type Section string

const (
	SectionAssessment Section = "assessment"
	SectionTreatment  Section = "treatment"
)

// LabelSet is a multi-select classification. Only selected labels are stored.
type LabelSet map[string]bool

// AnswerTree holds every answer of one in-progress checklist.
// Unanswered skills and empty classifications are absent from the maps.
type AnswerTree struct {
	Date            string              `json:"date"`
	FinalDecision   Decision            `json:"finalDecision"`
	DecisionMatches Answer              `json:"decisionMatches"`
	Assessment      map[string]Answer   `json:"assessment"`
	Treatment       map[string]Answer   `json:"treatment"`
	Single          map[string]string   `json:"single"`
	Multi           map[string]LabelSet `json:"multi"`
}

// NewAnswerTree returns an empty tree for the given visit date.
func NewAnswerTree(date string) AnswerTree {
	return AnswerTree{
		Date:       date,
		Assessment: make(map[string]Answer),
		Treatment:  make(map[string]Answer),
		Single:     make(map[string]string),
		Multi:      make(map[string]LabelSet),
	}
}

// Clone returns a deep copy.
func (t AnswerTree) Clone() AnswerTree {
	out := NewAnswerTree(t.Date)
	out.FinalDecision = t.FinalDecision
	out.DecisionMatches = t.DecisionMatches
	for k, v := range t.Assessment {
		if v != Unanswered {
			out.Assessment[k] = v
		}
	}
	for k, v := range t.Treatment {
		if v != Unanswered {
			out.Treatment[k] = v
		}
	}
	for k, v := range t.Single {
		if v != "" {
			out.Single[k] = v
		}
	}
	for k, set := range t.Multi {
		cp := make(LabelSet, len(set))
		for label, on := range set {
			if on {
				cp[label] = true
			}
		}
		if len(cp) > 0 {
			out.Multi[k] = cp
		}
	}
	return out
}

// Get returns the answer stored for key in section.
func (t AnswerTree) Get(section Section, key string) Answer {
	switch section {
	case SectionTreatment:
		return t.Treatment[key]
	default:
		return t.Assessment[key]
	}
}

// Put stores an answer and reports whether the tree changed.
func (t *AnswerTree) Put(section Section, key string, a Answer) bool {
	m := t.sectionMap(section)
	if m[key] == a {
		return false
	}
	if a == Unanswered {
		delete(m, key)
	} else {
		m[key] = a
	}
	return true
}

func (t *AnswerTree) sectionMap(section Section) map[string]Answer {
	if section == SectionTreatment {
		if t.Treatment == nil {
			t.Treatment = make(map[string]Answer)
		}
		return t.Treatment
	}
	if t.Assessment == nil {
		t.Assessment = make(map[string]Answer)
	}
	return t.Assessment
}

// Lookup resolves a variable by name: top-level fields first, then the assessment and treatment sections.
func (t AnswerTree) Lookup(name string) (string, bool) {
	switch name {
	case "date":
		return t.Date, true
	case "finalDecision":
		return string(t.FinalDecision), true
	case "decisionMatches":
		return string(t.DecisionMatches), true
	}
	if v, ok := t.Assessment[name]; ok {
		return string(v), true
	}
	if v, ok := t.Treatment[name]; ok {
		return string(v), true
	}
	return "", false
}

// Labels returns the selected labels of a classification field in sorted order.
func (t AnswerTree) Labels(field string) []string {
	if label := t.Single[field]; label != "" {
		return []string{label}
	}
	set := t.Multi[field]
	labels := make([]string, 0, len(set))
	for label, on := range set {
		if on {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// SetSingle replaces a single-select classification.
func (t *AnswerTree) SetSingle(field, label string) bool {
	if t.Single == nil {
		t.Single = make(map[string]string)
	}
	if t.Single[field] == label {
		return false
	}
	if label == "" {
		delete(t.Single, field)
	} else {
		t.Single[field] = label
	}
	return true
}

// Toggle selects or deselects one label of a multi-select classification.
func (t *AnswerTree) Toggle(field, label string, selected bool) bool {
	if t.Multi == nil {
		t.Multi = make(map[string]LabelSet)
	}
	set := t.Multi[field]
	if set[label] == selected {
		return false
	}
	if selected {
		if set == nil {
			set = make(LabelSet)
			t.Multi[field] = set
		}
		set[label] = true
		return true
	}
	delete(set, label)
	if len(set) == 0 {
		delete(t.Multi, field)
	}
	return true
}

// ClearClassification resets a classification field to its empty state.
func (t *AnswerTree) ClearClassification(field string) bool {
	changed := false
	if _, ok := t.Single[field]; ok {
		delete(t.Single, field)
		changed = true
	}
	if _, ok := t.Multi[field]; ok {
		delete(t.Multi, field)
		changed = true
	}
	return changed
}

// Equal compares two trees treating absent and empty entries alike.
func (t AnswerTree) Equal(o AnswerTree) bool {
	a, b := t.Clone(), o.Clone()
	if a.Date != b.Date || a.FinalDecision != b.FinalDecision || a.DecisionMatches != b.DecisionMatches {
		return false
	}
	if !equalAnswers(a.Assessment, b.Assessment) || !equalAnswers(a.Treatment, b.Treatment) {
		return false
	}
	if len(a.Single) != len(b.Single) {
		return false
	}
	for k, v := range a.Single {
		if b.Single[k] != v {
			return false
		}
	}
	if len(a.Multi) != len(b.Multi) {
		return false
	}
	for k, set := range a.Multi {
		other := b.Multi[k]
		if len(other) != len(set) {
			return false
		}
		for label := range set {
			if !other[label] {
				return false
			}
		}
	}
	return true
}

func equalAnswers(a, b map[string]Answer) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Score is an exact score/maxScore pair.
type Score struct {
	Score    int `json:"score" yaml:"score"`
	MaxScore int `json:"maxScore" yaml:"maxScore"`
}

// Add returns the component-wise sum.
func (s Score) Add(o Score) Score {
	return Score{Score: s.Score + o.Score, MaxScore: s.MaxScore + o.MaxScore}
}

// Percent rounds to the nearest whole percent. A zero maxScore is fully satisfied.
func (s Score) Percent() int {
	if s.MaxScore == 0 {
		return 100
	}
	return (s.Score*200 + s.MaxScore) / (2 * s.MaxScore)
}

// ScoreTree is derived from an AnswerTree and never mutated independently.
type ScoreTree struct {
	Subgroups map[string]Score `json:"subgroups" yaml:"subgroups"`
	Symptoms  map[string]Score `json:"symptoms" yaml:"symptoms"`
	Groups    map[string]Score `json:"groups" yaml:"groups"`
	Decision  Score            `json:"decision" yaml:"decision"`
	Overall   Score            `json:"overall" yaml:"overall"`
}

// Flatten serializes the tree as "<node>:score" / "<node>:max" pairs.
func (s ScoreTree) Flatten() map[string]int {
	out := make(map[string]int)
	put := func(prefix string, sc Score) {
		out[prefix+":score"] = sc.Score
		out[prefix+":max"] = sc.MaxScore
	}
	for k, sc := range s.Subgroups {
		put("subgroup:"+k, sc)
	}
	for k, sc := range s.Symptoms {
		put("symptom:"+k, sc)
	}
	for k, sc := range s.Groups {
		put("group:"+k, sc)
	}
	put("decision", s.Decision)
	put("overall", s.Overall)
	return out
}

// View is what the presentation layer renders after every mutation.
type View struct {
	SessionID           string          `json:"sessionId"`
	Answers             AnswerTree      `json:"answers"`
	Scores              ScoreTree       `json:"scores"`
	Percent             map[string]int  `json:"percent"`
	HighestCompleteStep int             `json:"highestCompleteStep"`
	FinalStep           int             `json:"finalStep"`
	Visible             map[string]bool `json:"visible"`
	Status              Status          `json:"status"`
}

// Status is the persisted lifecycle state of a session.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusComplete Status = "complete"
)

// Subject identifies the health worker being mentored.
type Subject struct {
	WorkerName   string `json:"workerName" bson:"workerName"`
	FacilityID   string `json:"facilityId" bson:"facilityId"`
	FacilityName string `json:"facilityName" bson:"facilityName"`
}

// Evaluator is supplied by the identity collaborator and never consulted by scoring.
type Evaluator struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

// Session is the persisted, flat form of a checklist.
// Fields holds scalar answers, Lists holds multi-select classifications and Scores the flattened ScoreTree.
type Session struct {
	ID        string              `json:"id" bson:"_id"`
	Date      string              `json:"date" bson:"date"`
	Subject   Subject             `json:"subject" bson:"subject"`
	Evaluator Evaluator           `json:"evaluator" bson:"evaluator"`
	Fields    map[string]string   `json:"fields" bson:"fields"`
	Lists     map[string][]string `json:"lists" bson:"lists"`
	Scores    map[string]int      `json:"scores" bson:"scores"`
	Status    Status              `json:"status" bson:"status"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}
