package checklist

import (
	"log"
	"regexp"
	"strings"

	"imnci-mentorship/internal/domain"
)

// Relevance decides whether a node currently counts toward visibility and scoring.
// The variants are Always, FieldEquals, Predicate and Unparsed.
type Relevance interface {
	isRelevance()
}

// Always is the default for nodes without a condition.
type Always struct{}

// FieldEquals holds when the named variable equals Value. Variables resolve through AnswerTree.Lookup.
type FieldEquals struct {
	Field string
	Value string
}

// Predicate is an arbitrary pure function over the answer tree.
type Predicate struct {
	Name string
	Fn   func(domain.AnswerTree) bool
}

// Unparsed is an expression that could not be understood. It evaluates as relevant.
type Unparsed struct {
	Expr string
}

func (Always) isRelevance()      {}
func (FieldEquals) isRelevance() {}
func (Predicate) isRelevance()   {}
func (Unparsed) isRelevance()    {}

var fieldEqualsExpr = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*===?\s*(?:'([^']*)'|"([^"]*)"|([A-Za-z0-9_\-]+))$`)

// ParseRelevance turns a "variable == 'literal'" expression into FieldEquals.
// An empty expression is Always; anything else is Unparsed and logged.
func ParseRelevance(expr string) Relevance {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always{}
	}
	m := fieldEqualsExpr.FindStringSubmatch(expr)
	if m == nil {
		log.Printf("relevance: cannot parse %q, treating as always relevant", expr)
		return Unparsed{Expr: expr}
	}
	return FieldEquals{Field: m[1], Value: m[2] + m[3] + m[4]}
}

// Evaluate applies r to the tree. A nil Relevance is Always.
func Evaluate(r Relevance, t domain.AnswerTree) bool {
	switch v := r.(type) {
	case nil, Always:
		return true
	case FieldEquals:
		got, _ := t.Lookup(v.Field)
		return got == v.Value
	case Predicate:
		if v.Fn == nil {
			return true
		}
		return v.Fn(t)
	case Unparsed:
		return true
	default:
		log.Printf("relevance: unknown variant %T, treating as always relevant", r)
		return true
	}
}

// SubgroupRelevant reports whether a subgroup currently counts.
func (e *Engine) SubgroupRelevant(sg *Subgroup, t domain.AnswerTree) bool {
	return Evaluate(sg.Relevant, t)
}

// SkillRelevant reports whether a plain skill currently counts: its subgroup and its own condition must hold.
// Symptom chain keys are governed by the chain rules instead; see chainRelevant.
func (e *Engine) SkillRelevant(key string, t domain.AnswerTree) bool {
	ref, ok := e.def.skills[key]
	if !ok {
		return false
	}
	if ref.skill == nil {
		return e.chainRelevant(ref, key, t)
	}
	return e.SubgroupRelevant(ref.subgroup, t) && Evaluate(ref.skill.Relevant, t)
}

func (e *Engine) chainRelevant(ref skillRef, key string, t domain.AnswerTree) bool {
	sym := e.def.symptoms[ref.symptom]
	entries := sym.subgroup.Symptoms
	entry := entries[sym.index]
	switch key {
	case entry.AskKey():
		var prev *SymptomEntry
		if sym.index > 0 {
			prev = &entries[sym.index-1]
		}
		return askOpen(prev, t)
	case entry.ConfirmKey():
		return t.Assessment[entry.AskKey()] == domain.Yes
	default:
		return confirmed(entry, t)
	}
}

// askOpen reports whether a symptom's ask question is reachable: the previous symptom's ask must be answered.
func askOpen(prev *SymptomEntry, t domain.AnswerTree) bool {
	return prev == nil || t.Assessment[prev.AskKey()].Answered()
}

// confirmed reports whether the check/classify links of a chain are live.
func confirmed(entry SymptomEntry, t domain.AnswerTree) bool {
	return t.Assessment[entry.AskKey()] == domain.Yes && t.Assessment[entry.ConfirmKey()] == domain.Yes
}

// ClassificationRelevant reports whether a classification field may hold a value.
func (e *Engine) ClassificationRelevant(field string, t domain.AnswerTree) bool {
	ref, ok := e.def.classifications[field]
	if !ok {
		return false
	}
	if sym, ok := e.def.symptoms[ref.prefix]; ok {
		entry := sym.subgroup.Symptoms[sym.index]
		if !confirmed(entry, t) {
			return false
		}
		return !ref.supervisor || t.Assessment[entry.ClassifyKey()] == domain.No
	}
	owner, ok := e.def.skills[ClassifyKey(ref.prefix)]
	if !ok || !e.SubgroupRelevant(owner.subgroup, t) {
		return false
	}
	return !ref.supervisor || t.Assessment[ClassifyKey(ref.prefix)] == domain.No
}
