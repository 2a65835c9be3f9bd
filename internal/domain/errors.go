package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a checklist session has not been started or persisted.
	ErrSessionNotFound = errors.New("checklist session not found")
	// ErrSessionCompleted is returned when a mutation or draft save targets a completed session.
	ErrSessionCompleted = errors.New("checklist session already completed")
	// ErrNotOwner is returned when someone other than the owning mentor tries to edit a session.
	ErrNotOwner = errors.New("session is owned by another evaluator")
	// ErrSessionLocked is returned when the session is already open in an editor on another instance.
	ErrSessionLocked = errors.New("session is open in another editor")
	// ErrEvaluatorRequired is returned when a session is started or resumed without an evaluator email.
	ErrEvaluatorRequired = errors.New("evaluator email is required")
	// ErrSaveInFlight is returned when a save is requested while another save for the same session is running.
	ErrSaveInFlight = errors.New("a save for this session is already in flight")
	// ErrUnknownField indicates a mutation referenced a key that is not part of the checklist.
	ErrUnknownField = errors.New("unknown checklist field")
	// ErrUnknownLabel indicates a classification label outside the field's vocabulary.
	ErrUnknownLabel = errors.New("unknown classification label")
	// ErrInvalidAnswer indicates a value outside {yes, no, na, unanswered}.
	ErrInvalidAnswer = errors.New("invalid answer value")
	// ErrAnswerNotOffered indicates "na" was written to a skill that does not offer it.
	ErrAnswerNotOffered = errors.New("answer not offered for this skill")
	// ErrInvalidDecision indicates an unknown final decision.
	ErrInvalidDecision = errors.New("invalid final decision")
	// ErrIncomplete is matched by IncompleteError.
	ErrIncomplete = errors.New("checklist incomplete")
)

// IncompleteError explains why a checklist cannot be marked complete.
type IncompleteError struct {
	HighestStep  int
	FinalStep    int
	Inconsistent bool
	MissingDate  bool
}

func (e *IncompleteError) Error() string {
	var reasons []string
	if e.Inconsistent {
		reasons = append(reasons, "answers are not normalized")
	}
	if e.HighestStep < e.FinalStep {
		reasons = append(reasons, fmt.Sprintf("reached step %d of %d", e.HighestStep, e.FinalStep))
	}
	if e.MissingDate {
		reasons = append(reasons, "date is missing")
	}
	return "checklist incomplete: " + strings.Join(reasons, ", ")
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncomplete
}
