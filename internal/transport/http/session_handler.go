package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/domain"
)

// SessionHandler serves the REST side of checklist sessions.
type SessionHandler struct {
	service *app.ChecklistService
}

func NewSessionHandler(service *app.ChecklistService) *SessionHandler {
	return &SessionHandler{service: service}
}

// StartRequest is the request body for starting a session.
type StartRequest struct {
	Subject   domain.Subject   `json:"subject"`
	Evaluator domain.Evaluator `json:"evaluator"`
	Date      string           `json:"date"`
}

// InspectResponse pairs the persisted session with its recomputed view.
type InspectResponse struct {
	Session domain.Session `json:"session"`
	View    domain.View    `json:"view"`
}

// Start handles POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	v, err := h.service.Start(r.Context(), req.Subject, req.Evaluator, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// Inspect handles GET /v1/sessions/{id}
func (h *SessionHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, v, err := h.service.Inspect(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InspectResponse{Session: session, View: v})
}

// classify maps service errors to an HTTP status and a stable code for clients.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, domain.ErrSessionCompleted):
		return http.StatusConflict, "completed"
	case errors.Is(err, domain.ErrSaveInFlight):
		return http.StatusConflict, "save_in_flight"
	case errors.Is(err, domain.ErrSessionLocked):
		return http.StatusConflict, "locked"
	case errors.Is(err, domain.ErrIncomplete):
		return http.StatusUnprocessableEntity, "incomplete"
	case errors.Is(err, domain.ErrEvaluatorRequired),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrUnknownLabel),
		errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrAnswerNotOffered),
		errors.Is(err, domain.ErrInvalidDecision):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorPayload{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
