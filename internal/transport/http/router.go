package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"imnci-mentorship/internal/app"
)

// NewRouter creates the API router with all endpoints.
func NewRouter(service *app.ChecklistService) http.Handler {
	r := mux.NewRouter()

	sessions := NewSessionHandler(service)
	ws := NewWSHandler(service)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", sessions.Start).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", sessions.Inspect).Methods(http.MethodGet)

	return r
}
