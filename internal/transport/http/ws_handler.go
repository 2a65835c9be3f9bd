package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/domain"
)

type WSHandler struct {
	service  *app.ChecklistService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ChecklistService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Key   string        `json:"key"`
	Value domain.Answer `json:"value"`
}

type classificationPayload struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

type valuePayload struct {
	Value string `json:"value"`
}

type savedPayload struct {
	ID     string        `json:"id"`
	Status domain.Status `json:"status"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	_, code := classify(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the checklist editing use cases.
// Every accepted mutation reaches the client as a "state" message through the session subscription.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	email := r.URL.Query().Get("email")
	if sessionID == "" || email == "" {
		http.Error(w, "missing sessionId or email", http.StatusBadRequest)
		return
	}
	evaluator := domain.Evaluator{Name: r.URL.Query().Get("name"), Email: email}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if _, err := h.service.Resume(ctx, sessionID, evaluator); err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(r, sessionID, evaluator.Email, inbound); ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	cancel()
	h.service.Leave(ctx, sessionID, evaluator.Email)
	close(send)
	<-writerDone
}

// handle applies one inbound message. It returns a reply only for saves and failures; state changes
// arrive through the subscription.
func (h *WSHandler) handle(r *http.Request, sessionID, actor string, inbound inboundMessage) (outboundMessage[any], bool) {
	ctx := r.Context()
	invalid := func() (outboundMessage[any], bool) {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid " + inbound.Type + " payload"}}, true
	}

	var err error
	switch inbound.Type {
	case "answer":
		var p answerPayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return invalid()
		}
		_, err = h.service.SetAnswer(ctx, sessionID, actor, p.Key, p.Value)
	case "classification":
		var p classificationPayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return invalid()
		}
		_, err = h.service.SetClassification(ctx, sessionID, actor, p.Field, p.Label, p.Selected)
	case "decision":
		var p valuePayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return invalid()
		}
		_, err = h.service.SetDecision(ctx, sessionID, actor, domain.Decision(p.Value))
	case "date":
		var p valuePayload
		if json.Unmarshal(inbound.Payload, &p) != nil {
			return invalid()
		}
		_, err = h.service.SetDate(ctx, sessionID, actor, p.Value)
	case "saveDraft", "complete":
		status, save := domain.StatusDraft, h.service.SaveDraft
		if inbound.Type == "complete" {
			status, save = domain.StatusComplete, h.service.Complete
		}
		id, err := save(ctx, sessionID, actor)
		if err != nil {
			return errorMessage(err), true
		}
		return outboundMessage[any]{Type: "saved", Payload: savedPayload{ID: id, Status: status}}, true
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}, true
	}
	if err != nil {
		return errorMessage(err), true
	}
	return outboundMessage[any]{}, false
}
