package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"imnci-mentorship/internal/app"
	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/domain"
	"imnci-mentorship/internal/infra/memory"
)

const mentor = "mentor@example.org"

func TestWebSocketEditingFlow(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	id := startSession(t, server)
	conn := dial(t, server, id, mentor)
	defer conn.Close()

	typ, payload := readNext(conn, t, "state")
	if payload["sessionId"] != id {
		t.Fatalf("expected initial state for %s, got %v", id, payload["sessionId"])
	}

	send(t, conn, "answer", map[string]any{"key": "measure_weight", "value": "yes"})
	_, payload = readNext(conn, t, "state")
	answers := payload["answers"].(map[string]any)
	if answers["assessment"].(map[string]any)["measure_weight"] != "yes" {
		t.Fatalf("expected measure_weight answered, got %v", answers)
	}

	send(t, conn, "answer", map[string]any{"key": "measure_weight", "value": "na"})
	typ, payload = readNext(conn, t, "error")
	if payload["code"] != "bad_request" {
		t.Fatalf("expected bad_request for %s, got %v", typ, payload)
	}

	send(t, conn, "classification", map[string]any{"field": checklist.WorkerField("anemia"), "label": checklist.Anemia, "selected": true})
	readNext(conn, t, "state")

	send(t, conn, "saveDraft", nil)
	_, payload = readNext(conn, t, "saved")
	if payload["id"] != id || payload["status"] != string(domain.StatusDraft) {
		t.Fatalf("unexpected saved payload %v", payload)
	}

	send(t, conn, "complete", nil)
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "incomplete" {
		t.Fatalf("expected incomplete, got %v", payload)
	}

	resp, err := http.Get(server.URL + "/v1/sessions/" + id)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var inspected InspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&inspected); err != nil {
		t.Fatalf("decode inspect: %v", err)
	}
	if inspected.Session.Fields["assessment:measure_weight"] != "yes" || inspected.View.Status != domain.StatusDraft {
		t.Fatalf("unexpected inspected session %+v", inspected.Session)
	}
}

func TestWebSocketRejectsOtherEvaluator(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	id := startSession(t, server)
	conn := dial(t, server, id, "intruder@example.org")
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["code"] != "not_owner" {
		t.Fatalf("expected not_owner, got %v", payload)
	}
}

func TestWebSocketRequiresQuery(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws?sessionId=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRESTErrors(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/sessions/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body, _ := json.Marshal(StartRequest{Date: "2024-05-01"})
	resp, err = http.Post(server.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without evaluator, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}
}

func newTestServer() *httptest.Server {
	service := app.NewChecklistService(checklist.NewEngine(checklist.IMNCI()), memory.NewEditorStore(), memory.NewSessionStore())
	return httptest.NewServer(NewRouter(service))
}

func startSession(t *testing.T, server *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(StartRequest{
		Subject:   domain.Subject{WorkerName: "Amna", FacilityID: "fac-7"},
		Evaluator: domain.Evaluator{Name: "Mentor", Email: mentor},
		Date:      "2024-05-01",
	})
	resp, err := http.Post(server.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var v domain.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v.SessionID
}

func dial(t *testing.T, server *httptest.Server, id, email string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + id + "&email=" + email + "&name=Mentor"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}
