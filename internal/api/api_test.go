package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/richa-2701/leadpilot/internal/extract"
	"github.com/richa-2701/leadpilot/internal/flow"
	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
)

const testUserPhone = "+919999900001"

func newTestServer(t *testing.T) (*Server, *store.MemoryStore, *messaging.MockService) {
	t.Helper()
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	if err := st.CreateUser(&models.User{Username: "Ravi", Phone: testUserPhone, Role: "admin"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	router := flow.NewRouter(st, msg, extract.NewStatic())
	return NewServer(st, msg, router, "verify-me"), st, msg
}

func webhookBody(from, text string) string {
	return `{"type":"incoming","payload":{"from":"` + from + `","type":"text","text":{"body":"` + text + `"}}}`
}

func TestWebhookVerification(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	s.webhookHandler(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("body = %q, want challenge echo", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong", nil)
	w = httptest.NewRecorder()
	s.webhookHandler(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestWebhookInvalidJSON(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.webhookHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookIgnoresNonTextPayloads(t *testing.T) {
	s, _, msg := newTestServer(t)

	for _, body := range []string{
		`{"type":"status","payload":{}}`,
		`{"type":"incoming","payload":{"from":"` + testUserPhone + `","type":"image"}}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		w := httptest.NewRecorder()
		s.webhookHandler(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d for %s", w.Code, body)
		}
		if !strings.Contains(w.Body.String(), "ignored") {
			t.Errorf("body = %q", w.Body.String())
		}
	}
	if len(msg.Sent()) != 0 {
		t.Errorf("ignored payloads must not send: %+v", msg.Sent())
	}
}

func TestWebhookMissingFieldsListed(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"type":"incoming","payload":{"type":"text","text":{"body":""}}}`))
	w := httptest.NewRecorder()
	s.webhookHandler(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "payload.from") || !strings.Contains(body, "payload.text.body") {
		t.Errorf("body = %q, want both missing field names", body)
	}
}

func TestWebhookUnknownSender(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(webhookBody("+917000000000", "hi")))
	w := httptest.NewRecorder()
	s.webhookHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWebhookRoutesAndSends(t *testing.T) {
	s, _, msg := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(webhookBody(testUserPhone, "hi")))
	w := httptest.NewRecorder()
	s.webhookHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var result models.RouteResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if result.Status != "ok" || !result.Sent || result.Reply == "" {
		t.Errorf("result = %+v", result)
	}
	if len(msg.Sent()) != 1 {
		t.Errorf("sent = %+v", msg.Sent())
	}
}

func TestAppEndpointSynchronousOnly(t *testing.T) {
	s, _, msg := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/app",
		strings.NewReader(`{"user_phone":"`+testUserPhone+`","message":"hi"}`))
	w := httptest.NewRecorder()
	s.appHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp appResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Status != "ok" || resp.Reply == "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(msg.Sent()) != 0 {
		t.Errorf("app traffic must not use the transport: %+v", msg.Sent())
	}
}

func TestAppEndpointMissingFields(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/app", strings.NewReader(`{"message":""}`))
	w := httptest.NewRecorder()
	s.appHandler(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "user_phone") || !strings.Contains(body, "message") {
		t.Errorf("body = %q", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.healthHandler(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestTwilioWebhookRequiresTwilioChannel(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", nil)
	w := httptest.NewRecorder()
	s.twilioWebhookHandler(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when Twilio channel inactive", w.Code)
	}
}
