package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jalniti/waterwallet/internal/models"
)

// mockMessagingService records sends and collects enqueued inbound messages.
type mockMessagingService struct {
	sent     []sentMessage
	enqueued []models.Response
	sendErr  error
}

type sentMessage struct {
	to   string
	body string
}

func (m *mockMessagingService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, recipient)
	if len(digits) < 6 {
		return "", fmt.Errorf("invalid phone number: %s", recipient)
	}
	return digits, nil
}

func (m *mockMessagingService) SendMessage(ctx context.Context, to, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{to: to, body: body})
	return nil
}

func (m *mockMessagingService) Start(ctx context.Context) error { return nil }
func (m *mockMessagingService) Stop() error                     { return nil }
func (m *mockMessagingService) Responses() <-chan models.Response {
	return make(chan models.Response)
}
func (m *mockMessagingService) EnqueueResponse(resp models.Response) {
	m.enqueued = append(m.enqueued, resp)
}

func newTestServer(verifyToken string) (*Server, *mockMessagingService) {
	mock := &mockMessagingService{}
	return NewServer(mock, mock, WithVerifyToken(verifyToken)), mock
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response envelope: %v (body %q)", err, rec.Body.String())
	}
	return envelope
}

func TestVerifyWebhookHandshake(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("body = %q, want the challenge echoed back", rec.Body.String())
	}
}

func TestVerifyWebhookRejectsBadToken(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	for _, target := range []string{
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345",
		"/webhook?hub.mode=other&hub.verify_token=secret-token&hub.challenge=12345",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", target, rec.Code)
		}
	}
}

func TestVerifyWebhookRejectsWhenTokenUnset(t *testing.T) {
	// An empty configured token must never verify, even against an empty input.
	server, _ := newTestServer("")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestReceiveWebhookEnqueuesMessages(t *testing.T) {
	server, mock := newTestServer("secret-token")
	handler := server.Handler()

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "919876543210", "timestamp": "1750000000", "text": {"body": "hi"}},
			{"from": "919876543211", "timestamp": "bogus", "text": {"body": "menu"}}
		]}}]}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if len(mock.enqueued) != 2 {
		t.Fatalf("enqueued %d messages, want 2", len(mock.enqueued))
	}
	if mock.enqueued[0].From != "919876543210" || mock.enqueued[0].Body != "hi" {
		t.Errorf("first message = %+v", mock.enqueued[0])
	}
	if mock.enqueued[0].Time != 1750000000 {
		t.Errorf("first message time = %d, want 1750000000", mock.enqueued[0].Time)
	}
	// Unparseable timestamps fall back to "now" rather than dropping the message.
	if mock.enqueued[1].Time == 0 {
		t.Error("second message time not defaulted")
	}
}

func TestReceiveWebhookIgnoresOtherObjects(t *testing.T) {
	server, mock := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"object": "instagram", "entry": []}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(mock.enqueued) != 0 {
		t.Errorf("enqueued %d messages from a foreign object", len(mock.enqueued))
	}
}

func TestReceiveWebhookRejectsBadJSON(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Status != models.APIStatusError {
		t.Errorf("envelope status = %q, want error", env.Status)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestTwilioWebhookEnqueuesMessage(t *testing.T) {
	server, mock := newTestServer("secret-token")
	handler := server.Handler()

	form := "From=whatsapp%3A%2B919876543210&Body=hi"
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if len(mock.enqueued) != 1 {
		t.Fatalf("enqueued %d messages, want 1", len(mock.enqueued))
	}
	if mock.enqueued[0].From != "+919876543210" || mock.enqueued[0].Body != "hi" {
		t.Errorf("message = %+v", mock.enqueued[0])
	}
}

func TestTwilioWebhookRequiresFrom(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader("Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSendHandler(t *testing.T) {
	server, mock := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/send",
		strings.NewReader(`{"to": "+91 98765 43210", "body": "hello"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if len(mock.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mock.sent))
	}
	if mock.sent[0].to != "919876543210" || mock.sent[0].body != "hello" {
		t.Errorf("sent = %+v", mock.sent[0])
	}
}

func TestSendHandlerValidation(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{nope`},
		{"invalid recipient", `{"to": "123", "body": "hello"}`},
		{"empty body", `{"to": "919876543210", "body": "   "}`},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestSendHandlerMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer("secret-token")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/send", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	server, _ := newTestServer("")
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Status != models.APIStatusOK {
		t.Errorf("envelope status = %q, want ok", env.Status)
	}
}
