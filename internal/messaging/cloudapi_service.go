package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jalniti/waterwallet/internal/models"
)

// Meta Cloud API defaults.
const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	DefaultAPIVersion   = "v17.0"
)

// CloudAPIService implements Service using the Meta WhatsApp Cloud API.
// Outbound messages go to graph.facebook.com; inbound messages arrive through
// the webhook endpoint and are enqueued via EnqueueResponse. When credentials
// are missing the service runs in mock mode and logs sends instead of
// delivering them, which keeps local development possible without a Meta app.
type CloudAPIService struct {
	accessToken   string
	phoneNumberID string
	apiVersion    string
	baseURL       string
	httpClient    *http.Client
	responses     chan models.Response
}

// CloudAPIOption configures the Cloud API service.
type CloudAPIOption func(*CloudAPIService)

// WithGraphBaseURL overrides the Graph API base URL (for tests).
func WithGraphBaseURL(u string) CloudAPIOption {
	return func(s *CloudAPIService) { s.baseURL = u }
}

// WithAPIVersion overrides the Graph API version.
func WithAPIVersion(v string) CloudAPIOption {
	return func(s *CloudAPIService) {
		if v != "" {
			s.apiVersion = v
		}
	}
}

// NewCloudAPIService creates a Cloud API delivery service. Empty credentials
// select mock mode.
func NewCloudAPIService(accessToken, phoneNumberID string, opts ...CloudAPIOption) *CloudAPIService {
	s := &CloudAPIService{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		apiVersion:    DefaultAPIVersion,
		baseURL:       DefaultGraphBaseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		responses:     make(chan models.Response, DefaultChannelBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.credentialsReady() {
		slog.Warn("CloudAPIService: credentials missing, running in mock mode (sends are logged, not delivered)")
	}
	return s
}

func (s *CloudAPIService) credentialsReady() bool {
	return s.accessToken != "" && s.phoneNumberID != ""
}

// ValidateAndCanonicalizeRecipient applies the shared phone number rules.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage posts a text message to the Cloud API, or logs it in mock mode.
func (s *CloudAPIService) SendMessage(ctx context.Context, to, body string) error {
	if !s.credentialsReady() {
		slog.Info("CloudAPIService mock outgoing message", "to", to, "body", body)
		return nil
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud api send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("CloudAPIService send rejected", "status", resp.StatusCode, "response", string(respBody))
		return fmt.Errorf("cloud api send failed: status %d", resp.StatusCode)
	}
	slog.Debug("CloudAPIService message queued", "to", to)
	return nil
}

// Start is a no-op: inbound messages arrive through the webhook.
func (s *CloudAPIService) Start(ctx context.Context) error { return nil }

// Stop closes the response channel.
func (s *CloudAPIService) Stop() error {
	close(s.responses)
	return nil
}

// Responses returns the channel of inbound user messages.
func (s *CloudAPIService) Responses() <-chan models.Response {
	return s.responses
}

// EnqueueResponse feeds one webhook-delivered inbound message into Responses.
func (s *CloudAPIService) EnqueueResponse(resp models.Response) {
	select {
	case s.responses <- resp:
	case <-time.After(channelTimeout):
		slog.Warn("CloudAPIService responses channel blocked, dropping message", "from", resp.From)
	}
}
