package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jalniti/waterwallet/internal/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioService implements Service using Twilio's WhatsApp API. Inbound
// messages arrive through Twilio's webhook and are enqueued via
// EnqueueResponse.
type TwilioService struct {
	client    *twilio.RestClient
	fromWhats string // "whatsapp:+1234567890"
	responses chan models.Response
}

// NewTwilioService creates a Twilio-backed delivery service.
func NewTwilioService(accountSID, authToken, fromNumber string) (*TwilioService, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio account SID and auth token must be provided")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("twilio from number must be provided")
	}
	if !strings.HasPrefix(fromNumber, "whatsapp:") {
		fromNumber = "whatsapp:" + fromNumber
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioService{
		client:    client,
		fromWhats: fromNumber,
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}, nil
}

// ValidateAndCanonicalizeRecipient applies the shared phone number rules.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage delivers a text message over Twilio WhatsApp.
func (s *TwilioService) SendMessage(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + to)
	params.SetFrom(s.fromWhats)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioService send failed", "error", err, "to", to)
		return fmt.Errorf("twilio send failed: %w", err)
	}
	slog.Debug("TwilioService message queued", "to", to)
	return nil
}

// Start is a no-op: inbound messages arrive through the webhook.
func (s *TwilioService) Start(ctx context.Context) error { return nil }

// Stop closes the response channel.
func (s *TwilioService) Stop() error {
	close(s.responses)
	return nil
}

// Responses returns the channel of inbound user messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// EnqueueResponse feeds one webhook-delivered inbound message into Responses.
func (s *TwilioService) EnqueueResponse(resp models.Response) {
	select {
	case s.responses <- resp:
	case <-time.After(channelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", resp.From)
	}
}
