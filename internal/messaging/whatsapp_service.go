package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/jalniti/waterwallet/internal/models"
	"github.com/jalniti/waterwallet/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// channelTimeout bounds non-blocking channel pushes so a stalled consumer
// drops messages instead of wedging the event handler.
const channelTimeout = time.Second

// WhatsAppService implements Service using the whatsmeow-based client.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client when available, for event handling
	responses chan models.Response
	done      chan struct{}
}

// NewWhatsAppService wraps the given sender. When a full *whatsapp.Client is
// provided, inbound message events are forwarded to Responses.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	}
	return s
}

// ValidateAndCanonicalizeRecipient applies the shared phone number rules.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// SendMessage delivers a text message over WhatsApp.
func (s *WhatsAppService) SendMessage(ctx context.Context, to, body string) error {
	return s.client.SendMessage(ctx, to, body)
}

// Start registers the whatsmeow event handler, if a full client is available.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.Raw() == nil {
		slog.Debug("WhatsAppService.Start: no full client, skipping event handling")
		return nil
	}
	s.waClient.Raw().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Info("WhatsAppService started")
	return nil
}

// Stop closes the response channel.
func (s *WhatsAppService) Stop() error {
	close(s.done)
	close(s.responses)
	slog.Info("WhatsAppService stopped")
	return nil
}

// Responses returns the channel of inbound user messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		text = *evt.Message.ExtendedTextMessage.Text
	default:
		// Non-text messages (images, audio, polls) are not part of any flow.
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	resp := models.Response{
		From: evt.Info.Sender.User,
		Body: text,
		Time: evt.Info.Timestamp.Unix(),
	}

	select {
	case s.responses <- resp:
		slog.Debug("WhatsAppService forwarded inbound message", "from", resp.From)
	case <-time.After(channelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", resp.From)
	}
}
