// Package messaging provides the pluggable message delivery abstraction for
// WaterWallet and the dispatcher that feeds inbound messages to the
// conversation engine.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jalniti/waterwallet/internal/models"
)

// DefaultChannelBufferSize is the buffer size for inbound response channels.
const DefaultChannelBufferSize = 100

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service is a pluggable message delivery abstraction. Implementations exist
// for whatsmeow, the Meta Cloud API, and Twilio.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates a recipient identifier and
	// returns its canonical form (bare digits).
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to, body string) error

	// Start begins any background processing (e.g. event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and releases resources.
	Stop() error

	// Responses returns the channel of inbound user messages.
	Responses() <-chan models.Response
}

// ResponseEnqueuer is implemented by services whose inbound messages arrive
// through an HTTP webhook rather than a live connection.
type ResponseEnqueuer interface {
	EnqueueResponse(resp models.Response)
}

// canonicalizePhone strips everything except digits and validates length.
// All Service implementations share the same recipient rules.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits)", canonical)
	}
	if canonical != recipient {
		slog.Debug("messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
