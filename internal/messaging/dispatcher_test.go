package messaging

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jalniti/waterwallet/internal/models"
)

// fakeService is an in-memory Service for dispatcher tests.
type fakeService struct {
	mu        sync.Mutex
	sent      []sentReply
	responses chan models.Response
}

type sentReply struct {
	to   string
	body string
}

func newFakeService() *fakeService {
	return &fakeService{responses: make(chan models.Response, 10)}
}

func (f *fakeService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (f *fakeService) SendMessage(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentReply{to: to, body: body})
	return nil
}

func (f *fakeService) Start(ctx context.Context) error        { return nil }
func (f *fakeService) Stop() error                            { close(f.responses); return nil }
func (f *fakeService) Responses() <-chan models.Response      { return f.responses }
func (f *fakeService) sentMessages() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentReply, len(f.sent))
	copy(out, f.sent)
	return out
}

// echoHandler replies with a fixed prefix plus the inbound text.
type echoHandler struct{ prefix string }

func (h *echoHandler) HandleIncoming(ctx context.Context, userID, text string) string {
	if text == "" {
		return ""
	}
	return h.prefix + text
}

func runDispatcher(t *testing.T, d *Dispatcher, svc *fakeService, inbound ...models.Response) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	for _, resp := range inbound {
		svc.responses <- resp
	}
	close(svc.responses)
	<-done
}

func TestDispatcherRoutesAndReplies(t *testing.T) {
	svc := newFakeService()
	d := NewDispatcher(svc, &echoHandler{prefix: "echo: "}, "")

	runDispatcher(t, d, svc, models.Response{From: "+91 98765 43210", Body: "hi"})

	sent := svc.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(sent))
	}
	if sent[0].to != "919876543210" {
		t.Errorf("reply sent to %q, want canonical number", sent[0].to)
	}
	if !strings.HasPrefix(sent[0].body, "echo: ") {
		t.Errorf("reply body = %q", sent[0].body)
	}
}

func TestDispatcherAllowListFiltersSenders(t *testing.T) {
	svc := newFakeService()
	d := NewDispatcher(svc, &echoHandler{prefix: "echo: "}, "+919876543210")

	runDispatcher(t, d, svc,
		models.Response{From: "911111111111", Body: "blocked"},
		models.Response{From: "919876543210", Body: "allowed"})

	sent := svc.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(sent))
	}
	if sent[0].body != "echo: allowed" {
		t.Errorf("reply body = %q", sent[0].body)
	}
}

func TestDispatcherDropsInvalidSenders(t *testing.T) {
	svc := newFakeService()
	d := NewDispatcher(svc, &echoHandler{prefix: "echo: "}, "")

	runDispatcher(t, d, svc, models.Response{From: "???", Body: "hi"})

	if sent := svc.sentMessages(); len(sent) != 0 {
		t.Errorf("sent %d replies for an invalid sender, want 0", len(sent))
	}
}

func TestDispatcherSkipsEmptyReplies(t *testing.T) {
	svc := newFakeService()
	d := NewDispatcher(svc, &echoHandler{prefix: "echo: "}, "")

	runDispatcher(t, d, svc, models.Response{From: "919876543210", Body: ""})

	if sent := svc.sentMessages(); len(sent) != 0 {
		t.Errorf("sent %d replies for an empty response, want 0", len(sent))
	}
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	svc := newFakeService()
	d := NewDispatcher(svc, &echoHandler{prefix: "echo: "}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on context cancel")
	}
}
