package messaging

import (
	"context"
	"log/slog"
)

// Handler turns one inbound message into one response text. It must never fail.
type Handler interface {
	HandleIncoming(ctx context.Context, userID, text string) string
}

// Dispatcher consumes inbound responses from a Service, applies the test
// number allow-list, routes each message through the conversation engine, and
// sends the reply back through the same Service.
type Dispatcher struct {
	svc     Service
	handler Handler
	// allow restricts processing to a single canonical test number when set.
	allow string
}

// NewDispatcher creates a dispatcher. allowNumber may be empty to allow all
// senders; otherwise only messages from that number are processed.
func NewDispatcher(svc Service, handler Handler, allowNumber string) *Dispatcher {
	allow := ""
	if allowNumber != "" {
		canonical, err := svc.ValidateAndCanonicalizeRecipient(allowNumber)
		if err != nil {
			slog.Warn("Dispatcher: invalid allow-list number, allowing all senders", "error", err)
		} else {
			allow = canonical
		}
	}
	return &Dispatcher{svc: svc, handler: handler, allow: allow}
}

// Run processes inbound messages until the context is cancelled or the
// service's response channel closes.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher running", "allow_list_set", d.allow != "")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping", "reason", ctx.Err())
			return
		case resp, ok := <-d.svc.Responses():
			if !ok {
				slog.Info("Dispatcher stopping: response channel closed")
				return
			}
			d.process(ctx, resp.From, resp.Body)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, from, body string) {
	canonical, err := d.svc.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Dispatcher: dropping message from invalid sender", "error", err, "from", from)
		return
	}
	if d.allow != "" && canonical != d.allow {
		slog.Debug("Dispatcher: sender not on allow-list, ignoring", "from", canonical)
		return
	}

	reply := d.handler.HandleIncoming(ctx, canonical, body)
	if reply == "" {
		return
	}
	if err := d.svc.SendMessage(ctx, canonical, reply); err != nil {
		slog.Error("Dispatcher: failed to send reply", "error", err, "to", canonical)
	}
}
