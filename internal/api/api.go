// Package api provides the HTTP surface of WaterWallet: the WhatsApp webhook
// (verification handshake and message intake), a health endpoint, and an ops
// endpoint for sending ad-hoc messages.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jalniti/waterwallet/internal/messaging"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Server hosts the webhook and ops endpoints.
type Server struct {
	addr        string
	verifyToken string
	msgService  messaging.Service
	// enqueuer receives webhook-delivered inbound messages. Nil for transports
	// with a live connection (whatsmeow), where the webhook only verifies.
	enqueuer   messaging.ResponseEnqueuer
	httpServer *http.Server
}

// Opts holds server configuration.
type Opts struct {
	Addr        string
	VerifyToken string
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// NewServer creates the API server. enqueuer may be nil when the active
// transport does not receive messages over HTTP.
func NewServer(msgService messaging.Service, enqueuer messaging.ResponseEnqueuer, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		msgService:  msgService,
		enqueuer:    enqueuer,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/webhook/twilio", s.twilioWebhookHandler)
	mux.HandleFunc("/send", s.sendHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	}
}
