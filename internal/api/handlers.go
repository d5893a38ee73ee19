package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jalniti/waterwallet/internal/models"
)

// webhookPayload is the Meta Cloud API event envelope, reduced to the fields
// the bot consumes.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// webhookHandler serves both halves of the Meta webhook contract: the GET
// verification handshake and the POST message intake.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhook(w, r)
	case http.MethodPost:
		s.receiveWebhook(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhook answers the hub challenge used during webhook registration.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		slog.Info("Server.verifyWebhook: webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	slog.Warn("Server.verifyWebhook: verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.receiveWebhook: failed to decode payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if payload.Object != "whatsapp_business_account" {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ignored", nil))
		return
	}
	if s.enqueuer == nil {
		slog.Debug("Server.receiveWebhook: no enqueuer configured, ignoring events")
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ignored", nil))
		return
	}

	accepted := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.From == "" {
					continue
				}
				ts, err := strconv.ParseInt(msg.Timestamp, 10, 64)
				if err != nil {
					ts = time.Now().Unix()
				}
				s.enqueuer.EnqueueResponse(models.Response{
					From: msg.From,
					Body: msg.Text.Body,
					Time: ts,
				})
				accepted++
			}
		}
	}
	slog.Debug("Server.receiveWebhook: accepted messages", "count", accepted)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"accepted": accepted}))
}

// twilioWebhookHandler accepts Twilio's form-encoded inbound message webhook.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form payload"))
		return
	}
	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	if from == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing From"))
		return
	}
	if s.enqueuer == nil {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ignored", nil))
		return
	}
	s.enqueuer.EnqueueResponse(models.Response{From: from, Body: body, Time: time.Now().Unix()})
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("accepted", nil))
}

// sendRequest is the ops send payload.
type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// sendHandler lets operators push an ad-hoc message to a user.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	to, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message body cannot be empty"))
		return
	}
	if err := s.msgService.SendMessage(r.Context(), to, req.Body); err != nil {
		slog.Error("Server.sendHandler: send failed", "error", err, "to", to)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent", nil))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("WaterWallet is running", nil))
}
