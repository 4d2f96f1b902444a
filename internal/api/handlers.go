package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
)

// webhookRequest is the chat-bridge payload delivered to POST /webhook.
type webhookRequest struct {
	Type    string         `json:"type"`
	Payload webhookMessage `json:"payload"`
}

type webhookMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// appRequest is the companion-app payload delivered to POST /app.
type appRequest struct {
	UserPhone string `json:"user_phone"`
	Message   string `json:"message"`
}

// appResponse is the synchronous reply envelope for app traffic.
type appResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// webhookHandler serves the chat-bridge: GET for subscription verification,
// POST for inbound messages.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
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

// verifyWebhook echoes the challenge when the verify token matches.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if s.verifyToken != "" {
		if mode != "subscribe" || token != s.verifyToken {
			slog.Warn("Server.verifyWebhook: verification failed", "mode", mode)
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	if challenge != "" {
		fmt.Fprint(w, challenge)
		return
	}
	fmt.Fprint(w, "OK")
}

func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.receiveWebhook: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	// Delivery receipts, status callbacks, and media messages are
	// acknowledged without routing.
	if req.Type != "incoming" || (req.Payload.Type != "" && req.Payload.Type != "text") {
		slog.Debug("Server.receiveWebhook: ignoring non-text payload", "type", req.Type, "payload_type", req.Payload.Type)
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "ignored"}))
		return
	}

	var missing []string
	if strings.TrimSpace(req.Payload.From) == "" {
		missing = append(missing, "payload.from")
	}
	if strings.TrimSpace(req.Payload.Text.Body) == "" {
		missing = append(missing, "payload.text.body")
	}
	if len(missing) > 0 {
		slog.Warn("Server.receiveWebhook: missing fields", "missing", missing)
		writeJSONResponse(w, http.StatusUnprocessableEntity,
			models.Error("Missing required fields: "+strings.Join(missing, ", ")))
		return
	}

	result := s.router.Route(r.Context(), models.InboundMessage{
		Sender:      req.Payload.From,
		Text:        req.Payload.Text.Body,
		ReplyTarget: req.Payload.From,
		Source:      models.SourceWhatsApp,
		ReceivedAt:  time.Now(),
	})
	if result.Status == "denied" {
		writeJSONResponse(w, http.StatusNotFound, models.Error(result.Reply))
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// appHandler routes messages from the companion app and answers
// synchronously without touching the messaging transport.
func (s *Server) appHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req appRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.appHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	var missing []string
	if strings.TrimSpace(req.UserPhone) == "" {
		missing = append(missing, "user_phone")
	}
	if strings.TrimSpace(req.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		writeJSONResponse(w, http.StatusUnprocessableEntity,
			models.Error("Missing required fields: "+strings.Join(missing, ", ")))
		return
	}

	result := s.router.Route(r.Context(), models.InboundMessage{
		Sender:     req.UserPhone,
		Text:       req.Message,
		Source:     models.SourceApp,
		ReceivedAt: time.Now(),
	})
	if result.Status == "denied" {
		writeJSONResponse(w, http.StatusNotFound, models.Error(result.Reply))
		return
	}
	writeJSONResponse(w, http.StatusOK, appResponse{Status: result.Status, Reply: result.Reply})
}

// twilioWebhookHandler forwards Twilio form callbacks into the messaging
// service's response loop. Only available when the Twilio channel is active.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	twilioSvc, ok := s.msgService.(*messaging.TwilioService)
	if !ok {
		slog.Warn("Server.twilioWebhookHandler: Twilio channel not active")
		w.WriteHeader(http.StatusNotFound)
		return
	}
	twilioSvc.WebhookHandler(w, r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
