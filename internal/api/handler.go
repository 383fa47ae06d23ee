// Package api provides HTTP handlers for the helpdesk assistant.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/helpdesk/internal/conversation"
	"github.com/ashureev/helpdesk/internal/domain"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// missingSessionIDReply is the fixed body returned when sessionId is absent.
const missingSessionIDReply = "Error: Missing session ID."

// Handler serves the conversational endpoints.
type Handler struct {
	engine      *conversation.Engine
	limiter     *RateLimiter
	maxBodySize int64
}

// NewHandler creates a Handler. limiter may be nil to disable rate limiting;
// maxBodySize <= 0 selects the default cap.
func NewHandler(engine *conversation.Engine, limiter *RateLimiter, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{
		engine:      engine,
		limiter:     limiter,
		maxBodySize: maxBodySize,
	}
}

// askRequest is the POST /ask body. Message is a pointer so an absent message
// (valid on first contact) is distinguishable from an empty one.
type askRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"sessionId"`
}

type askResponse struct {
	Reply   string           `json:"reply"`
	History []domain.Message `json:"history,omitempty"`
}

// Ask handles POST /ask: one conversation turn.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" {
		JSON(w, http.StatusBadRequest, askResponse{Reply: missingSessionIDReply})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(req.SessionID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	message := ""
	hasMessage := req.Message != nil
	if hasMessage {
		message = *req.Message
	}

	reply, history, err := h.engine.HandleTurn(r.Context(), req.SessionID, message, hasMessage)
	if err != nil {
		if errors.Is(err, conversation.ErrMissingSessionID) {
			JSON(w, http.StatusBadRequest, askResponse{Reply: missingSessionIDReply})
			return
		}
		slog.Error("Turn failed", "session_id", req.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, askResponse{Reply: reply, History: history})
}

// GetSession handles GET /api/session: a read-only view of an existing
// session, used by the frontend to restore a conversation after reload.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		JSON(w, http.StatusBadRequest, askResponse{Reply: missingSessionIDReply})
		return
	}

	session, err := h.engine.Lookup(r.Context(), sessionID)
	if err != nil {
		slog.Error("Session lookup failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":     session.ID,
		"stage":         session.Stage,
		"ticketCreated": session.TicketCreated,
		"history":       session.History,
	})
}

// RegisterRoutes registers the conversational routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.Ask)
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.GetSession)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
