package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/helpdesk/internal/conversation"
	"github.com/coder/websocket"
)

// ChatSocketHandler carries conversation turns over a WebSocket instead of
// request/response POSTs. Each inbound JSON frame {"message": ...} is one
// turn; the reply frame mirrors the POST /ask response shape.
type ChatSocketHandler struct {
	engine        *conversation.Engine
	allowedOrigin string
	isDev         bool
}

// NewChatSocketHandler creates a new WebSocket chat handler.
func NewChatSocketHandler(engine *conversation.Engine, allowedOrigin string, isDev bool) *ChatSocketHandler {
	return &ChatSocketHandler{
		engine:        engine,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

type wsTurnRequest struct {
	Message string `json:"message"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *ChatSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		JSON(w, http.StatusBadRequest, askResponse{Reply: missingSessionIDReply})
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	slog.Info("Chat socket connected", "session_id", sessionID, "ip", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			slog.Debug("Chat socket read ended", "error", err, "session_id", sessionID)
			return
		}

		var req wsTurnRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if writeErr := h.writeJSON(ctx, ws, map[string]string{"error": "invalid message frame"}); writeErr != nil {
				return
			}
			continue
		}

		reply, history, err := h.engine.HandleTurn(ctx, sessionID, req.Message, true)
		if err != nil {
			slog.Error("Chat socket turn failed", "session_id", sessionID, "error", err)
			if writeErr := h.writeJSON(ctx, ws, map[string]string{"error": "failed to process message"}); writeErr != nil {
				return
			}
			continue
		}

		if err := h.writeJSON(ctx, ws, askResponse{Reply: reply, History: history}); err != nil {
			slog.Debug("Chat socket write failed", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *ChatSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *ChatSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	return strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(h.allowedOrigin, "/"))
}
