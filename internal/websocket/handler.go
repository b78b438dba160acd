package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"go-freelance/internal/model"
)

type identityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (model.Identity, error)
}

// Handler performs the token-gated upgrade for GET /ws.
type Handler struct {
	hub      *Hub
	resolver identityResolver
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, resolver identityResolver, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}
	if token == "" {
		rejectHandshake(w, "Access token required")
		return
	}

	identity, err := h.resolver.ResolveIdentity(r.Context(), token)
	if err != nil {
		rejectHandshake(w, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		slog.Warn("websocket upgrade failed", "user_id", identity.ID, "error", err)
		return
	}

	client := NewClient(h.hub, conn, identity.ID)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}
	client.Start()
}

func rejectHandshake(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(model.APIResponse{Success: false, Code: "UNAUTHORIZED", Message: message})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := map[string]struct{}{}
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[strings.ToLower(origin)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil // gorilla default: same host only
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
