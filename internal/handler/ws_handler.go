package handler

import (
	"net/http"

	"taskspace/internal/domain"
	"taskspace/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	session  SessionStore
	logger   zerolog.Logger
	upgrader ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager, session SessionStore, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		session: session,
		logger:  logger.With().Str("component", "ws_handler").Logger(),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection streams state snapshots to the caller. A token query
// parameter signs the user in before upgrading.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var user *domain.User
	if token := r.URL.Query().Get("token"); token != "" {
		signed, err := h.session.Login(token)
		if err != nil {
			h.logger.Warn().Err(err).Msg("token validation failed")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		user = signed
	} else {
		user = h.session.CurrentUser()
	}

	if user == nil {
		http.Error(w, "not signed in", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := websocket.NewClient(uuid.New().String(), conn, h.manager)
	h.logger.Debug().Str("client_id", client.ID).Str("user_id", user.ID).Msg("connection upgraded")

	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
