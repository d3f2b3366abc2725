package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/video-tournament/live"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: ограничить Origin списком доверенных доменов перед продом.
		return true
	},
}

type WebSocketHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs подключает клиента к комнате турнира /ws/tournaments/{id}.
// Канал односторонний: клиент только получает события.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "id")
	if tournamentID == "" {
		http.Error(w, "Missing tournament id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection",
			slog.String("tournament_id", tournamentID),
			slog.Any("error", err),
		)
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: tournamentID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
