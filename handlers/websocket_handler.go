package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are restricted by the CORS layer in front of the API.
		return true
	},
}

type WebSocketHandler struct {
	hub      *brackets.Hub
	playoffs services.PlayoffService
	logger   *slog.Logger
}

func NewWebSocketHandler(hub *brackets.Hub, playoffs services.PlayoffService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, playoffs: playoffs, logger: logger}
}

// ServeWs подключает клиента к комнате плей-офф /ws/playoffs/{playoffID}.
// Первым сообщением клиент получает текущий снимок сетки.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	playoffID, err := urlParam(r, "playoffID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.playoffs.Get(r.Context(), playoffID)
	if err != nil {
		responder{logger: h.logger}.mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("playoff_id", playoffID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: brackets.RoomFor(playoffID),
	}
	if snapshot, err := json.Marshal(brackets.WebSocketMessage{Type: brackets.MessageBracketUpdated, Payload: p, RoomID: client.Room}); err == nil {
		client.Send <- snapshot
	}
	if !client.Hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client joined", slog.String("room", client.Room))
}
