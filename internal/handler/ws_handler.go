package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second
	// Send pings to the client with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from the client.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades spectator connections. Spectating is read-only:
// clients pick a game via the game_id query parameter and receive its turn
// updates as they are produced.
type WebSocketHandler struct {
	manager *ConnectionManager
	logger  *zap.Logger
}

func NewWebSocketHandler(manager *ConnectionManager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		logger:  logger.Named("WebSocketHandler"),
	}
}

// ServeWS handles the HTTP upgrade request for a spectator connection.
func (h *WebSocketHandler) ServeWS(c echo.Context) error {
	gameIDStr := c.QueryParam("game_id")
	gameID, err := uuid.Parse(gameIDStr)
	if err != nil {
		h.logger.Warn("Invalid game_id on WebSocket upgrade", zap.String("game_id", gameIDStr))
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid or missing 'game_id' parameter"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already wrote the error response.
		h.logger.Error("Failed to upgrade connection", zap.String("gameID", gameID.String()), zap.Error(err))
		return nil
	}
	h.logger.Info("Spectator connected", zap.String("gameID", gameID.String()))

	client := &Client{
		GameID: gameID,
		Conn:   conn,
		send:   make(chan []byte, 256),
	}
	h.manager.RegisterClient(client)

	logger := h.logger.With(zap.String("gameID", gameID.String()))
	go client.writePump(logger)
	go client.readPump(h.manager, logger)
	return nil
}

// readPump drains the connection. Spectators are not expected to send
// anything; the read loop exists to detect disconnects and answer pings.
func (c *Client) readPump(manager *ConnectionManager, logger *zap.Logger) {
	defer func() {
		manager.UnregisterClient(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			} else {
				logger.Info("WebSocket connection closed")
			}
			break
		}
		logger.Warn("Ignoring unexpected message from spectator", zap.Int("bytes", len(message)))
	}
}

// writePump forwards queued updates to the connection and keeps it alive with
// pings.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
