package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arena-server/internal/models"
)

// Client is one WebSocket spectator watching a single game.
type Client struct {
	GameID uuid.UUID
	Conn   *websocket.Conn
	send   chan []byte
}

type targetedMessage struct {
	gameID  uuid.UUID
	payload []byte
}

// ConnectionManager tracks spectator connections per game and fans turn
// updates out to them. It satisfies messaging.ClientUpdatePublisher so it can
// sit next to the queue publisher in the service wiring.
type ConnectionManager struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan targetedMessage
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewConnectionManager creates and starts a connection manager.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan targetedMessage, 64),
		logger:     logger.Named("ConnectionManager"),
	}
	go m.run()
	return m
}

func (m *ConnectionManager) run() {
	m.logger.Info("ConnectionManager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			if m.clients[client.GameID] == nil {
				m.clients[client.GameID] = make(map[*Client]struct{})
			}
			m.clients[client.GameID][client] = struct{}{}
			m.mu.Unlock()
			m.logger.Debug("Spectator registered", zap.String("gameID", client.GameID.String()))

		case client := <-m.unregister:
			m.mu.Lock()
			if watchers, ok := m.clients[client.GameID]; ok {
				if _, ok := watchers[client]; ok {
					delete(watchers, client)
					close(client.send)
					if len(watchers) == 0 {
						delete(m.clients, client.GameID)
					}
				}
			}
			m.mu.Unlock()
			m.logger.Debug("Spectator unregistered", zap.String("gameID", client.GameID.String()))

		case msg := <-m.broadcast:
			m.mu.RLock()
			for client := range m.clients[msg.gameID] {
				select {
				case client.send <- msg.payload:
				default:
					m.logger.Warn("Spectator send queue full, dropping update",
						zap.String("gameID", msg.gameID.String()))
				}
			}
			m.mu.RUnlock()
		}
	}
}

// RegisterClient adds a spectator connection.
func (m *ConnectionManager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a spectator connection.
func (m *ConnectionManager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// WatcherCount returns how many spectators are attached to the game.
func (m *ConnectionManager) WatcherCount(gameID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[gameID])
}

// PublishTurnUpdate broadcasts a turn update to every spectator of the game.
func (m *ConnectionManager) PublishTurnUpdate(ctx context.Context, payload models.TurnUpdate) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal turn update: %w", err)
	}
	select {
	case m.broadcast <- targetedMessage{gameID: payload.GameID, payload: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
