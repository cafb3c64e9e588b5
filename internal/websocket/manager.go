package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager fans state messages out to every connected client.
type Manager struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	maxConn    int
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	logger     zerolog.Logger
	done       chan struct{}
	// latest keeps the last message of each type so new clients start from
	// the current state.
	latest map[MessageType][]byte
}

func NewManager(maxConn int, writeWait, pongWait, pingPeriod time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		maxConn:    maxConn,
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		logger:     logger.With().Str("component", "websocket").Logger(),
		done:       make(chan struct{}),
		latest:     make(map[MessageType][]byte),
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.Register:
			m.registerClient(client)
		case client := <-m.Unregister:
			m.unregisterClient(client)
		case <-m.done:
			m.closeAll()
			return
		}
	}
}

func (m *Manager) Stop() {
	close(m.done)
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxConn > 0 && len(m.clients) >= m.maxConn {
		m.logger.Warn().Int("max", m.maxConn).Msg("max connections reached")
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	for _, msg := range m.latest {
		select {
		case client.Send <- msg:
		default:
		}
	}

	m.logger.Debug().Str("client_id", client.ID).Msg("client registered")
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		close(client.Send)
		m.logger.Debug().Str("client_id", client.ID).Msg("client unregistered")
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clients {
		delete(m.clients, id)
		close(client.Send)
	}
}

// Broadcast sends msg to every client. Clients whose buffer is full are
// dropped.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.latest[message.Type] = messageBytes
	var slow []*Client
	for id, client := range m.clients {
		select {
		case client.Send <- messageBytes:
		default:
			m.logger.Warn().Str("client_id", id).Msg("send buffer full, closing connection")
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		delete(m.clients, client.ID)
		close(client.Send)
	}
	m.mu.Unlock()

	return nil
}

// Publish wraps payload in a message of msgType and broadcasts it.
func (m *Manager) Publish(msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		m.logger.Error().Err(err).Str("type", string(msgType)).Msg("failed to encode message")
		return
	}
	m.Broadcast(msg)
}

func (m *Manager) Connections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
