// Package realtime holds live connections and delivers chat events to them.
// Delivery is best effort: a full client buffer drops the event and the
// client recovers by polling the REST history.
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"cargodesk-backend/internal/metrics"
	"cargodesk-backend/internal/model"

	"github.com/gofiber/contrib/websocket"
)

const sendBuffer = 256

type Client struct {
	Conn     *websocket.Conn
	Identity model.Identity
	Send     chan []byte

	rooms map[string]bool
}

func NewClient(conn *websocket.Conn, identity model.Identity) *Client {
	return &Client{
		Conn:     conn,
		Identity: identity,
		Send:     make(chan []byte, sendBuffer),
		rooms:    make(map[string]bool),
	}
}

type scope string

const (
	scopeChat scope = "chat"
	scopeUser scope = "user"
	scopeAll  scope = "all"
)

// envelope is one routed event, local or relayed between instances.
type envelope struct {
	Scope        scope          `json:"scope"`
	ChatID       string         `json:"chat_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Participants []string       `json:"participants,omitempty"`
	Event        *model.WSEvent `json:"event"`
}

// Hub tracks connections per user and per chat room on this instance.
type Hub struct {
	clients    map[*Client]bool
	users      map[string]map[*Client]bool
	rooms      map[string]map[*Client]bool
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
	done       chan struct{}

	relay *RedisRelay
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// UseRelay routes every publish through Redis so that all instances deliver it.
func (h *Hub) UseRelay(r *RedisRelay) {
	h.relay = r
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.detachLocked(client)
				close(client.Send)
				metrics.RealtimeConnections.Dec()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] %s disconnected (total: %d)", client.Identity.UserID, total)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				trySend(client, message)
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

func (h *Hub) detachLocked(c *Client) {
	if set := h.users[c.Identity.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.Identity.UserID)
		}
	}
	for chatID := range c.rooms {
		if set := h.rooms[chatID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
}

func (h *Hub) Shutdown() {
	close(h.done)
}

// Register attaches the client before returning, so it can subscribe and
// receive user-room events immediately.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if h.users[client.Identity.UserID] == nil {
		h.users[client.Identity.UserID] = make(map[*Client]bool)
	}
	h.users[client.Identity.UserID][client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()
	log.Printf("[WS] %s connected (total: %d)", client.Identity.UserID, total)

	if h.relay != nil {
		h.relay.connected(client.Identity.UserID)
	}
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
	if h.relay != nil {
		h.relay.disconnected(client.Identity.UserID)
	}
}

// Subscribe joins the client to a chat room. Callers authorize first.
// It reports false when the client is no longer registered.
func (h *Hub) Subscribe(client *Client, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return false
	}
	client.rooms[chatID] = true
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[*Client]bool)
	}
	h.rooms[chatID][client] = true
	return true
}

func (h *Hub) Unsubscribe(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(client.rooms, chatID)
	if set := h.rooms[chatID]; set != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// PublishChat sends ev to everyone viewing the chat and to the participants'
// other connections.
func (h *Hub) PublishChat(chatID string, participants []string, ev *model.WSEvent) {
	h.publish(envelope{Scope: scopeChat, ChatID: chatID, Participants: participants, Event: ev})
}

func (h *Hub) PublishUser(userID string, ev *model.WSEvent) {
	h.publish(envelope{Scope: scopeUser, UserID: userID, Event: ev})
}

// Broadcast sends ev to every connection on every instance.
func (h *Hub) Broadcast(ev *model.WSEvent) {
	h.publish(envelope{Scope: scopeAll, Event: ev})
}

func (h *Hub) publish(env envelope) {
	if h.relay != nil {
		h.relay.publish(env)
		return
	}
	h.deliver(env)
}

// deliver fans an envelope out to local connections only.
func (h *Hub) deliver(env envelope) {
	data, err := json.Marshal(env.Event)
	if err != nil {
		return
	}

	switch env.Scope {
	case scopeAll:
		select {
		case h.broadcast <- data:
		default:
			metrics.RealtimeDropped.Inc()
		}
		return
	case scopeUser:
		h.mu.RLock()
		for client := range h.users[env.UserID] {
			trySend(client, data)
		}
		h.mu.RUnlock()
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[env.ChatID] {
		trySend(client, data)
	}
	for _, userID := range env.Participants {
		for client := range h.users[userID] {
			if !client.rooms[env.ChatID] {
				trySend(client, data)
			}
		}
	}
}

func trySend(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		metrics.RealtimeDropped.Inc()
	}
}

// SendTo queues ev for a single connection, used for acks and errors.
func (h *Hub) SendTo(client *Client, ev *model.WSEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[client] {
		trySend(client, data)
	}
}

// IsOnline reports whether the user has a live connection on any instance.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	local := len(h.users[userID]) > 0
	h.mu.RUnlock()
	if local || h.relay == nil {
		return local
	}
	return h.relay.online(userID)
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Heartbeat refreshes cross-instance presence for a live client.
func (h *Hub) Heartbeat(client *Client) {
	if h.relay != nil {
		h.relay.Touch(client.Identity.UserID)
	}
}
