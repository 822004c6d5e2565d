package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"upnext-service/internal/models"
	"upnext-service/internal/observability"
)

// Tuning for connection liveness. Pings detect dead peers so presence and
// typing state cannot leak past a silent transport failure.
const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// client wraps a websocket connection with its metadata and a write lock;
// gorilla connections allow a single concurrent writer.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

func (c *client) ping() error {
	return c.write(websocket.PingMessage, nil)
}

// Hub maintains the two broadcast group kinds: per-conversation rooms holding
// every participant's active connection, and per-user inbox groups used to
// push chat-list refreshes.
type Hub struct {
	conversationRooms map[int]map[*websocket.Conn]*client
	inboxGroups       map[int]map[*websocket.Conn]*client
	mu                sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conversationRooms: make(map[int]map[*websocket.Conn]*client),
		inboxGroups:       make(map[int]map[*websocket.Conn]*client),
	}
}

// JoinConversation registers a connection in a conversation room.
func (h *Hub) JoinConversation(conversationID int, conn *websocket.Conn, info ConnInfo) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conversationRooms[conversationID]; !ok {
		h.conversationRooms[conversationID] = make(map[*websocket.Conn]*client)
	}
	cl := &client{conn: conn, info: info}
	h.conversationRooms[conversationID][conn] = cl
	return cl
}

// LeaveConversation removes a connection from a conversation room.
func (h *Hub) LeaveConversation(conversationID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conversationRooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conversationRooms, conversationID)
		}
	}
}

// JoinInbox registers a connection in the user's private inbox group.
func (h *Hub) JoinInbox(userID int, conn *websocket.Conn, info ConnInfo) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.inboxGroups[userID]; !ok {
		h.inboxGroups[userID] = make(map[*websocket.Conn]*client)
	}
	cl := &client{conn: conn, info: info}
	h.inboxGroups[userID][conn] = cl
	return cl
}

// LeaveInbox removes a connection from the user's inbox group.
func (h *Hub) LeaveInbox(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.inboxGroups[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.inboxGroups, userID)
		}
	}
}

// BroadcastToConversation sends an event to every connection in the room.
// The sender does not wait for recipients beyond the socket write itself.
func (h *Hub) BroadcastToConversation(conversationID int, event models.RealtimeEvent) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.conversationRooms[conversationID]))
	for _, cl := range h.conversationRooms[conversationID] {
		conns = append(conns, cl)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, cl := range conns {
		if err := cl.write(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			cl.conn.Close()
			h.LeaveConversation(conversationID, cl.conn)
			h.publishWSError("conversation", conversationID, cl, err)
		}
	}
}

// PushToInbox sends an event to every connection in the user's inbox group.
func (h *Hub) PushToInbox(userID int, event models.RealtimeEvent) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.inboxGroups[userID]))
	for _, cl := range h.inboxGroups[userID] {
		conns = append(conns, cl)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, cl := range conns {
		if err := cl.write(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			cl.conn.Close()
			h.LeaveInbox(userID, cl.conn)
			h.publishWSError("inbox", userID, cl, err)
		}
	}
}

func (h *Hub) publishWSError(kind string, resourceID int, cl *client, err error) {
	info := cl.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func wsRoutingKey(kind string) string {
	if kind == "inbox" {
		return "ws_events.inbox"
	}
	return "ws_events.conversations"
}
