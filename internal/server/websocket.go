package server

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// wsClient wraps one subscriber connection. gorilla/websocket allows only a
// single concurrent writer per connection, and broadcasts can arrive from
// any request goroutine, so every write goes through the client's mutex.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(payload)
}

func (c *wsClient) close() {
	_ = c.conn.Close()
}

// wsHub fans a room's change feed out to every connected client. Each
// broadcast carries a full snapshot, so deliveries are at-least-once and
// re-applying one is harmless.
type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *wsHub) Add(roomID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[roomID]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[roomID] = group
	}
	group[client] = struct{}{}
}

func (h *wsHub) Remove(roomID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if group, ok := h.groups[roomID]; ok {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, roomID)
		}
	}
}

func (h *wsHub) Broadcast(roomID string, payload any) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.groups[roomID]))
	for client := range h.groups[roomID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		if err := client.send(payload); err != nil {
			h.Remove(roomID, client)
			client.close()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// broadcastRoom pushes the current snapshot to every subscriber of a room.
func (s *Server) broadcastRoom(room *Room) {
	s.ws.Broadcast(room.ID, s.snapshot(room))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/ws/rooms/")
	code = strings.Trim(code, "/")
	room, ok := s.store.FindRoomByCode(code)
	if !ok {
		room, ok = s.store.GetRoom(code)
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}
	s.ws.Add(room.ID, client)
	if err := client.send(s.snapshot(room)); err != nil {
		s.ws.Remove(room.ID, client)
		client.close()
		return
	}
	go func() {
		defer func() {
			s.ws.Remove(room.ID, client)
			client.close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
