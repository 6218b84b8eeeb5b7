package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"antrian_rapor/internal/models"
)

// Server→client event types. Every event rides the WSMessage envelope with
// an object payload; online-status carries {"classes": [sorted class names]}.
const (
	EventQueueUpdated        = "queue-updated"
	EventStudentCalled       = "student-called"
	EventStudentFinished     = "student-finished"
	EventAnnouncement        = "announcement"
	EventAnnouncementUpdated = "announcement-updated"
	EventOnlineStatus        = "online-status"
)

// WSMessage is the wire format for server→client events.
type WSMessage struct {
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Hub is the session registry: every connected display/teacher/admin socket,
// with the identity it registered under. Events are fanned out to all
// sessions at-most-once; a session with a full send buffer is dropped and
// must reconnect and re-fetch.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

var HubInstance = NewHub()

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run processes the hub channels. Started once from main.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			wasTeacher := false
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				wasTeacher = client.Role == models.RoleTeacher
			}
			h.mu.Unlock()
			if wasTeacher {
				// Fan out directly: Run cannot send to its own
				// broadcast channel without deadlocking.
				h.fanOut(h.onlineStatusMessage())
			}
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(h.clients, client)
		}
	}
	h.mu.Unlock()
}

// BroadcastEvent sends an event to every connected session.
func (h *Hub) BroadcastEvent(eventType string, data map[string]interface{}) {
	encoded, err := json.Marshal(WSMessage{EventType: eventType, Data: data})
	if err != nil {
		log.Println("ws: failed to encode event:", err)
		return
	}
	h.broadcast <- encoded
}

// Identify records the identity a session announced with its register
// message. Re-registering is allowed and simply overwrites the identity.
func (h *Hub) Identify(client *Client, role, className string) {
	h.mu.Lock()
	client.Role = role
	client.ClassName = className
	h.mu.Unlock()
	if role == models.RoleTeacher {
		h.broadcastOnlineStatus()
	}
}

// OnlineClasses returns the sorted distinct classes that currently have a
// registered teacher session. Computed from the registry on every call so it
// cannot drift.
func (h *Hub) OnlineClasses() []string {
	h.mu.RLock()
	seen := make(map[string]bool)
	for client := range h.clients {
		if client.Role == models.RoleTeacher && client.ClassName != "" {
			seen[client.ClassName] = true
		}
	}
	h.mu.RUnlock()

	classes := make([]string, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

func (h *Hub) broadcastOnlineStatus() {
	h.broadcast <- h.onlineStatusMessage()
}

func (h *Hub) onlineStatusMessage() []byte {
	encoded, _ := json.Marshal(WSMessage{
		EventType: EventOnlineStatus,
		Data:      map[string]interface{}{"classes": h.OnlineClasses()},
	})
	return encoded
}

// Client is one websocket session.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	Role      string
	ClassName string
}

// clientMessage is the wire format for client→server messages.
type clientMessage struct {
	Event       string `json:"event"`
	Role        string `json:"role,omitempty"`
	ClassName   string `json:"className,omitempty"`
	StudentName string `json:"studentName,omitempty"`
	Text        string `json:"text,omitempty"`
}

// readPump consumes client messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Println("ws: ignoring malformed client message:", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMessage) {
	switch msg.Event {
	case "register":
		c.Hub.Identify(c, msg.Role, msg.ClassName)
	case "call-student":
		c.Hub.BroadcastEvent(EventStudentCalled, map[string]interface{}{
			"studentName": msg.StudentName,
			"className":   msg.ClassName,
		})
	case "finish-student":
		c.Hub.BroadcastEvent(EventStudentFinished, map[string]interface{}{
			"studentName": msg.StudentName,
			"className":   msg.ClassName,
		})
	case "broadcast-announcement":
		c.Hub.BroadcastEvent(EventAnnouncement, map[string]interface{}{
			"text": msg.Text,
		})
	}
}

// writePump flushes the send channel and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the connection and registers the session. The client is
// expected to send a register message with its role and class right after
// connecting; until then it still receives broadcasts but is not counted in
// the teacher presence.
func ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		http.Error(c.Writer, "websocket upgrade failed", http.StatusInternalServerError)
		return
	}
	client := &Client{
		Hub:  HubInstance,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
	HubInstance.register <- client

	go client.writePump()
	client.readPump()
}
