package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JagaGrup/Sentinel/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the envelope pushed to dashboard clients.
type Event struct {
	Type      string      `json:"type"` // verdict, stats
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Hub fans detection events out to every connected dashboard client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Client is one active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("ℹ️ WebSocket client connected (%d active)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("ℹ️ WebSocket client disconnected (%d active)", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// A client that cannot keep up gets dropped instead of
					// blocking the hub
					log.Printf("⚠️ WebSocket client too slow, closing connection")
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// BroadcastVerdict pushes a finished detection result to all clients.
func (h *Hub) BroadcastVerdict(result *models.DetectionResult) {
	h.publish("verdict", result)
}

// BroadcastStats pushes a stats snapshot to all clients.
func (h *Hub) BroadcastStats(stats interface{}) {
	h.publish("stats", stats)
}

func (h *Hub) publish(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		log.Printf("⚠️ Failed to marshal %s event: %v", eventType, err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Printf("⚠️ Broadcast queue full, dropping %s event", eventType)
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Clients never send payloads; reading only detects the disconnect
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ WebSocket read error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		c.conn.WriteMessage(websocket.TextMessage, message)
	}
}
