package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/txscan-engine/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSBroadcastSink pushes every scan event to all connected dashboard
// clients over a websocket. Same client-set + broadcast-channel shape
// as the teacher's api.Hub, generalized from raw JSON blobs to
// ScanEvent.
type WSBroadcastSink struct {
	clients   map[*websocket.Conn]bool
	broadcast chan model.ScanEvent
	mutex     sync.Mutex
}

// NewWSBroadcastSink builds a WSBroadcastSink. Call Run in its own
// goroutine to start delivering events to clients.
func NewWSBroadcastSink() *WSBroadcastSink {
	return &WSBroadcastSink{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan model.ScanEvent, 256),
	}
}

// Emit enqueues event for broadcast; never blocks the scan pipeline.
func (h *WSBroadcastSink) Emit(event model.ScanEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("events: websocket sink queue full, dropping scan %s", event.ScanID)
	}
}

// Run drains the broadcast channel and fans each event out to every
// connected client, dropping clients that fail to accept a write.
func (h *WSBroadcastSink) Run() {
	for event := range h.broadcast {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("events: failed to marshal scan event: %v", err)
			continue
		}

		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("events: websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an incoming HTTP request to a websocket connection
// and registers it to receive future scan events.
func (h *WSBroadcastSink) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("events: failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("events: websocket error: %v", err)
				}
				return
			}
		}
	}()
}

var _ ScanEventSink = (*WSBroadcastSink)(nil)
