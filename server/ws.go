package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub fans learning snapshots out to websocket subscribers. Slow
// subscribers drop messages rather than stall the planning path.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*websocket.Conn]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subscribers: make(map[*websocket.Conn]chan []byte),
	}
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast marshals v once and queues it to every subscriber. A
// subscriber with a full queue misses this message.
func (h *Hub) Broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logrus.Warnf("learning broadcast marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.subscribers {
		select {
		case out <- payload:
		default:
			logrus.Debugf("dropping learning update for slow subscriber %s", conn.RemoteAddr())
		}
	}
}

// Handler upgrades the request and streams queued snapshots until the
// client disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}

		out := make(chan []byte, 8)
		h.mu.Lock()
		h.subscribers[conn] = out
		h.mu.Unlock()
		logrus.Infof("learning subscriber connected from %s", conn.RemoteAddr())

		// Writer goroutine; the read loop below owns connection teardown.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for payload := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}()

		// Drain client frames to detect disconnects; inbound content is
		// ignored.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		// Unregister under the lock before closing the queue so a
		// concurrent Broadcast never sends on a closed channel.
		h.mu.Lock()
		delete(h.subscribers, conn)
		h.mu.Unlock()
		close(out)
		<-done
		_ = conn.Close()
	}
}
