// Package stream pushes periodic flight snapshots to websocket clients so
// dashboards can update without polling /api/flights.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ahmeda07-gh/SkyGuard/internal/models"
	"github.com/ahmeda07-gh/SkyGuard/internal/observability"
)

// FlightSource supplies the snapshot broadcast on every tick. Both the live
// service and test stubs satisfy it.
type FlightSource interface {
	Flights(ctx context.Context) ([]models.FlightRecord, string)
}

// Hub fans flight snapshots out to connected websocket clients.
type Hub struct {
	source   FlightSource
	interval time.Duration
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub returns a Hub broadcasting at the given interval.
func NewHub(source FlightSource, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		source:   source,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWS upgrades the request and registers the client. The read loop only
// detects disconnects; clients never send application messages.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.addClient(conn)
	h.logger.Info("stream client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	defer func() {
		h.removeClient(conn)
		conn.Close()
		h.logger.Info("stream client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}()

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Run broadcasts snapshots until the context is cancelled. Ticks with no
// connected clients skip the upstream fetch entirely.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			h.broadcast(ctx)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ctx context.Context) {
	records, source := h.source.Flights(ctx)
	msg, err := json.Marshal(models.FlightsResponse{Flights: records, Source: source})
	if err != nil {
		h.logger.Error("stream snapshot marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("stream write failed, dropping client",
				zap.String("remote_addr", conn.RemoteAddr().String()),
				zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
			observability.StreamClientsConnected.Dec()
		}
	}
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	observability.StreamClientsConnected.Inc()
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		observability.StreamClientsConnected.Dec()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
		observability.StreamClientsConnected.Dec()
	}
}
