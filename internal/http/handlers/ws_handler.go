package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/events"
)

// WSHub relays campaign lifecycle events (donation locked, escrow released)
// to connected dashboard clients. Events carry only public data, so the
// socket needs no authentication.
type WSHub struct {
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
}

func NewWSHub(subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		subscriber: subscriber,
		log:        log,
		conns:      make(map[*websocket.Conn]struct{}),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamCampaign, func(event events.Event) {
		h.broadcast(event)
	})
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.conns {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
