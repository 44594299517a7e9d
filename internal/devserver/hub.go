package devserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streaming-bot/internal/integrations/apigw"
)

const writeTimeout = 10 * time.Second

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks the open local sockets and delivers pushes to them, standing in
// for the API Gateway management API.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*client)}
}

// Push writes one text frame. Unknown connections report
// apigw.ErrConnectionGone like the hosted channel does.
func (h *Hub) Push(ctx context.Context, connectionID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", apigw.ErrConnectionGone, connectionID)
	}
	if err := c.write(data); err != nil {
		return fmt.Errorf("devserver: write to %s: %w", connectionID, err)
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[id] = &client{conn: conn}
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}
