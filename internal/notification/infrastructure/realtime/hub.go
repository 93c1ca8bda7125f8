// Package realtime 基于 WebSocket 向在线客户端推送事件。
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/logger"
	"github.com/wyfcoding/issuetracking/pkg/metrics"
)

// envelope 推送帧结构，event 标识客户端监听的事件名。
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Hub 持有本实例的全部在线连接，按连接标识寻址。
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*conn
	metrics *metrics.Metrics
}

// NewHub 创建连接集线器，m 可为 nil。
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]*conn),
		metrics: m,
	}
}

var _ domain.RealtimeTransport = (*Hub)(nil)

// Add 接管一条已升级的 WebSocket 连接，返回分配的连接标识。
func (h *Hub) Add(ws *websocket.Conn) string {
	connID := uuid.New().String()

	h.mu.Lock()
	h.conns[connID] = &conn{ws: ws}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WebsocketConnections.Inc()
	}
	return connID
}

// Remove 移除并关闭连接，重复移除是空操作。
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	_ = c.ws.Close()
	if h.metrics != nil {
		h.metrics.WebsocketConnections.Dec()
	}
}

// Count 返回当前在线连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send 实现 domain.RealtimeTransport.Send。
// 同一连接上的写串行化，连接不存在时返回错误。
func (h *Hub) Send(ctx context.Context, connID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("realtime: connection %s not found", connID)
	}

	c.mu.Lock()
	err := c.ws.WriteJSON(envelope{Event: event, Data: payload})
	c.mu.Unlock()

	if err != nil {
		logger.Warn(ctx, "realtime send failed, dropping connection", "conn_id", connID, "error", err)
		h.Remove(connID)
		return fmt.Errorf("realtime: write to %s: %w", connID, err)
	}
	return nil
}
