package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialPair 建立一条服务端已被 hub 接管的连接，返回客户端侧与连接标识。
func dialPair(t *testing.T, hub *Hub) (*websocket.Conn, string) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connIDCh := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connIDCh <- hub.Add(ws)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, <-connIDCh
}

func TestHubSendDeliversEnvelope(t *testing.T) {
	hub := NewHub(nil)
	client, connID := dialPair(t, hub)

	type record struct {
		ID      uint64 `json:"id"`
		Message string `json:"message"`
	}
	err := hub.Send(context.Background(), connID, "new-notification", record{ID: 7, Message: "hello"})
	require.NoError(t, err)

	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, client.ReadJSON(&frame))
	assert.Equal(t, "new-notification", frame.Event)

	var got record
	require.NoError(t, json.Unmarshal(frame.Data, &got))
	assert.Equal(t, uint64(7), got.ID)
	assert.Equal(t, "hello", got.Message)
}

func TestHubSendUnknownConn(t *testing.T) {
	hub := NewHub(nil)
	err := hub.Send(context.Background(), "missing", "new-notification", nil)
	assert.Error(t, err)
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	_, connID := dialPair(t, hub)

	assert.Equal(t, 1, hub.Count())
	hub.Remove(connID)
	hub.Remove(connID)
	assert.Equal(t, 0, hub.Count())

	err := hub.Send(context.Background(), connID, "new-notification", nil)
	assert.Error(t, err)
}
