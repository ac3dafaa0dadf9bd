package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, origins ...string) (*Hub, string) {
	t.Helper()
	hub := NewHub(origins, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(message, &event))
	return event
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n },
		time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub, _ := startHub(t)
	assert.True(t, hub.BroadcastEvent(Event{Type: "deck:state", Data: map[string]int{"version": 1}}))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastToClients(t *testing.T) {
	hub, url := startHub(t)

	conns := []*websocket.Conn{dial(t, url, nil), dial(t, url, nil), dial(t, url, nil)}
	waitForClients(t, hub, 3)

	hub.BroadcastEvent(Event{Type: "deck:state", Data: map[string]int{"deck_id": 7}})

	for i, conn := range conns {
		event := readEvent(t, conn)
		assert.Equal(t, "deck:state", event.Type, "client %d", i)
		data, ok := event.Data.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 7, data["deck_id"])
	}
}

func TestHub_WelcomeMessage(t *testing.T) {
	hub, url := startHub(t)
	hub.SetWelcome(func() (Event, bool) {
		return Event{Type: "deck:state", Data: map[string]string{"deck_name": "Zur"}}, true
	})

	conn := dial(t, url, nil)
	event := readEvent(t, conn)
	assert.Equal(t, "deck:state", event.Type)
	assert.Equal(t, map[string]any{"deck_name": "Zur"}, event.Data)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url, nil)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestHub_Stop(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, nil)
	waitForClients(t, hub, 1)

	hub.Stop()
	hub.Stop()

	require.Eventually(t, hub.IsStopped, time.Second, 5*time.Millisecond)
	assert.False(t, hub.BroadcastEvent(Event{Type: "deck:state"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, url := startHub(t, "http://localhost:*")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, url, http.Header{"Origin": []string{"http://localhost:5173"}})
	assert.NotNil(t, conn)
}

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"http://localhost:*", "http://127.0.0.1:*"}

	assert.True(t, originAllowed("", patterns))
	assert.True(t, originAllowed("http://localhost:3000", patterns))
	assert.True(t, originAllowed("http://127.0.0.1:8080", patterns))
	assert.False(t, originAllowed("https://localhost:3000", patterns))
	assert.False(t, originAllowed("http://example.com", patterns))
}
