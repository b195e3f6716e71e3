package kds

import (
	"context"
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

// startHub serves a websocket endpoint that registers clients with ?branch=.
func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.RegisterClient(conn, "mozo", r.URL.Query().Get("branch"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		hub.UnregisterClient(conn)
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no message expected")
}

func TestBroadcastFiltersByBranch(t *testing.T) {
	hub, url := startHub(t)
	b1 := dial(t, url+"?branch=b1")
	b2 := dial(t, url+"?branch=b2")
	all := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishOrdersUpdated(context.Background(), "b1", "m7"))

	msg := readMessage(t, b1)
	assert.Equal(t, EventOrdersUpdated, msg.Event)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "b1", data["branch_id"])
	assert.Equal(t, "m7", data["mesa_id"])

	assert.Equal(t, EventOrdersUpdated, readMessage(t, all).Event)
	expectSilence(t, b2)
}

func TestUnregisterOnDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?branch=b1")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRelayDeliver(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?branch=b3")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	relay := NewRedisRelay(nil, "", hub)
	assert.Equal(t, DefaultChannel, relay.channel)

	relay.deliver("not json")
	relay.deliver(`{"branch_id":"b3","mesa_id":"m1"}`)

	msg := readMessage(t, conn)
	assert.Equal(t, EventOrdersUpdated, msg.Event)
}

func TestBroadcastDropsStalledClient(t *testing.T) {
	hub, url := startHub(t)
	healthy := dial(t, url+"?branch=b1")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// client tanpa writer: antriannya tidak pernah dikosongkan
	stalled := &client{conn: &websocket.Conn{}, role: "caja", branchID: "b1", send: make(chan []byte, 1)}
	hub.mutex.Lock()
	hub.clients[stalled.conn] = stalled
	hub.mutex.Unlock()

	start := time.Now()
	require.NoError(t, hub.PublishOrdersUpdated(context.Background(), "b1", "m1"))
	require.NoError(t, hub.PublishOrdersUpdated(context.Background(), "b1", "m2"))
	assert.Less(t, time.Since(start), writeWait)

	assert.Equal(t, 1, hub.ClientCount())
	_, open := <-stalled.send
	assert.True(t, open, "first message stays queued")
	_, open = <-stalled.send
	assert.False(t, open, "queue closed after overflow")

	assert.Equal(t, "m1", readMessage(t, healthy).Data.(map[string]interface{})["mesa_id"])
	assert.Equal(t, "m2", readMessage(t, healthy).Data.(map[string]interface{})["mesa_id"])
}
