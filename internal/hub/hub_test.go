package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
)

// testHub sets up a Hub behind a test HTTP server that upgrades connections.
// Returns the hub and a dial function.
func testHub(t *testing.T, snapshot SnapshotFunc) (*Hub, func() *ws.Conn) {
	t.Helper()

	if snapshot == nil {
		snapshot = func() domain.InitSnapshot { return domain.InitSnapshot{} }
	}

	hub := NewHub(snapshot, 50, clockwork.NewRealClock())
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		_ = hub.Register(conn)

		// Read loop to detect disconnects
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(func() { server.Close() })

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

func waitForClientCount(hub *Hub, expected int) bool {
	for i := 0; i < 100; i++ {
		if hub.ClientCount() == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func readMessage(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(msg, &result))
	return result
}

func sampleUpdate() domain.Update {
	return domain.Update{
		Channel: "testchannel",
		User: domain.UserRecord{
			Username:   "alice",
			Count:      3,
			EmoteUsage: map[string]int{"pog": 2, "KEKW": 1},
		},
		EmoteUsage: map[string]int{"pog": 2, "KEKW": 1},
	}
}

func TestHub_FirstMessageIsInitSnapshot(t *testing.T) {
	snapshot := func() domain.InitSnapshot {
		return domain.InitSnapshot{
			"testchannel": {
				Users:      []domain.UserRecord{{Username: "alice", Count: 3, EmoteUsage: map[string]int{"pog": 3}}},
				EmoteUsage: map[string]int{"pog": 3},
			},
		}
	}
	_, dial := testHub(t, snapshot)

	conn := dial()
	msg := readMessage(t, conn)

	assert.Equal(t, "init", msg["type"])
	channels := msg["channels"].(map[string]any)
	require.Contains(t, channels, "testchannel")
	state := channels["testchannel"].(map[string]any)
	assert.Equal(t, map[string]any{"pog": float64(3)}, state["emoteUsage"])
}

func TestHub_InitPrecedesUpdates(t *testing.T) {
	hub, dial := testHub(t, nil)

	conn := dial()
	require.True(t, waitForClientCount(hub, 1))
	hub.Publish(sampleUpdate())

	first := readMessage(t, conn)
	assert.Equal(t, "init", first["type"])

	second := readMessage(t, conn)
	assert.Equal(t, "update", second["type"])
	assert.Equal(t, "testchannel", second["channel"])
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	hub, dial := testHub(t, nil)

	conn1 := dial()
	conn2 := dial()
	require.True(t, waitForClientCount(hub, 2))

	hub.Publish(sampleUpdate())

	for _, conn := range []*ws.Conn{conn1, conn2} {
		init := readMessage(t, conn)
		assert.Equal(t, "init", init["type"])

		update := readMessage(t, conn)
		assert.Equal(t, "update", update["type"])
		user := update["user"].(map[string]any)
		assert.Equal(t, "alice", user["username"])
		assert.Equal(t, float64(3), user["count"])
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub, dial := testHub(t, nil)

	conn := dial()
	require.True(t, waitForClientCount(hub, 1))

	conn.Close()
	require.True(t, waitForClientCount(hub, 0))

	// a second unregister for the same connection must be harmless
	hub.Unregister(conn)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_DisconnectDuringBroadcastDoesNotAffectOthers(t *testing.T) {
	hub, dial := testHub(t, nil)

	conn1 := dial()
	conn2 := dial()
	require.True(t, waitForClientCount(hub, 2))

	conn1.Close()

	for i := 0; i < 10; i++ {
		hub.Publish(sampleUpdate())
	}

	// the surviving client still receives its messages
	init := readMessage(t, conn2)
	assert.Equal(t, "init", init["type"])
	update := readMessage(t, conn2)
	assert.Equal(t, "update", update["type"])
}

func TestHub_RejectsBeyondMaxClients(t *testing.T) {
	snapshot := func() domain.InitSnapshot { return domain.InitSnapshot{} }
	hub := NewHub(snapshot, 1, clockwork.NewRealClock())
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	results := make(chan error, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		results <- hub.Register(conn)
	}))
	t.Cleanup(func() { server.Close() })

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	for i := 0; i < 2; i++ {
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
	}

	var errs []error
	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			errs = append(errs, err)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for register results")
		}
	}

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}
