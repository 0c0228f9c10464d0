package websocket

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

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

// testHub sets up a Hub behind a test HTTP server and returns a dialer.
func testHub(t *testing.T, maxClients int) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub(clockwork.NewRealClock(), maxClients)
	t.Cleanup(hub.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := hub.Register(conn); err != nil {
			return
		}
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dial := func() *ws.Conn {
		conn, _, err := ws.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return hub, dial
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	hub, dial := testHub(t, 8)
	c1 := dial()
	c2 := dial()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		time.Second, 5*time.Millisecond)

	rec := domain.ScoreRecord{Index: 7, Score: -0.42, ObservedAt: time.Now().UTC()}
	hub.Publish(rec)

	for _, conn := range []*ws.Conn{c1, c2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got domain.ScoreRecord
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, int64(7), got.Index)
		assert.Equal(t, -0.42, got.Score)
	}
}

func TestHub_RejectsClientsOverCap(t *testing.T) {
	hub, dial := testHub(t, 1)
	first := dial()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	// The second upgrade succeeds at HTTP level but the hub closes it.
	second := dial()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := second.ReadMessage()
	assert.Error(t, err, "over-cap client gets disconnected")

	assert.Equal(t, 1, hub.ClientCount())
	first.Close()
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, dial := testHub(t, 8)
	conn := dial()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub, dial := testHub(t, 8)
	conn := dial()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
