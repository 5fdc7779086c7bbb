package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollwatch/pollwatch/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// dialHub stands up a websocket endpoint that subscribes every connection
// to the given poll and returns a connected client.
func dialHub(t *testing.T, hub *Hub, pollID string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		unsubscribe := hub.Subscribe(pollID, conn)
		defer unsubscribe()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testView(final bool) domain.RenderedView {
	return domain.RenderedView{
		Title: "Live results: Lunch?",
		Lines: []string{"Pizza: 2 votes", "Salad: 0 votes"},
		Final: final,
	}
}

func readView(t *testing.T, conn *websocket.Conn) domain.RenderedView {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var view domain.RenderedView
	require.NoError(t, conn.ReadJSON(&view))
	return view
}

func TestHub_DeliversViewsToSubscribers(t *testing.T) {
	hub := NewHub()
	first := dialHub(t, hub, "p1")
	second := dialHub(t, hub, "p1")

	hub.PublishView("p1", testView(false))

	for _, conn := range []*websocket.Conn{first, second} {
		view := readView(t, conn)
		assert.Equal(t, "Live results: Lunch?", view.Title)
		assert.False(t, view.Final)
	}
}

func TestHub_ScopesViewsToPoll(t *testing.T) {
	hub := NewHub()
	watcher := dialHub(t, hub, "p1")
	bystander := dialHub(t, hub, "other")

	hub.PublishView("p1", testView(true))

	view := readView(t, watcher)
	assert.True(t, view.Final)

	require.NoError(t, bystander.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var stray domain.RenderedView
	assert.Error(t, bystander.ReadJSON(&stray))
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.PublishView("nobody-home", testView(false))
	})
}

func TestHub_DropsClosedConnections(t *testing.T) {
	hub := NewHub()
	gone := dialHub(t, hub, "p1")
	alive := dialHub(t, hub, "p1")

	require.NoError(t, gone.Close())
	// Give the server side a moment to notice the peer went away.
	require.Eventually(t, func() bool {
		hub.PublishView("p1", testView(false))
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subscribers["p1"]) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Drain everything published while waiting; the surviving connection
	// stays subscribed.
	view := readView(t, alive)
	assert.Equal(t, "Live results: Lunch?", view.Title)
}

func TestHub_UnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "p1")

	hub.mu.Lock()
	require.Len(t, hub.subscribers["p1"], 1)
	hub.mu.Unlock()

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subscribers["p1"]) == 0
	}, 2*time.Second, 20*time.Millisecond)
}
