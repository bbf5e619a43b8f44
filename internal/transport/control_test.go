package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"github.com/chriscow/voicecore/internal/mediaio"
)

func TestControlHub_BroadcastReachesSubscribedClient(t *testing.T) {
	is := is.New(t)
	hub := NewControlHub(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, "room-1")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	is.NoErr(err)
	defer conn.Close()

	// Give ServeHTTP time to register the connection before broadcasting.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients["room-1"])
		hub.mu.RUnlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	hub.Broadcast("room-1", mediaio.ControlEvent{Type: "speech_start"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	is.NoErr(err)
	is.True(strings.Contains(string(msg), "speech_start"))
}

func TestControlHub_BroadcastToUnknownRoomIsNoop(t *testing.T) {
	hub := NewControlHub(nil)
	// Must not panic when nobody is subscribed to this room id.
	hub.Broadcast("no-such-room", mediaio.ControlEvent{Type: "speech_start"})
}
