package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/chriscow/voicecore/internal/mediaio"
	"github.com/chriscow/voicecore/internal/session"
)

// ControlHub fans a room's control-sidechannel events out to WebSocket
// clients (§6: "browser/UI clients that aren't native LiveKit data-channel
// consumers"). One Hub serves every room in the process; clients register
// under the room id they care about.
type ControlHub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{} // roomID -> conns
}

// NewControlHub builds an empty hub. origin checks are intentionally
// permissive (CheckOrigin always true) since this is an internal operator
// surface; cmd/voiced serves it on its control address without any origin
// or auth check of its own.
func NewControlHub(log *slog.Logger) *ControlHub {
	if log == nil {
		log = slog.Default()
	}
	return &ControlHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      log,
		clients:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades a client connection and subscribes it to roomID's
// control events until the client disconnects.
func (h *ControlHub) ServeHTTP(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("control websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	if h.clients[roomID] == nil {
		h.clients[roomID] = make(map[*websocket.Conn]struct{})
	}
	h.clients[roomID][conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients[roomID], conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Control sidechannel is server-to-client only from this module's
	// perspective; block reading so the connection's close is detected.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends evt as JSON to every WebSocket client subscribed to
// roomID. Best-effort: a write failure is logged at debug level and that
// client simply misses the event (it stays registered until its read loop
// ends), the way mediaio's own sidechannel drops on backpressure rather
// than blocking the producer.
func (h *ControlHub) Broadcast(roomID string, evt mediaio.ControlEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[roomID]))
	for c := range h.clients[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug("dropping control websocket client", slog.Any("error", err))
		}
	}
}

// forwardControlEvents relays a session's control sidechannel to both the
// LiveKit data channel (native clients) and the WebSocket hub (browser/UI
// clients), until ctx is cancelled or the channel closes.
func (t *RoomTransport) forwardControlEvents(ctx context.Context, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sess.ControlEvents():
			if !ok {
				return
			}
			if evt.Type == "bot_response_interrupted" {
				t.mu.Lock()
				provider := t.outboundProvider
				t.mu.Unlock()
				if provider != nil {
					provider.drain()
				}
			}
			t.publishControlEvent(evt)
			if t.hub != nil {
				t.hub.Broadcast(t.roomID, evt)
			}
		}
	}
}

func (t *RoomTransport) publishControlEvent(evt mediaio.ControlEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	lp := t.room.LocalParticipant()
	if lp == nil {
		return
	}
	if err := lp.PublishData(payload, lksdk.WithDataPublishReliable(true)); err != nil {
		t.log.Debug("failed to publish control event to data channel", slog.Any("error", err))
	}
}
