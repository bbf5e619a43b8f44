package main

import (
	"encoding/json"
	"net/http"

	"github.com/chriscow/voicecore/internal/transport"
)

// newHTTPServer wires the control/admin surface: a WebSocket control
// sidechannel per room (transport.ControlHub, §5.2) and a small admin API
// for joining rooms, grounded on the teacher's cmd/lk-go/main.go mux-based
// server shape.
func newHTTPServer(addr string, hub *transport.ControlHub, rooms *RoomRegistry) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /control/{roomID}", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, r.PathValue("roomID"))
	})

	mux.HandleFunc("POST /rooms", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RoomName string `json:"room_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RoomName == "" {
			http.Error(w, "room_name is required", http.StatusBadRequest)
			return
		}
		if err := rooms.Join(r.Context(), body.RoomName); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("DELETE /rooms/{roomName}", func(w http.ResponseWriter, r *http.Request) {
		rooms.Leave(r.PathValue("roomName"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &http.Server{Addr: addr, Handler: mux}
}
