package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/chriscow/voicecore/internal/sessionmanager"
	"github.com/chriscow/voicecore/internal/transport"
	"github.com/chriscow/voicecore/pkg/job"
)

// tokenValidity is how long the access token voiced mints for itself to
// join a room is valid for. Sessions are expected to last well under this;
// SessionManager's idle reaper (§4.1) ends them long before expiry.
const tokenValidity = 6 * time.Hour

// agentIdentity is the LiveKit participant identity voiced joins rooms
// under, grounded on the teacher's examples/minimal/main.go generateToken
// usage of a fixed identity string for the agent side of the connection.
const agentIdentity = "voicecore-agent"

// RoomRegistry tracks the one RoomTransport running per room name and joins
// new rooms on demand. Grounded on the teacher's one-job-per-room shape
// (pkg/job.Room, agents/worker.go's per-job entrypoint) generalized to a
// server that joins many rooms over its lifetime instead of one process
// per job.
type RoomRegistry struct {
	livekitURL string
	apiKey     string
	apiSecret  string
	mgr        *sessionmanager.Manager
	hub        *transport.ControlHub
	resolveCfg transport.AgentConfigResolver
	log        *slog.Logger

	mu    sync.Mutex
	rooms map[string]context.CancelFunc
}

func NewRoomRegistry(livekitURL, apiKey, apiSecret string, mgr *sessionmanager.Manager, hub *transport.ControlHub, resolveCfg transport.AgentConfigResolver, log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		livekitURL: livekitURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		mgr:        mgr,
		hub:        hub,
		resolveCfg: resolveCfg,
		log:        log,
		rooms:      make(map[string]context.CancelFunc),
	}
}

// Join connects voiced to roomName and starts dispatching its events. It is
// a no-op if voiced is already connected to that room.
func (r *RoomRegistry) Join(ctx context.Context, roomName string) error {
	r.mu.Lock()
	if _, exists := r.rooms[roomName]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	token, err := r.mintToken(roomName)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	roomCtx, cancel := context.WithCancel(ctx)

	jobRoom, err := job.NewRoom(roomCtx, job.RoomConfig{
		URL:             r.livekitURL,
		Token:           token,
		RoomName:        roomName,
		EventBufferSize: 100,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("new room: %w", err)
	}
	if err := jobRoom.Connect(job.RoomConfig{URL: r.livekitURL, Token: token, RoomName: roomName}); err != nil {
		cancel()
		return fmt.Errorf("connect: %w", err)
	}

	r.mu.Lock()
	r.rooms[roomName] = cancel
	r.mu.Unlock()

	rt := transport.NewRoomTransport(roomName, jobRoom, r.mgr, r.resolveCfg, r.hub, r.log)

	go func() {
		if err := rt.Run(roomCtx); err != nil && roomCtx.Err() == nil {
			r.log.Error("room transport exited", slog.String("room", roomName), slog.Any("error", err))
		}
		jobRoom.Disconnect()
		r.mu.Lock()
		delete(r.rooms, roomName)
		r.mu.Unlock()
	}()

	return nil
}

// Leave disconnects voiced from roomName, if joined.
func (r *RoomRegistry) Leave(roomName string) {
	r.mu.Lock()
	cancel, ok := r.rooms[roomName]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *RoomRegistry) mintToken(roomName string) (string, error) {
	at := auth.NewAccessToken(r.apiKey, r.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(agentIdentity).
		SetValidFor(tokenValidity)
	return at.ToJWT()
}
