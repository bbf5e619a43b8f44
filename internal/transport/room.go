// Package transport implements the real-time media transport collaborator
// (§6): it binds LiveKit room/track/participant events to SessionManager
// lifecycle calls, pumps inbound/outbound audio through a Session, and fans
// control-sidechannel events out to both the LiveKit data channel and
// browser/UI clients over WebSocket. Grounded on the teacher's pkg/job
// (room event dispatch) and agents/worker.go (RTP<->PCM conversion,
// local-track publishing), rewritten to drive internal/session instead of
// the teacher's inline STT/LLM/TTS calls.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/livekit/protocol/livekit"

	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/internal/sessionmanager"
	"github.com/chriscow/voicecore/pkg/job"
	"github.com/chriscow/voicecore/pkg/provider"
)

// Manager is the subset of *sessionmanager.Manager this package depends on,
// kept as an interface so room_test.go can substitute a fake instead of
// building a real SessionManager + provider stack.
type Manager interface {
	Create(roomID string, agentCfg provider.AgentConfig) (string, error)
	GetByRoom(roomID string) (*session.Session, error)
	DestroyByRoom(ctx context.Context, roomID string)
}

// AgentConfigResolver fetches the agent configuration for a room (§6:
// "Agent configuration (consumed)") — the actual store (HTTP call, DB
// lookup, static config) is outside this module's scope.
type AgentConfigResolver func(roomID string) (provider.AgentConfig, error)

// RoomTransport binds one job.Room connection to one SessionManager-owned
// Session, per the teacher's one-Room-per-struct shape (pkg/job/room.go).
type RoomTransport struct {
	roomID             string
	room               *job.Room
	mgr                Manager
	resolveAgentConfig AgentConfigResolver
	hub                *ControlHub
	log                *slog.Logger

	mu               sync.Mutex
	sess             *session.Session
	outboundProvider *assistantSampleProvider
}

// NewRoomTransport wires a connected job.Room to mgr. hub may be nil to
// skip the WebSocket control fan-out (LiveKit data-channel publishing
// still happens either way).
func NewRoomTransport(roomID string, room *job.Room, mgr Manager, resolveAgentConfig AgentConfigResolver, hub *ControlHub, log *slog.Logger) *RoomTransport {
	if log == nil {
		log = slog.Default()
	}
	return &RoomTransport{
		roomID:             roomID,
		room:               room,
		mgr:                mgr,
		resolveAgentConfig: resolveAgentConfig,
		hub:                hub,
		log:                log.With(slog.String("room_id", roomID)),
	}
}

// Run dispatches job.Room events until ctx is cancelled or the room's
// Events channel closes (on disconnect).
func (t *RoomTransport) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-t.room.Events:
			if !ok {
				return nil
			}
			t.handle(ctx, ev)
		}
	}
}

func (t *RoomTransport) handle(ctx context.Context, ev *job.Event) {
	switch ev.Type {
	case job.EventParticipantConnected:
		t.onParticipantConnected(ctx)
	case job.EventParticipantDisconnected:
		t.onParticipantDisconnected(ctx)
	case job.EventTrackSubscribed:
		t.onTrackSubscribed(ctx, ev)
	}
}

// onParticipantConnected creates a session the first time a participant
// joins the room (§6: "a participant-joined event -> create session").
// SessionManager.Create is idempotent-safe here since it itself rejects a
// second Create for the same room with ErrAlreadyExists.
func (t *RoomTransport) onParticipantConnected(ctx context.Context) {
	agentCfg, err := t.resolveAgentConfig(t.roomID)
	if err != nil {
		t.log.Error("failed to resolve agent config", slog.Any("error", err))
		return
	}

	if _, err := t.mgr.Create(t.roomID, agentCfg); err != nil {
		if !errors.Is(err, sessionmanager.ErrAlreadyExists) {
			t.log.Error("failed to create session", slog.Any("error", err))
		}
		return
	}

	sess, err := t.mgr.GetByRoom(t.roomID)
	if err != nil {
		t.log.Error("session vanished immediately after create", slog.Any("error", err))
		return
	}

	t.mu.Lock()
	t.sess = sess
	t.mu.Unlock()

	if err := t.publishAssistantTrack(sess); err != nil {
		t.log.Error("failed to publish assistant audio track", slog.Any("error", err))
	}

	go t.pumpOutbound(ctx, sess)
	go t.forwardControlEvents(ctx, sess)
}

// onParticipantDisconnected destroys the session once nobody is left in
// the room (§6: "room-closed/track-unsubscribed -> destroy session";
// simplified here to "no participants remain", since job.Room does not
// surface a distinct room-closed event — see DESIGN.md).
func (t *RoomTransport) onParticipantDisconnected(ctx context.Context) {
	if len(t.room.GetParticipants()) > 0 {
		return
	}
	t.mgr.DestroyByRoom(ctx, t.roomID)
	t.mu.Lock()
	t.sess = nil
	t.mu.Unlock()
}

func (t *RoomTransport) onTrackSubscribed(ctx context.Context, ev *job.Event) {
	if ev.Track == nil || ev.Track.Type != livekit.TrackType_AUDIO || ev.RawTrack == nil {
		return
	}

	t.mu.Lock()
	sess := t.sess
	t.mu.Unlock()
	if sess == nil {
		t.log.Warn("audio track subscribed before session existed, dropping")
		return
	}

	go t.pumpInbound(ctx, sess, ev.RawTrack)
}

func (t *RoomTransport) currentSession() *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess
}
