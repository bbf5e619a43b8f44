package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/internal/sessionmanager"
	"github.com/chriscow/voicecore/pkg/job"
	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/provider/fake"
)

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

func newFakeSession(id string) *session.Session {
	deps := session.Deps{
		VAD:     fake.NewVAD(media.CanonicalSampleRate),
		STT:     fake.NewSTT(""),
		LLM:     fake.NewLLM(""),
		TTS:     &fake.TTS{},
		Counter: charCounter{},
	}
	s := session.New(id, provider.AgentConfig{SystemPrompt: "hi"}, config.Default(), deps, nil)
	s.Start()
	return s
}

// fakeManager is a minimal in-memory stand-in for *sessionmanager.Manager,
// letting room_test.go exercise RoomTransport's event handling without a
// real provider/registry stack.
type fakeManager struct {
	createErr error
	byRoom    map[string]*session.Session
	destroyed []string
}

func newFakeManager() *fakeManager {
	return &fakeManager{byRoom: make(map[string]*session.Session)}
}

func (m *fakeManager) Create(roomID string, _ provider.AgentConfig) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	if _, ok := m.byRoom[roomID]; ok {
		return "", sessionmanager.ErrAlreadyExists
	}
	m.byRoom[roomID] = newFakeSession(roomID + "/1")
	return roomID + "/1", nil
}

func (m *fakeManager) GetByRoom(roomID string) (*session.Session, error) {
	s, ok := m.byRoom[roomID]
	if !ok {
		return nil, sessionmanager.ErrNotFound
	}
	return s, nil
}

func (m *fakeManager) DestroyByRoom(ctx context.Context, roomID string) {
	if s, ok := m.byRoom[roomID]; ok {
		s.Stop(ctx)
		delete(m.byRoom, roomID)
		m.destroyed = append(m.destroyed, roomID)
	}
}

func newUnconnectedRoom(t *testing.T) *job.Room {
	t.Helper()
	room, err := job.NewRoom(context.Background(), job.RoomConfig{
		URL:             "wss://example.invalid",
		Token:           "tok",
		RoomName:        "room-1",
		EventBufferSize: 8,
	})
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return room
}

func TestRoomTransport_ParticipantConnectedCreatesSession(t *testing.T) {
	is := is.New(t)
	room := newUnconnectedRoom(t)
	mgr := newFakeManager()
	resolver := func(roomID string) (provider.AgentConfig, error) {
		return provider.AgentConfig{SystemPrompt: "hi"}, nil
	}

	rt := NewRoomTransport("room-1", room, mgr, resolver, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	room.Events <- job.NewEvent(job.EventParticipantConnected)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rt.currentSession() != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	is.True(rt.currentSession() != nil)
	_, err := mgr.GetByRoom("room-1")
	is.NoErr(err)
}

// A second EventParticipantConnected in the same room (e.g. a second
// participant joining) hits Manager.Create's singleton-per-room
// ErrAlreadyExists. onParticipantConnected must tolerate that without
// clearing the session this same transport already holds from the first
// connect.
func TestRoomTransport_SecondParticipantConnectedToleratesAlreadyExists(t *testing.T) {
	is := is.New(t)
	room := newUnconnectedRoom(t)
	mgr := newFakeManager()
	resolver := func(roomID string) (provider.AgentConfig, error) {
		return provider.AgentConfig{}, nil
	}

	rt := NewRoomTransport("room-1", room, mgr, resolver, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	room.Events <- job.NewEvent(job.EventParticipantConnected)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rt.currentSession() != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	first := rt.currentSession()
	is.True(first != nil)

	room.Events <- job.NewEvent(job.EventParticipantConnected)
	time.Sleep(20 * time.Millisecond)

	is.True(rt.currentSession() == first)
}

func TestRoomTransport_ResolveConfigErrorSkipsCreate(t *testing.T) {
	is := is.New(t)
	room := newUnconnectedRoom(t)
	mgr := newFakeManager()
	resolver := func(roomID string) (provider.AgentConfig, error) {
		return provider.AgentConfig{}, errors.New("no config for room")
	}

	rt := NewRoomTransport("room-1", room, mgr, resolver, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	room.Events <- job.NewEvent(job.EventParticipantConnected)
	time.Sleep(20 * time.Millisecond)

	is.True(rt.currentSession() == nil)
	is.Equal(len(mgr.byRoom), 0)
}

func TestRoomTransport_TrackSubscribedWithoutSessionIsNoop(t *testing.T) {
	room := newUnconnectedRoom(t)
	mgr := newFakeManager()
	resolver := func(roomID string) (provider.AgentConfig, error) {
		return provider.AgentConfig{}, nil
	}

	rt := NewRoomTransport("room-1", room, mgr, resolver, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)

	// No participant-connected event fired yet; track-subscribed must not
	// panic or spawn a pump against a nil session.
	room.Events <- job.NewEvent(job.EventTrackSubscribed)
	time.Sleep(20 * time.Millisecond)
}
