// Package sessionmanager implements the SessionManager auxiliary component
// (§4.1): the process-wide map from room id to Session, singleton-per-room
// enforcement, idle-timeout reaping, and bounded-drain shutdown.
package sessionmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicecore/internal/chathistory"
	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/pkg/provider"
)

// entry pairs a Session with the room id it was created for, so the idle
// sweep and Destroy can both update the room index under one lock.
type entry struct {
	roomID  string
	session *Session
}

// Session is an alias for session.Session, the running EventLoop; the room
// id Destroy needs to remove it from the map is kept beside it in entry.
type Session = session.Session

// Manager owns the room-id -> Session map (§3 "Sessions map ... protected
// by a mutex; modifications are create/destroy only (rare)"). Grounded on
// the teacher's pkg/job/room.go Room struct (a sync.RWMutex field guarding
// a plain map, connected/closed bool flags) generalized from one room to
// many.
type Manager struct {
	cfg      config.Config
	resolver Resolver
	counter  chathistory.TokenCounter
	metrics  *session.Collector
	log      *slog.Logger

	mu     sync.RWMutex
	byRoom map[string]*entry
	byID   map[string]*entry
	closed bool

	idleStop chan struct{}
	idleDone chan struct{}
}

// New constructs a Manager and starts its idle-timeout sweep goroutine.
// counter must be non-nil: every session's history counts tokens when a
// turn is appended. metrics may be nil to skip Prometheus export.
func New(cfg config.Config, resolver Resolver, counter chathistory.TokenCounter, metrics *session.Collector, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		resolver: resolver,
		counter:  counter,
		metrics:  metrics,
		log:      log,
		byRoom:   make(map[string]*entry),
		byID:     make(map[string]*entry),
		idleStop: make(chan struct{}),
		idleDone: make(chan struct{}),
	}
	go m.idleSweepLoop()
	return m
}

// Create resolves agentCfg into concrete provider adapters and starts a
// new Session bound to roomID. Returns ErrAlreadyExists if a live session
// already occupies the room, ErrConfigInvalid if the STT/LLM/TTS triple
// cannot be resolved (§4.1).
func (m *Manager) Create(roomID string, agentCfg provider.AgentConfig) (sessionID string, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("sessionmanager: shutting down")
	}
	if _, exists := m.byRoom[roomID]; exists {
		m.mu.Unlock()
		return "", ErrAlreadyExists
	}
	m.mu.Unlock()

	var metrics *session.Metrics
	if m.metrics != nil {
		metrics = session.NewMetrics(m.metrics, roomID)
	}

	deps, err := m.resolver.Resolve(agentCfg, m.counter, metrics)
	if err != nil {
		return "", err
	}

	id := roomID + "/" + newSessionSuffix()
	s := session.New(id, agentCfg, m.cfg, deps, m.log.With(slog.String("room_id", roomID)))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("sessionmanager: shutting down")
	}
	if _, exists := m.byRoom[roomID]; exists {
		m.mu.Unlock()
		return "", ErrAlreadyExists
	}
	e := &entry{roomID: roomID, session: s}
	m.byRoom[roomID] = e
	m.byID[id] = e
	m.mu.Unlock()

	s.Start()
	m.log.Info("session created", slog.String("room_id", roomID), slog.String("session_id", id))
	return id, nil
}

// Get looks up a session by id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.byID[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e.session, nil
}

// GetByRoom looks up a session by room id.
func (m *Manager) GetByRoom(roomID string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.byRoom[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e.session, nil
}

// Destroy triggers cooperative shutdown (CLOSING) for sessionID and
// removes it from the map once drained. Idempotent: destroying an unknown
// id is a no-op, since §4.1 treats destruction errors as logged and
// swallowed ("closing is best-effort").
func (m *Manager) Destroy(ctx context.Context, sessionID string) {
	m.mu.Lock()
	e, ok := m.byID[sessionID]
	if ok {
		delete(m.byID, sessionID)
		delete(m.byRoom, e.roomID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	e.session.Stop(ctx)
	m.log.Info("session destroyed", slog.String("room_id", e.roomID), slog.String("session_id", sessionID))
}

// DestroyByRoom destroys whatever session currently occupies roomID, if
// any (used by the transport's room-closed/track-unsubscribed handlers).
func (m *Manager) DestroyByRoom(ctx context.Context, roomID string) {
	m.mu.RLock()
	e, ok := m.byRoom[roomID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.Destroy(ctx, e.session.ID)
}

// ShutdownAll initiates CLOSING on every live session and returns once all
// have drained or timeout elapses, whichever is first (§4.1). It also
// stops the idle-timeout sweep.
func (m *Manager) ShutdownAll(timeout time.Duration) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.byID))
	for _, e := range m.byID {
		sessions = append(sessions, e.session)
	}
	m.byID = make(map[string]*entry)
	m.byRoom = make(map[string]*entry)
	m.mu.Unlock()

	close(m.idleStop)
	<-m.idleDone

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop(ctx)
		}(s)
	}
	wg.Wait()
	m.log.Info("all sessions drained", slog.Int("count", len(sessions)))
}

// idleSweepLoop periodically destroys sessions that have had no inbound
// activity for SESSION_IDLE_TIMEOUT_S (§3: "destroyed on ... idle timeout
// (default 30 s of no participant)"). Grounded on the teacher's worker.go
// backoff-loop shape (ticker + select on a stop channel), generalized from
// reconnect-backoff to idle-reaping.
func (m *Manager) idleSweepLoop() {
	defer close(m.idleDone)

	interval := m.cfg.SessionIdleTimeout() / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.idleStop:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() {
	deadline := m.cfg.SessionIdleTimeout()

	m.mu.RLock()
	candidates := make([]*Session, 0)
	for _, e := range m.byID {
		if time.Since(e.session.LastActivity()) > deadline {
			candidates = append(candidates, e.session)
		}
	}
	m.mu.RUnlock()

	for _, s := range candidates {
		m.log.Info("reaping idle session", slog.String("session_id", s.ID))
		m.Destroy(context.Background(), s.ID)
	}
}

var sessionSuffixCounter int64
var sessionSuffixMu sync.Mutex

// newSessionSuffix returns a monotonically increasing decimal string,
// avoiding any dependency on math/rand or a UUID library for something
// this module never needs to be globally unique — only unique within this
// process's lifetime of byID keys.
func newSessionSuffix() string {
	sessionSuffixMu.Lock()
	defer sessionSuffixMu.Unlock()
	sessionSuffixCounter++
	return fmt.Sprintf("%d", sessionSuffixCounter)
}
