package sessionmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chriscow/voicecore/internal/chathistory"
	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/provider/fake"
	"github.com/matryer/is"
)

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

// fakeResolver builds Deps from fake providers, with an optional forced
// error to exercise ErrConfigInvalid propagation.
type fakeResolver struct {
	failWith error
}

func (f *fakeResolver) Resolve(agentCfg provider.AgentConfig, counter chathistory.TokenCounter, metrics *session.Metrics) (session.Deps, error) {
	if f.failWith != nil {
		return session.Deps{}, f.failWith
	}
	return session.Deps{
		VAD:     fake.NewVAD(media.CanonicalSampleRate),
		STT:     fake.NewSTT(""),
		LLM:     fake.NewLLM(""),
		TTS:     &fake.TTS{},
		Counter: counter,
		Metrics: metrics,
	}, nil
}

func testCfg() config.Config {
	cfg := config.Default()
	cfg.SessionIdleTimeoutS = 1 // seconds; sweep interval is half this, raised to the 1s minimum
	return cfg
}

func TestManager_CreateEnforcesSingletonPerRoom(t *testing.T) {
	is := is.New(t)
	m := New(testCfg(), &fakeResolver{}, charCounter{}, nil, nil)
	defer m.ShutdownAll(time.Second)

	id1, err := m.Create("room-1", provider.AgentConfig{SystemPrompt: "hi"})
	is.NoErr(err)
	is.True(id1 != "")

	_, err = m.Create("room-1", provider.AgentConfig{})
	is.True(errors.Is(err, ErrAlreadyExists))
}

func TestManager_CreatePropagatesConfigInvalid(t *testing.T) {
	is := is.New(t)
	m := New(testCfg(), &fakeResolver{failWith: ErrConfigInvalid}, charCounter{}, nil, nil)
	defer m.ShutdownAll(time.Second)

	_, err := m.Create("room-2", provider.AgentConfig{})
	is.True(errors.Is(err, ErrConfigInvalid))
}

func TestManager_GetAndDestroy(t *testing.T) {
	is := is.New(t)
	m := New(testCfg(), &fakeResolver{}, charCounter{}, nil, nil)
	defer m.ShutdownAll(time.Second)

	id, err := m.Create("room-3", provider.AgentConfig{})
	is.NoErr(err)

	s, err := m.Get(id)
	is.NoErr(err)
	is.Equal(s.State(), session.StateListening)

	m.Destroy(context.Background(), id)

	_, err = m.Get(id)
	is.True(errors.Is(err, ErrNotFound))

	// room is free again
	_, err = m.Create("room-3", provider.AgentConfig{})
	is.NoErr(err)
}

func TestManager_DestroyUnknownIsNoop(t *testing.T) {
	m := New(testCfg(), &fakeResolver{}, charCounter{}, nil, nil)
	defer m.ShutdownAll(time.Second)

	m.Destroy(context.Background(), "does-not-exist") // must not panic
}

func TestManager_IdleSweepReapsStaleSessions(t *testing.T) {
	is := is.New(t)
	cfg := testCfg()
	cfg.SessionIdleTimeoutS = 1
	m := New(cfg, &fakeResolver{}, charCounter{}, nil, nil)
	defer m.ShutdownAll(time.Second)

	id, err := m.Create("room-4", provider.AgentConfig{})
	is.NoErr(err)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := m.Get(id); errors.Is(err, ErrNotFound) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("idle session was never reaped")
}

func TestManager_ShutdownAllDrainsEverySession(t *testing.T) {
	is := is.New(t)
	m := New(testCfg(), &fakeResolver{}, charCounter{}, nil, nil)

	id1, err := m.Create("room-5", provider.AgentConfig{})
	is.NoErr(err)
	id2, err := m.Create("room-6", provider.AgentConfig{})
	is.NoErr(err)

	s1, _ := m.Get(id1)
	s2, _ := m.Get(id2)

	m.ShutdownAll(time.Second)

	is.Equal(s1.State(), session.StateClosed)
	is.Equal(s2.State(), session.StateClosed)

	_, err = m.Create("room-5", provider.AgentConfig{})
	is.True(err != nil) // manager is shut down
}
