package session

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/provider/fake"
	"github.com/matryer/is"
)

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.VADMinSpeechMS = 10
	cfg.VADMinSilenceMS = 20
	cfg.PreRollMS = 10
	cfg.PreTTSBufferingLevel = config.BufferingNone
	return cfg
}

func frameAt(t time.Time) media.Frame {
	f := media.NewFrame(make([]byte, 64), media.CanonicalSampleRate, media.CanonicalChannels, media.SampleFormatS16LE)
	f.TimestampNS = t.UnixNano()
	return f
}

// speak feeds enough above-threshold frames to enter CAPTURING.
func speak(s *Session, base time.Time, n int) time.Time {
	t := base
	for i := 0; i < n; i++ {
		s.HandleFrame(context.Background(), frameAt(t))
		t = t.Add(4 * time.Millisecond)
	}
	return t
}

// silence feeds enough below-threshold frames to exit CAPTURING.
func silence(s *Session, base time.Time, n int) time.Time {
	t := base
	for i := 0; i < n; i++ {
		s.HandleFrame(context.Background(), frameAt(t))
		t = t.Add(4 * time.Millisecond)
	}
	return t
}

func pollState(t *testing.T, s *Session, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session never reached state %s, stuck at %s", want, s.State())
}

func newTestSession(vadProbs []float64, sttFinal, llmResponse string) *Session {
	deps := Deps{
		VAD:     fake.NewVAD(media.CanonicalSampleRate, vadProbs...),
		STT:     fake.NewSTT(sttFinal),
		LLM:     fake.NewLLM(llmResponse),
		TTS:     &fake.TTS{},
		Counter: charCounter{},
	}
	agentCfg := provider.AgentConfig{SystemPrompt: "you are a helpful agent"}
	return New("sess-1", agentCfg, testConfig(), deps, nil)
}

func TestSession_StartEntersListening(t *testing.T) {
	is := is.New(t)

	s := newTestSession(nil, "", "")
	is.Equal(s.State(), StateIdle)
	s.Start()
	is.Equal(s.State(), StateListening)
}

func TestSession_FullTurnReturnsToListening(t *testing.T) {
	is := is.New(t)

	// enough high-probability frames to capture, then enough low ones to end
	probs := make([]float64, 0, 20)
	for i := 0; i < 6; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < 10; i++ {
		probs = append(probs, 0.1)
	}

	s := newTestSession(probs, "hello there", "hi, how can I help?")
	s.Start()

	base := time.Now()
	base = speak(s, base, 6)
	is.Equal(s.State(), StateCapturing)

	silence(s, base, 10)
	// endCapture transitions to THINKING synchronously; the goroutine then
	// drives THINKING -> SPEAKING -> LISTENING asynchronously.
	pollState(t, s, StateListening, time.Second)
}

func TestSession_EmptyFinalDropsTurn(t *testing.T) {
	is := is.New(t)

	probs := make([]float64, 0, 20)
	for i := 0; i < 6; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < 10; i++ {
		probs = append(probs, 0.1)
	}

	// sttFinal = "" makes the STT fake's Close() return an empty final even
	// though audio was pushed during the capture.
	s := newTestSession(probs, "", "unused")
	s.Start()

	base := time.Now()
	base = speak(s, base, 6)
	silence(s, base, 10)

	pollState(t, s, StateListening, time.Second)
	is.Equal(s.hist.Len(), 0) // dropped turn never reaches history
}

func TestSession_DrainOutboundEmptiesQueue(t *testing.T) {
	is := is.New(t)

	s := newTestSession(nil, "", "")
	for i := 0; i < 5; i++ {
		s.outbound <- media.NewFrame(make([]byte, 64), media.CanonicalSampleRate, media.CanonicalChannels, media.SampleFormatS16LE)
	}

	s.drainOutbound()
	is.Equal(len(s.outbound), 0)

	select {
	case <-s.outbound:
		t.Fatal("outbound should be empty after drainOutbound")
	default:
	}
}

func TestSession_PublishMetricsUpdateSendsSnapshot(t *testing.T) {
	is := is.New(t)

	s := newTestSession(nil, "", "")
	s.Metrics = NewMetrics(nil, "room-1")
	s.Metrics.RecordSTTTimeout()

	s.publishMetricsUpdate()

	evt := <-s.ControlEvents()
	is.Equal(evt.Type, "metrics_update")
	is.Equal(evt.Data["stt_timeout"], 1)
}

func TestSession_StopDrainsAndCloses(t *testing.T) {
	is := is.New(t)

	s := newTestSession(nil, "", "")
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	is.Equal(s.State(), StateClosed)
	select {
	case <-s.Done():
	default:
		t.Fatal("Done() channel should be closed after Stop")
	}
}
