// Package session implements Session/EventLoop (§4.2): the central
// orchestrator driving the SessionState machine, the barge-in protocol,
// and per-turn cancellation. Grounded on the teacher's agents/session.go
// ownership model (one goroutine owns state and chat context; all
// mutation happens through its own methods) without that file's
// fmt.Println-based debug logging — this package uses log/slog throughout
// (SPEC_FULL.md ambient stack).
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/voicecore/internal/chatengine"
	"github.com/chriscow/voicecore/internal/chathistory"
	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/mediaio"
	"github.com/chriscow/voicecore/internal/sttstream"
	"github.com/chriscow/voicecore/internal/ttsstream"
	"github.com/chriscow/voicecore/internal/vadgate"
	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// inboundQueueDepth bounds the inbound frame channel at 50 frames of 32ms
// audio (1.6s), per §5's backpressure table.
const inboundQueueDepth = 50

// outboundQueueDepth bounds the outbound TTS-chunk channel at 40 chunks of
// ~20ms audio, per §5's backpressure table.
const outboundQueueDepth = 40

// Session is the per-room orchestrator. One Session serves exactly one
// room (enforced by SessionManager); HandleFrame is invoked by the
// transport's inbound router and is NOT safe to call concurrently with
// itself — callers must serialize frame delivery per session, which the
// real-time transport naturally does (one track, one reader goroutine).
type Session struct {
	ID string

	cfg       config.Config
	agentCfg  provider.AgentConfig
	log       *slog.Logger

	gate  *vadgate.Gate
	stt   provider.STT
	tts   provider.TTS
	chat  *chatengine.Engine
	hist  *chathistory.History
	media *mediaio.MediaIO

	// outbound carries canonical-rate (16kHz mono) PCM chunks produced by
	// the current turn's TTS stream. The transport reads this, resamples
	// to the live track's rate via MediaIO.PrepareOutbound, encodes, and
	// paces writes to the outbound track's real-time clock (§5: that
	// pacing needs the transport's own clock, so it isn't done here).
	outbound chan media.Frame

	Metrics *Metrics

	stateMu sync.Mutex
	state   State

	turnMu     sync.Mutex // guards the fields below, set in beginCapture, cleared in finishTurn
	turnCtx    context.Context
	turnCancel context.CancelFunc
	cancelled  atomic.Bool
	turnDone   chan struct{}
	sttStream  *sttstream.Stream

	closeOnce sync.Once
	closed    chan struct{}

	lastActivity atomic.Int64 // UnixNano, for SessionManager's idle sweep
}

// Deps bundles a Session's wired collaborators, built by pkg/registry from
// an AgentConfig.
type Deps struct {
	VAD       provider.VAD
	STT       provider.STT
	LLM       provider.LLM
	TTS       provider.TTS
	Retriever chatengine.Retriever // nil if the agent has no RAG configured
	Counter   chathistory.TokenCounter
	Metrics   *Metrics
}

// New constructs a Session in state IDLE.
func New(id string, agentCfg provider.AgentConfig, cfg config.Config, deps Deps, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("session_id", id))

	gateCfg := vadgate.Config{
		ThresholdOn:  cfg.VADThresholdOn,
		ThresholdOff: cfg.VADThresholdOff,
		MinSpeech:    cfg.VADMinSpeech(),
		MinSilence:   cfg.VADMinSilence(),
		PreRoll:      cfg.PreRoll(),
	}

	// deps.Metrics is a *Metrics that may be nil; passed directly it would
	// box into a non-nil chatengine.MetricsRecorder interface holding a nil
	// pointer, so every e.metrics != nil check downstream would wrongly pass.
	var metricsRecorder chatengine.MetricsRecorder
	if deps.Metrics != nil {
		metricsRecorder = deps.Metrics
	}

	s := &Session{
		ID:       id,
		cfg:      cfg,
		agentCfg: agentCfg,
		log:      log,
		gate:     vadgate.New(deps.VAD, gateCfg),
		stt:      deps.STT,
		tts:      deps.TTS,
		chat:     chatengine.New(deps.LLM, deps.Retriever, cfg, metricsRecorder, log),
		hist:     chathistory.New(agentCfg.SystemPrompt, deps.Counter, cfg.HistoryMaxTurns, cfg.HistoryMaxTokens),
		media:    mediaio.New(log),
		outbound: make(chan media.Frame, outboundQueueDepth),
		Metrics:  deps.Metrics,
		state:    StateIdle,
		closed:   make(chan struct{}),
	}
	s.touch()
	return s
}

// Start transitions IDLE -> LISTENING (§4.2).
func (s *Session) Start() {
	s.setState(StateListening)
	s.log.Info("session started")
}

// State returns the current SessionState.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// LastActivity returns the last time HandleFrame observed inbound audio,
// used by SessionManager's idle-timeout sweep.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// ControlEvents exposes MediaIO's control sidechannel for the transport
// layer to fan out to UI clients.
func (s *Session) ControlEvents() <-chan mediaio.ControlEvent {
	return s.media.ControlEvents()
}

// Outbound exposes the canonical-rate TTS PCM produced by in-flight turns,
// for the transport to resample/encode/write to the session's outbound
// track.
func (s *Session) Outbound() <-chan media.Frame {
	return s.outbound
}

// HandleFrame runs one inbound canonical-format frame through VADGate and
// drives the resulting state transition. Blocking only on VAD inference
// (bounded, §5) and, while CAPTURING, on pushing audio to the STT stream.
func (s *Session) HandleFrame(ctx context.Context, frame media.Frame) {
	s.touch()

	canon, ok := s.media.AcceptInbound(frame, time.Now())
	if !ok {
		return
	}

	ev, err := s.gate.Push(ctx, canon)
	if err != nil {
		s.log.Warn("vad inference failed", slog.Any("error", err))
		return
	}

	switch s.State() {
	case StateListening:
		if ev.SpeechStarted {
			s.beginCapture(ctx, ev)
		}
	case StateCapturing:
		if ev.SpeechEnded {
			s.endCapture(ctx, ev)
		} else if s.sttStream != nil {
			for _, f := range ev.FramesToSTT {
				_ = s.sttStream.Push(ctx, f)
			}
		}
	case StateThinking, StateSpeaking:
		if ev.SpeechStarted {
			s.interrupt()
		}
	default:
		// IDLE, INTERRUPTED, CLOSING, CLOSED: frames are dropped; the
		// gate still tracks hysteresis state for when we return to
		// LISTENING.
	}
}

func (s *Session) beginCapture(ctx context.Context, ev vadgate.Event) {
	s.setState(StateCapturing)
	s.media.PublishControl(mediaio.ControlEvent{Type: "speech_start", Data: map[string]any{"ts": time.Now().UnixMilli()}})

	turnCtx, cancel := context.WithCancel(ctx)
	stream, err := sttstream.Open(turnCtx, s.stt, provider.STTStreamConfig{SampleRate: media.CanonicalSampleRate}, s.log)
	if err != nil {
		cancel()
		s.log.Error("failed to open stt stream", slog.Any("error", err))
		s.setState(StateListening)
		s.gate.Reset()
		return
	}

	s.turnMu.Lock()
	s.turnCtx = turnCtx
	s.turnCancel = cancel
	s.turnDone = make(chan struct{})
	s.sttStream = stream
	s.turnMu.Unlock()
	s.cancelled.Store(false)

	for _, f := range ev.FramesToSTT {
		_ = stream.Push(turnCtx, f)
	}
}

func (s *Session) endCapture(ctx context.Context, ev vadgate.Event) {
	s.turnMu.Lock()
	turnCtx, stream, done := s.turnCtx, s.sttStream, s.turnDone
	s.turnMu.Unlock()

	for _, f := range ev.FramesToSTT {
		_ = stream.Push(ctx, f)
	}
	s.setState(StateThinking)
	s.media.PublishControl(mediaio.ControlEvent{Type: "speech_end", Data: map[string]any{"ts": time.Now().UnixMilli()}})

	go s.runTurn(turnCtx, stream, done)
}

// runTurn awaits the STT final transcript, then drives the chat+TTS
// pipeline to completion or cancellation. Runs on its own goroutine so
// HandleFrame is never blocked awaiting a turn's completion (§5: EventLoop
// plus concurrent chat+TTS driver worker).
func (s *Session) runTurn(turnCtx context.Context, stt *sttstream.Stream, done chan struct{}) {
	defer close(done)

	finalCtx, cancel := context.WithTimeout(turnCtx, s.cfg.STTFinalTimeout())
	final, err := stt.Close(finalCtx)
	cancel()

	if stt.Degraded() && s.Metrics != nil {
		s.Metrics.RecordSTTDegraded()
	}

	if err != nil || final.Text == "" {
		if turnCtx.Err() == nil && s.Metrics != nil {
			s.Metrics.RecordSTTTimeout()
		}
		s.publishMetricsUpdate()
		s.log.Info("turn dropped: empty final transcript")
		s.finishTurn(false)
		return
	}

	s.media.PublishControl(mediaio.ControlEvent{Type: "transcript_update", Data: map[string]any{"text": final.Text, "is_final": true}})

	fragments, assembled := s.chat.Run(turnCtx, s.agentCfg.SystemPrompt, s.hist, final.Text)

	var ttsStream *ttsstream.Stream
	var ttsOpenedAt time.Time
	firstTokenAt := time.Now()

	for fr := range fragments {
		if ttsStream == nil {
			s.setState(StateSpeaking)
			if s.Metrics != nil {
				s.Metrics.RecordFirstChunkLatency(time.Since(firstTokenAt))
			}
			var openErr error
			ttsStream, openErr = ttsstream.Open(turnCtx, s.tts, provider.TTSStreamConfig{SampleRate: media.CanonicalSampleRate}, s.log)
			if openErr != nil {
				s.log.Error("failed to open tts stream", slog.Any("error", openErr))
				break
			}
			ttsOpenedAt = time.Now()
		}

		if fr.Text != "" {
			_ = ttsStream.PushText(turnCtx, fr.Text)
		}
		s.media.PublishControl(mediaio.ControlEvent{
			Type: "assistant_response",
			Data: map[string]any{"text": fr.Text, "is_complete": fr.IsTurnFinal, "is_first_token": fr.IsFirst},
		})

		if fr.IsTurnFinal {
			_ = ttsStream.CloseWhenDrained(turnCtx)
		}
	}

	if ttsStream != nil {
		// First chunk is bounded separately from the rest of the stream
		// (§4.2 Timeouts: "TTS first-chunk: 1500 ms"); time.Until handles a
		// deadline already passed (text pushed slowly across many
		// fragments) by firing immediately rather than going negative.
		firstChunkTimeout := time.After(time.Until(ttsOpenedAt.Add(s.cfg.TTSFirstChunkTimeout())))
		chunksCh := ttsStream.Chunks()
		var playbackStartedAt time.Time

	chunkLoop:
		for {
			select {
			case chunk, ok := <-chunksCh:
				if !ok {
					break chunkLoop
				}
				firstChunkTimeout = nil
				if playbackStartedAt.IsZero() {
					playbackStartedAt = time.Now()
					if s.Metrics != nil {
						s.Metrics.RecordPlaybackStartLatency(playbackStartedAt.Sub(firstTokenAt))
					}
				}

				// §5 backpressure: if the outbound track can't absorb audio
				// for more than 2s, treat the turn as interrupted rather
				// than blocking runTurn forever on a stalled consumer.
				select {
				case s.outbound <- chunk:
					if s.Metrics != nil {
						s.Metrics.RecordAudioChunk()
					}
				case <-time.After(mediaio.StalledPauseThreshold):
					s.log.Warn("outbound stalled past threshold, interrupting turn")
					s.interrupt()
				case <-turnCtx.Done():
				}
			case <-firstChunkTimeout:
				s.log.Warn("tts first chunk timed out, interrupting turn")
				s.interrupt()
			case <-turnCtx.Done():
				break chunkLoop
			}
		}
	}

	interrupted := turnCtx.Err() != nil
	if interrupted {
		s.drainOutbound()
		s.media.PublishControl(mediaio.ControlEvent{Type: "bot_response_interrupted"})
	}

	// §4.2 barge-in rule 5: record the user's final turn and only the
	// assistant prefix actually emitted, regardless of whether the turn
	// completed or was cut short.
	s.hist.Append(provider.RoleUser, final.Text)
	s.hist.Append(provider.RoleAssistant, assembled.String())
	if s.Metrics != nil {
		s.Metrics.RecordTokens(len(assembled.String()))
	}
	s.publishMetricsUpdate()

	s.finishTurn(interrupted)
}

// publishMetricsUpdate sends the session's current counters over the
// control sidechannel (§6: "metrics_update"), letting UI clients observe
// degraded-mode counters like stt_timeout and retrieval_degraded as they
// change (§8).
func (s *Session) publishMetricsUpdate() {
	if s.Metrics == nil {
		return
	}
	snap := s.Metrics.Snapshot()
	s.media.PublishControl(mediaio.ControlEvent{
		Type: "metrics_update",
		Data: map[string]any{
			"tokens":                    snap.Tokens,
			"audio_chunks":              snap.AudioChunks,
			"first_chunk_latency_ms":    snap.FirstChunkLatencyMS,
			"playback_start_latency_ms": snap.PlaybackStartLatencyMS,
			"stt_timeout":               snap.STTTimeout,
			"retrieval_degraded":        snap.RetrievalDegraded,
			"stt_degraded":              snap.STTDegraded,
			"llm_fallback_used":         snap.LLMFallbackUsed,
		},
	})
}

// drainOutbound discards any TTS PCM already queued for playback, per the
// barge-in contract's step 2 ("discard any already-queued outbound PCM",
// §4.2) and the §8 invariant that the outbound queue be fully drained
// within 200ms of a barge-in. s.outbound is drained here directly; the
// transport's own assistantSampleProvider queue is drained separately once
// it observes the bot_response_interrupted control event this method's
// caller publishes right after (internal/transport/audio.go).
func (s *Session) drainOutbound() {
	for {
		select {
		case <-s.outbound:
		default:
			return
		}
	}
}

// finishTurn resets gate/turn state and returns the session to LISTENING,
// whether the turn completed normally, was dropped, or was interrupted.
func (s *Session) finishTurn(wasInterrupted bool) {
	if wasInterrupted {
		s.setState(StateInterrupted)
	}
	s.gate.Reset()

	s.turnMu.Lock()
	s.sttStream = nil
	s.turnCtx = nil
	s.turnCancel = nil
	s.turnMu.Unlock()

	s.setState(StateListening)
}

// interrupt implements the barge-in contract's steps 1-3 (§4.2): set the
// cancel signal exactly once, which unwinds the in-flight STT/LLM/TTS
// suspension points within 200ms. Steps 4-6 (control event, history
// commit, state transition) happen in runTurn once it observes
// turnCtx.Err() != nil.
func (s *Session) interrupt() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.log.Info("barge-in: cancelling in-flight turn")
		s.turnMu.Lock()
		cancel := s.turnCancel
		s.turnMu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	// a second speech_start while already cancelling is a no-op, per §5:
	// "A second cancel during an ongoing cancel is a no-op."
}

// Stop fires CLOSING (§4.2): cancels any in-flight turn and waits for it
// to drain before releasing resources. Idempotent.
func (s *Session) Stop(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.interrupt()

		s.turnMu.Lock()
		done := s.turnDone
		s.turnMu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				s.log.Warn("session stop: turn did not drain before deadline")
			}
		}

		s.setState(StateClosed)
		close(s.closed)
	})
}

// Done is closed once Stop has fully drained the session.
func (s *Session) Done() <-chan struct{} { return s.closed }
