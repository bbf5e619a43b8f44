package session

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot is the per-session metrics shape exposed over the
// metrics_update control event (§6), matching the supplemented
// degraded-mode counters (SPEC_FULL.md).
type Snapshot struct {
	Tokens                 int
	AudioChunks            int
	FirstChunkLatencyMS    int64
	PlaybackStartLatencyMS int64
	STTTimeout             int
	RetrievalDegraded      int
	STTDegraded            int
	LLMFallbackUsed        int
}

// Metrics accumulates one session's counters, both for the in-process
// Snapshot used by the control sidechannel and (via Collector) as
// Prometheus vectors labelled by room, not session id, to bound
// cardinality (SPEC_FULL.md).
type Metrics struct {
	mu sync.Mutex
	s  Snapshot

	collector *Collector
	room      string
}

// NewMetrics builds a Metrics accumulator. collector may be nil (no
// Prometheus export, e.g. in unit tests).
func NewMetrics(collector *Collector, room string) *Metrics {
	return &Metrics{collector: collector, room: room}
}

func (m *Metrics) RecordTokens(n int) {
	m.mu.Lock()
	m.s.Tokens += n
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.tokensTotal.WithLabelValues(m.room).Add(float64(n))
	}
}

func (m *Metrics) RecordAudioChunk() {
	m.mu.Lock()
	m.s.AudioChunks++
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.audioChunksTotal.WithLabelValues(m.room).Inc()
	}
}

func (m *Metrics) RecordFirstChunkLatency(d time.Duration) {
	m.mu.Lock()
	m.s.FirstChunkLatencyMS = d.Milliseconds()
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.firstChunkLatency.WithLabelValues(m.room).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordPlaybackStartLatency(d time.Duration) {
	m.mu.Lock()
	m.s.PlaybackStartLatencyMS = d.Milliseconds()
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.playbackStartLatency.WithLabelValues(m.room).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordSTTTimeout() {
	m.mu.Lock()
	m.s.STTTimeout++
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.sttTimeoutsTotal.WithLabelValues(m.room).Inc()
	}
}

func (m *Metrics) RecordRetrievalDegraded() {
	m.mu.Lock()
	m.s.RetrievalDegraded++
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.retrievalDegradedTotal.WithLabelValues(m.room).Inc()
	}
}

func (m *Metrics) RecordSTTDegraded() {
	m.mu.Lock()
	m.s.STTDegraded++
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.sttDegradedTotal.WithLabelValues(m.room).Inc()
	}
}

func (m *Metrics) RecordLLMFallbackUsed() {
	m.mu.Lock()
	m.s.LLMFallbackUsed++
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.llmFallbackTotal.WithLabelValues(m.room).Inc()
	}
}

// Snapshot returns a copy of the current counters for a metrics_update
// control event.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

// Collector is the process-wide Prometheus vector set every session's
// Metrics reports into, adapted from BaSui01-agentflow's
// internal/metrics.Collector (promauto-registered CounterVec/HistogramVec
// fields, one NewCollector(namespace) constructor).
type Collector struct {
	tokensTotal            *prometheus.CounterVec
	audioChunksTotal       *prometheus.CounterVec
	firstChunkLatency      *prometheus.HistogramVec
	playbackStartLatency   *prometheus.HistogramVec
	sttTimeoutsTotal       *prometheus.CounterVec
	retrievalDegradedTotal *prometheus.CounterVec
	sttDegradedTotal       *prometheus.CounterVec
	llmFallbackTotal       *prometheus.CounterVec
}

// NewCollector registers the session metric vectors under namespace, once
// per process.
func NewCollector(namespace string) *Collector {
	labels := []string{"room"}
	return &Collector{
		tokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total", Help: "LLM tokens streamed, by room.",
		}, labels),
		audioChunksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tts_audio_chunks_total", Help: "TTS PCM chunks produced, by room.",
		}, labels),
		firstChunkLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_first_token_latency_seconds", Help: "Time to first LLM token, by room.",
		}, labels),
		playbackStartLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tts_playback_start_latency_seconds", Help: "Time to first outbound audio write, by room.",
		}, labels),
		sttTimeoutsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stt_timeouts_total", Help: "STT final-transcript timeouts, by room.",
		}, labels),
		retrievalDegradedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retrieval_degraded_total", Help: "Turns where retrieval degraded to zero chunks, by room.",
		}, labels),
		sttDegradedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stt_degraded_total", Help: "Turns where STT degraded to an empty final, by room.",
		}, labels),
		llmFallbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_fallback_total", Help: "Turns where the LLM fallback phrase was used, by room.",
		}, labels),
	}
}
