package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// flushInterval is how often a whisperStream transcribes its buffered
// audio for an interim result. Whisper has no native streaming endpoint,
// so this mirrors the teacher's WhisperRecognitionStream buffering
// approach (periodic ticker flush) rather than inventing a new one.
const flushInterval = 2 * time.Second

// STT adapts OpenAI's Whisper transcription endpoint to provider.STT.
type STT struct {
	client *openai.Client
}

func NewSTT(apiKey string) *STT {
	return &STT{client: openai.NewClient(apiKey)}
}

func (s *STT) Open(ctx context.Context, cfg provider.STTStreamConfig) (provider.STTProviderStream, error) {
	stream := &whisperStream{
		client: s.client,
		cfg:    cfg,
		events: make(chan provider.STTEvent, 8),
		stop:   make(chan struct{}),
	}
	go stream.run()
	return stream, nil
}

type whisperStream struct {
	client *openai.Client
	cfg    provider.STTStreamConfig

	mu  sync.Mutex
	buf []byte

	events   chan provider.STTEvent
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *whisperStream) Push(ctx context.Context, frame media.Frame) error {
	s.mu.Lock()
	s.buf = append(s.buf, frame.Payload...)
	s.mu.Unlock()
	return nil
}

func (s *whisperStream) Events() <-chan provider.STTEvent {
	return s.events
}

// run flushes the buffer on a fixed interval, matching the teacher's
// processAudioBuffer ticker loop, until stopped.
func (s *whisperStream) run() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(context.Background(), false)
		case <-s.stop:
			return
		}
	}
}

func (s *whisperStream) flush(ctx context.Context, isFinal bool) provider.STTEvent {
	s.mu.Lock()
	pending := s.buf
	if isFinal {
		s.buf = nil
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return provider.STTEvent{IsFinal: isFinal}
	}

	wav := encodeWAV(pending, s.cfg.SampleRate)
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Language: s.cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
	})
	if err != nil {
		return provider.STTEvent{IsFinal: isFinal}
	}

	confidence := 0.95
	if len(resp.Segments) > 0 {
		var total float64
		for _, seg := range resp.Segments {
			total += 1.0 - seg.NoSpeechProb
		}
		confidence = total / float64(len(resp.Segments))
	}

	evt := provider.STTEvent{Text: resp.Text, IsFinal: isFinal, Confidence: confidence}
	select {
	case s.events <- evt:
	default:
	}
	return evt
}

func (s *whisperStream) Close(ctx context.Context) (provider.STTEvent, error) {
	s.stopOnce.Do(func() { close(s.stop) })
	final := s.flush(ctx, true)
	close(s.events)
	return final, nil
}

// encodeWAV wraps raw 16-bit mono PCM in a minimal WAV container, adapted
// from the teacher's WhisperSTT.convertToWAV.
func encodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
