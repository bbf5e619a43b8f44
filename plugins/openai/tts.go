package openai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// ttsSampleRate is the fixed PCM rate OpenAI's speech endpoint returns for
// the "pcm" response format.
const ttsSampleRate = 24000

// TTS adapts OpenAI's speech synthesis endpoint to provider.TTS.
type TTS struct {
	client *openai.Client
	model  openai.SpeechModel
}

func NewTTS(apiKey string) *TTS {
	return &TTS{client: openai.NewClient(apiKey), model: openai.TTSModel1}
}

func (t *TTS) Open(ctx context.Context, cfg provider.TTSStreamConfig) (provider.TTSProviderStream, error) {
	if cfg.Voice == "" {
		cfg.Voice = defaultTTSVoice
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	s := &speechStream{
		client:   t.client,
		model:    t.model,
		cfg:      cfg,
		textCh:   make(chan string, 16),
		chunks:   make(chan media.Frame, 32),
		cancelFn: cancel,
		ctx:      streamCtx,
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// speechStream synthesizes queued text fragments strictly in order, one at
// a time. The teacher's OpenAISynthesisStream instead spawned a goroutine
// per sentence (SendText's "go s.processSingleText(sentence)"), which can
// deliver audio out of send order — that would violate §4.7's "never
// reorders" invariant, so this serializes through a single worker instead
// of copying that shortcut.
type speechStream struct {
	client *openai.Client
	model  openai.SpeechModel
	cfg    provider.TTSStreamConfig

	textCh   chan string
	chunks   chan media.Frame
	cancelFn context.CancelFunc
	ctx      context.Context
	done     chan struct{}
}

func (s *speechStream) run() {
	defer close(s.chunks)
	defer close(s.done)

	for {
		select {
		case text, ok := <-s.textCh:
			if !ok {
				return
			}
			s.synthesize(text)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *speechStream) synthesize(text string) {
	resp, err := s.client.CreateSpeech(s.ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          openai.SpeechVoice(s.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil || len(pcm) == 0 {
		return
	}

	frame := media.NewFrame(pcm, ttsSampleRate, 1, media.SampleFormatS16LE)
	out := frame
	if s.cfg.SampleRate != 0 {
		out = media.Resample(frame, s.cfg.SampleRate)
	}

	select {
	case s.chunks <- out:
	case <-s.ctx.Done():
	}
}

func (s *speechStream) PushText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	select {
	case s.textCh <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *speechStream) Chunks() <-chan media.Frame {
	return s.chunks
}

func (s *speechStream) CloseSend(ctx context.Context) error {
	close(s.textCh)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the worker within one in-flight CreateSpeech call and
// discards anything not yet sent on Chunks (§4.7, §8 barge-in invariant).
func (s *speechStream) Cancel() {
	s.cancelFn()
}
