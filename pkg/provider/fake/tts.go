package fake

import (
	"context"
	"sync"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// TTS produces one fixed PCM chunk per pushed text fragment, in order,
// preserving the ordered-output guarantee a real provider makes.
type TTS struct{}

func (f *TTS) Open(ctx context.Context, cfg provider.TTSStreamConfig) (provider.TTSProviderStream, error) {
	return &ttsStream{
		chunks: make(chan media.Frame, 32),
		rate:   cfg.SampleRate,
	}, nil
}

type ttsStream struct {
	mu        sync.Mutex
	chunks    chan media.Frame
	rate      int
	cancelled bool
	closed    bool
}

func (s *ttsStream) PushText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.closed {
		return nil
	}
	frame := media.NewFrame([]byte(text), s.rate, 1, media.SampleFormatS16LE)
	select {
	case s.chunks <- frame:
	default:
	}
	return nil
}

func (s *ttsStream) Chunks() <-chan media.Frame { return s.chunks }

func (s *ttsStream) CloseSend(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
	return nil
}

func (s *ttsStream) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled && !s.closed {
		s.cancelled = true
		s.closed = true
		close(s.chunks)
	}
}
