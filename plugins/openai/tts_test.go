package openai

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// newTestSpeechStream builds a speechStream without starting its run()
// worker, so these tests can exercise cancellation and channel plumbing
// without making a real CreateSpeech network call.
func newTestSpeechStream() *speechStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &speechStream{
		cfg:      provider.TTSStreamConfig{Voice: "alloy", SampleRate: 16000},
		textCh:   make(chan string, 4),
		chunks:   make(chan media.Frame, 4),
		cancelFn: cancel,
		ctx:      ctx,
		done:     make(chan struct{}),
	}
}

func TestSpeechStream_CancelClosesContext(t *testing.T) {
	is := is.New(t)

	s := newTestSpeechStream()
	s.Cancel()

	select {
	case <-s.ctx.Done():
	default:
		is.True(false) // Cancel must close the stream's context
	}
}

func TestSpeechStream_PushTextRespectsCancel(t *testing.T) {
	is := is.New(t)

	s := newTestSpeechStream()
	s.textCh = make(chan string) // unbuffered, so PushText can't complete without a consumer
	s.Cancel()

	err := s.PushText(context.Background(), "hello")
	is.True(err != nil)
}

func TestSpeechStream_CloseSendRespectsCallerContext(t *testing.T) {
	is := is.New(t)

	s := newTestSpeechStream()
	// run() was never started, so s.done never closes on its own; CloseSend
	// must still return once the caller's context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.CloseSend(ctx)
	is.True(err != nil)
}
