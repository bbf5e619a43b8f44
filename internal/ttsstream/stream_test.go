package ttsstream

import (
	"context"
	"testing"

	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/provider/fake"
	"github.com/matryer/is"
)

func TestStream_OrderedChunks(t *testing.T) {
	is := is.New(t)

	tts := &fake.TTS{}
	s, err := Open(context.Background(), tts, provider.TTSStreamConfig{SampleRate: 16000}, nil)
	is.NoErr(err)

	is.NoErr(s.PushText(context.Background(), "one"))
	is.NoErr(s.PushText(context.Background(), "two"))
	is.NoErr(s.CloseWhenDrained(context.Background()))

	var got []string
	for frame := range s.Chunks() {
		got = append(got, string(frame.Payload))
	}

	is.Equal(len(got), 2)
	is.Equal(got[0], "one")
	is.Equal(got[1], "two")
}

func TestStream_CancelClosesChannel(t *testing.T) {
	is := is.New(t)

	tts := &fake.TTS{}
	s, err := Open(context.Background(), tts, provider.TTSStreamConfig{SampleRate: 16000}, nil)
	is.NoErr(err)

	is.NoErr(s.PushText(context.Background(), "one"))
	s.Cancel()

	// channel must close; draining it must not hang
	for range s.Chunks() {
	}
}

func TestStream_EmptyTextIsNoOp(t *testing.T) {
	is := is.New(t)

	tts := &fake.TTS{}
	s, err := Open(context.Background(), tts, provider.TTSStreamConfig{SampleRate: 16000}, nil)
	is.NoErr(err)

	is.NoErr(s.PushText(context.Background(), ""))
	is.NoErr(s.CloseWhenDrained(context.Background()))

	count := 0
	for range s.Chunks() {
		count++
	}
	is.Equal(count, 0)
}
