package openai

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

func TestWhisperStream_PushBuffersPayload(t *testing.T) {
	is := is.New(t)

	s := &whisperStream{
		cfg:    provider.STTStreamConfig{SampleRate: 16000},
		events: make(chan provider.STTEvent, 1),
		stop:   make(chan struct{}),
	}

	frame := media.NewFrame([]byte{1, 2, 3, 4}, 16000, 1, media.SampleFormatS16LE)
	is.NoErr(s.Push(context.Background(), frame))
	is.NoErr(s.Push(context.Background(), frame))

	is.Equal(len(s.buf), 8)
}

func TestWhisperStream_FlushWithNoBufferIsNoop(t *testing.T) {
	is := is.New(t)

	s := &whisperStream{
		cfg:    provider.STTStreamConfig{SampleRate: 16000},
		events: make(chan provider.STTEvent, 1),
		stop:   make(chan struct{}),
	}

	evt := s.flush(context.Background(), true)
	is.Equal(evt.Text, "")
	is.True(evt.IsFinal)
}

func TestEncodeWAV_HeaderFields(t *testing.T) {
	is := is.New(t)

	pcm := []byte{10, 20, 30, 40}
	wav := encodeWAV(pcm, 16000)

	is.Equal(string(wav[0:4]), "RIFF")
	is.Equal(string(wav[8:12]), "WAVE")
	is.Equal(string(wav[12:16]), "fmt ")
	is.Equal(binary.LittleEndian.Uint32(wav[24:28]), uint32(16000))
	is.Equal(string(wav[36:40]), "data")
	is.Equal(binary.LittleEndian.Uint32(wav[40:44]), uint32(len(pcm)))
	is.Equal(wav[44:], pcm)
}
