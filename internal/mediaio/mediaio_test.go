package mediaio

import (
	"testing"
	"time"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/matryer/is"
)

func TestAcceptInbound_DropsLateFrames(t *testing.T) {
	is := is.New(t)

	m := New(nil)
	now := time.Now()
	stale := media.NewFrame(make([]byte, 64), media.CanonicalSampleRate, 1, media.SampleFormatS16LE)
	stale.TimestampNS = now.Add(-time.Second).UnixNano()

	_, ok := m.AcceptInbound(stale, now)
	is.True(!ok)
	is.Equal(m.InboundDrops(), 1)
}

func TestAcceptInbound_ResamplesAndMixesDown(t *testing.T) {
	is := is.New(t)

	m := New(nil)
	now := time.Now()
	stereo48k := media.NewFrame(make([]byte, 48000/1000*32*2*2), 48000, 2, media.SampleFormatS16LE)
	stereo48k.TimestampNS = now.UnixNano()

	out, ok := m.AcceptInbound(stereo48k, now)
	is.True(ok)
	is.Equal(out.Channels, media.CanonicalChannels)
	is.Equal(out.SampleRate, media.CanonicalSampleRate)
}

func TestPrepareOutbound_ResamplesToTransportRate(t *testing.T) {
	is := is.New(t)

	m := New(nil)
	frame := media.NewFrame(make([]byte, 320), 16000, 1, media.SampleFormatS16LE)

	out := m.PrepareOutbound(frame, 48000)
	is.Equal(out.SampleRate, 48000)
}

func TestPublishControl_DropsOnFullChannel(t *testing.T) {
	is := is.New(t)

	m := New(nil)
	for i := 0; i < 40; i++ {
		m.PublishControl(ControlEvent{Type: "metrics_update"})
	}
	// channel capacity is 32; the rest must have been dropped, not blocked
	is.True(len(m.ControlEvents()) <= 32)
}
