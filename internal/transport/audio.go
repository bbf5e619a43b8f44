package transport

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hraban/opus"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v3"
	webrtcmedia "github.com/pion/webrtc/v3/pkg/media"

	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/pkg/media"
)

// browserSampleRate is the rate browsers encode microphone audio at over
// WebRTC (Opus is always 48kHz internally, regardless of the original
// capture rate), mirroring agents/worker.go's convertRTPToAudio.
const browserSampleRate = 48000

// pumpInbound decodes one subscribed audio track's RTP stream to PCM and
// feeds it to the session one frame at a time, until ctx is cancelled or
// the track ends. Grounded on agents/worker.go's RTP-read loop plus
// convertRTPToAudio (hraban/opus decoder, 48kHz mono).
func (t *RoomTransport) pumpInbound(ctx context.Context, sess *session.Session, track *webrtc.TrackRemote) {
	decoder, err := opus.NewDecoder(browserSampleRate, 1)
	if err != nil {
		t.log.Error("failed to create opus decoder", slog.Any("error", err))
		return
	}

	pcmBuffer := make([]int16, 5760) // 120ms at 48kHz, matches the teacher's buffer size

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			if err == io.EOF {
				return
			}
			t.log.Warn("inbound RTP read failed", slog.Any("error", err))
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		n, err := decoder.Decode(pkt.Payload, pcmBuffer)
		if err != nil {
			t.log.Warn("opus decode failed", slog.Any("error", err))
			continue
		}
		if n == 0 {
			continue
		}

		payload := make([]byte, n*2)
		for i := 0; i < n; i++ {
			payload[i*2] = byte(pcmBuffer[i])
			payload[i*2+1] = byte(pcmBuffer[i] >> 8)
		}

		frame := media.NewFrame(payload, browserSampleRate, 1, media.SampleFormatS16LE)
		sess.HandleFrame(ctx, frame)
	}
}

// assistantSampleProvider streams a session's outbound TTS audio to a
// LiveKit local track, adapted from agents/worker.go's AudioSampleProvider
// (bounded queue, NextSample blocks on the queue or ctx). The teacher ships
// raw PCM through a track declared as Opus without actually Opus-encoding
// it; this mirrors that same simplification rather than introducing a real
// encoder the teacher never used on the send side.
type assistantSampleProvider struct {
	queue chan []byte
}

func newAssistantSampleProvider() *assistantSampleProvider {
	return &assistantSampleProvider{queue: make(chan []byte, 100)}
}

func (p *assistantSampleProvider) NextSample(ctx context.Context) (webrtcmedia.Sample, error) {
	select {
	case <-ctx.Done():
		return webrtcmedia.Sample{}, ctx.Err()
	case payload, ok := <-p.queue:
		if !ok {
			return webrtcmedia.Sample{}, io.EOF
		}
		samples := len(payload) / 2
		duration := time.Duration(samples) * time.Second / browserSampleRate
		return webrtcmedia.Sample{Data: payload, Duration: duration}, nil
	}
}

func (p *assistantSampleProvider) OnBind() error   { return nil }
func (p *assistantSampleProvider) OnUnbind() error { return nil }

func (p *assistantSampleProvider) queuePayload(payload []byte) {
	select {
	case p.queue <- payload:
	default:
		// queue full: the outbound track can't keep up. Session.Outbound's
		// own send-side 2s stall detection (§5) is the authoritative
		// backpressure signal; here the incoming payload is dropped rather
		// than blocking the pump goroutine.
	}
}

// drain discards every payload currently queued for playback, called on
// barge-in (§4.2 step 2, §8: "TTS outbound queue fully drained ... within
// 200ms"). session.Session.drainOutbound empties the session-side channel;
// this empties the transport-side queue those chunks were already
// forwarded into.
func (p *assistantSampleProvider) drain() {
	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}

// publishAssistantTrack creates and publishes the session's one outbound
// audio track (§6: "publishes ... one outbound audio track per session"),
// grounded on agents/worker.go's createAssistantAudioTrack.
func (t *RoomTransport) publishAssistantTrack(sess *session.Session) error {
	provider := newAssistantSampleProvider()

	localTrack, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus})
	if err != nil {
		return err
	}
	if err := localTrack.StartWrite(provider, func() {}); err != nil {
		return err
	}

	lp := t.room.LocalParticipant()
	if lp == nil {
		return nil // room not connected yet; best-effort, matches job.Room's own nil-guards
	}
	if _, err := lp.PublishTrack(localTrack, &lksdk.TrackPublicationOptions{Name: "assistant-voice"}); err != nil {
		return err
	}

	t.mu.Lock()
	t.outboundProvider = provider
	t.mu.Unlock()
	return nil
}

// pumpOutbound drains the session's canonical-rate TTS chunks, resamples
// them to the track's 48kHz wire rate, and queues them onto the published
// local track until ctx is cancelled.
func (t *RoomTransport) pumpOutbound(ctx context.Context, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-sess.Outbound():
			if !ok {
				return
			}
			out := media.Resample(chunk, browserSampleRate)

			t.mu.Lock()
			provider := t.outboundProvider
			t.mu.Unlock()
			if provider != nil {
				provider.queuePayload(out.Payload)
			}
		}
	}
}

