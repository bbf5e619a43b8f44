package media

import "encoding/binary"

// Resample converts a canonical-format or near-canonical frame to targetRate
// using linear interpolation. Used by MediaIO's inbound path (native rate ->
// 16kHz) and outbound path (TTS provider rate -> transport rate). Only
// S16LE mono is supported; that is the only shape the pipeline produces.
func Resample(f Frame, targetRate int) Frame {
	if f.SampleRate == targetRate || f.SampleRate == 0 || targetRate == 0 {
		return f
	}

	in := decodeS16(f.Payload)
	ratio := float64(f.SampleRate) / float64(targetRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]int16, outLen)

	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(in) {
			out[i] = int16(float64(in[idx])*(1-frac) + float64(in[idx+1])*frac)
		} else if idx < len(in) {
			out[i] = in[idx]
		}
	}

	clone := f
	clone.SampleRate = targetRate
	clone.Payload = encodeS16(out)
	return clone
}

// MixToMono downmixes an interleaved multi-channel S16LE frame to mono by
// averaging channels. A no-op if the frame is already mono.
func MixToMono(f Frame) Frame {
	if f.Channels <= 1 {
		return f
	}
	in := decodeS16(f.Payload)
	frames := len(in) / f.Channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < f.Channels; c++ {
			sum += int32(in[i*f.Channels+c])
		}
		out[i] = int16(sum / int32(f.Channels))
	}
	clone := f
	clone.Channels = 1
	clone.Payload = encodeS16(out)
	return clone
}

func decodeS16(payload []byte) []int16 {
	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
	}
	return samples
}

func encodeS16(samples []int16) []byte {
	payload := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:i*2+2], uint16(s))
	}
	return payload
}
