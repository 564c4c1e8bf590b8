// Package voice maintains a bidirectional, near-real-time audio session
// against a live speech endpoint: continuous microphone capture and framing on
// the way out, decode and gapless scheduled playback on the way in.
package voice

import (
	"encoding/base64"
	"fmt"
)

const (
	// InputSampleRate is the capture rate in Hz.
	InputSampleRate = 16000
	// OutputSampleRate is the playback rate in Hz.
	OutputSampleRate = 24000
	// FrameSize is the fixed capture buffer length in samples, mono.
	FrameSize = 4096

	// InputMIMEType tags outbound realtime units.
	InputMIMEType = "audio/pcm;rate=16000"
)

// Chunk is one outbound realtime input unit: base64-encoded 16-bit PCM at the
// input rate, mono.
type Chunk struct {
	Data     string
	MIMEType string
}

// EncodeFrame converts one captured float frame to a wire chunk. Samples are
// scaled to int16 range, clamped, and serialized little-endian. This runs on
// the capture callback, so it allocates once and does no I/O.
func EncodeFrame(samples []float32) Chunk {
	buf := make([]byte, len(samples)*2)
	for i, sample := range samples {
		v := int32(sample * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		buf[i*2] = byte(uint16(v))
		buf[i*2+1] = byte(uint16(v) >> 8)
	}
	return Chunk{
		Data:     base64.StdEncoding.EncodeToString(buf),
		MIMEType: InputMIMEType,
	}
}

// DecodePCM converts an inbound base64 PCM16 payload to normalized float
// samples in [-1, 1).
func DecodePCM(data string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("odd PCM16 payload length %d", len(raw))
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}
