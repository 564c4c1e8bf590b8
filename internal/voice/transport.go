package voice

import "context"

// ServerEvent is one inbound unit from the live endpoint: an audio fragment,
// an interruption signal, or both.
type ServerEvent struct {
	// Audio is a base64 PCM16 fragment at the output rate, empty when the
	// event carries no audio.
	Audio string
	// Interrupted signals that the remote turn was cut off by new caller
	// input; all pending playback must be flushed.
	Interrupted bool
	// TurnComplete marks the end of a model turn.
	TurnComplete bool
}

// Transport is a persistent duplex session with the live endpoint. Send is
// fire-and-forget framing: it must not wait for the previous send's network
// acknowledgment, since capture is continuous.
type Transport interface {
	Send(chunk Chunk) error
	Receive() (*ServerEvent, error)
	Close() error
}

// Dialer opens a Transport. The genai live adapter implements it; tests
// substitute a scripted transport.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// CaptureSource delivers fixed-size mono capture frames through a callback
// driven by the audio subsystem, not the application's control flow. The
// callback must not block.
type CaptureSource interface {
	Start(onFrame func(frame []float32)) error
	Stop() error
}
