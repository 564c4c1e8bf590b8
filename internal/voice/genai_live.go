package voice

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"chatbank/internal/logger"
)

// liveModel is the native-audio realtime model.
const liveModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// voicePersona is the fixed framing for the voice channel.
const voicePersona = "أنت خالد المنتصر للذكاء السيادي. تحدث بهيبة وثقة. أنت ملك لخالد المنتصر فقط."

// LiveDialer opens duplex sessions against the Gemini Live API with a fixed
// persona and synthetic voice identity.
type LiveDialer struct {
	apiKey    string
	voiceName string
}

// NewLiveDialer creates a dialer for the live endpoint. voiceName defaults to
// "Zephyr" when empty.
func NewLiveDialer(apiKey, voiceName string) *LiveDialer {
	if voiceName == "" {
		voiceName = "Zephyr"
	}
	return &LiveDialer{apiKey: apiKey, voiceName: voiceName}
}

// Dial connects a live session and wraps it in the Transport port.
func (d *LiveDialer) Dial(ctx context.Context) (Transport, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: d.apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	session, err := client.Live.Connect(ctx, liveModel, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: d.voiceName},
			},
		},
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: voicePersona}}},
	})
	if err != nil {
		return nil, fmt.Errorf("live connect failed: %w", err)
	}

	logger.Debug("live session connected", "model", liveModel, "voice", d.voiceName)
	return &liveTransport{session: session}, nil
}

type liveTransport struct {
	session *genai.Session
}

// Send transmits one realtime input unit. The SDK carries raw bytes and does
// its own wire encoding, so the chunk's base64 payload is unwrapped here.
func (t *liveTransport) Send(chunk Chunk) error {
	data, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		return fmt.Errorf("invalid outbound chunk: %w", err)
	}
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: data, MIMEType: chunk.MIMEType},
	})
}

// Receive maps one live server message to a ServerEvent.
func (t *liveTransport) Receive() (*ServerEvent, error) {
	msg, err := t.session.Receive()
	if err != nil {
		return nil, err
	}

	ev := &ServerEvent{}
	if sc := msg.ServerContent; sc != nil {
		ev.Interrupted = sc.Interrupted
		ev.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					ev.Audio = base64.StdEncoding.EncodeToString(part.InlineData.Data)
					break
				}
			}
		}
	}
	return ev, nil
}

func (t *liveTransport) Close() error {
	return t.session.Close()
}
