// Package engine bridges a single user prompt to the Session Store. It picks
// one of three backends by engine mode, streams the response back as
// cumulative chunks, and reconciles them into one model message.
package engine

import (
	"context"
	"errors"

	"chatbank/pkg/banktypes"
)

// Backend is one generation strategy. Implementations emit cumulative
// StreamChunks through emit; the final chunk has Finished set. Emitting
// nothing and returning an error means the request failed outright.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error
}

var (
	// ErrCredential marks a missing or invalid API credential. It is not
	// retried; the caller surfaces it to configuration.
	ErrCredential = errors.New("api credential missing or invalid")
	// ErrLocalUnreachable marks a failed request to the local completion
	// server: connection refused, timeout, or a non-2xx status.
	ErrLocalUnreachable = errors.New("local core unreachable")
	// ErrSessionBusy is returned when a generation request targets a session
	// that already has one in flight.
	ErrSessionBusy = errors.New("session already has a generation in flight")
)

// Cloud model identifiers per engine mode.
var modelRouter = map[banktypes.EngineMode]string{
	banktypes.EngineModeFlash:   "gemini-3-flash-preview",
	banktypes.EngineModeUltra:   "gemini-3-pro-preview",
	banktypes.EngineModeLocalX1: "sovereign-local-x1",
}

// Image model identifiers per quality tier.
var imageModelRouter = map[banktypes.ImageQuality]string{
	banktypes.ImageQuality1K: "gemini-2.5-flash-image",
	banktypes.ImageQuality2K: "gemini-3-pro-image-preview",
}

// systemPersona is the fixed framing sent with every cloud request. The
// request's Context field is appended; the request's System field replaces it
// entirely.
const systemPersona = `أنت "ChatBank Sovereign Intelligence" مدمج داخل منصة تواصل اجتماعي سيادية.
المخاطب: القائد خالد المنتصر ومجتمعه التقني.

مهامك:
1. بناء مشاريع برمجية (Live Project Builder) عند الطلب، دائماً في ملف واحد كود HTML/Tailwind/JS داخل بلوك ` + "```html" + `.
2. التفاعل كعقل ذكي في المحادثات الاجتماعية: اقترح ردوداً، حلل منشورات، وولد محتوى إبداعي.
3. التصميم: التزم دائماً بالهوية الذهبية (#d4af37) والأسود الفاخر (#050505).
4. الدقة: في وضع ULTRA، كن عميق التفكير برمجياً ومنطقياً.
5. الأسلوب: مهيب، تقني، وداعم للسيادة المعلوماتية.`

func systemInstructionFor(req banktypes.GenerateRequest) string {
	if req.System != "" {
		return req.System
	}
	instruction := systemPersona + "\n\nسياق إضافي: "
	if req.Context != "" {
		return instruction + req.Context + "."
	}
	return instruction + "محادثة عامة."
}

func temperatureFor(req banktypes.GenerateRequest) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	if req.Mode == banktypes.EngineModeUltra {
		return 0.7
	}
	return 0.3
}
