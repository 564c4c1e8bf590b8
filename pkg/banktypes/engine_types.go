package banktypes

// EngineMode selects which backend serves a generation request and which
// request parameters apply. It is a per-request choice, not per-session.
type EngineMode string

const (
	// EngineModeFlash is the general-purpose, lower-cost cloud mode.
	EngineModeFlash EngineMode = "Muntasir-Flash"
	// EngineModeUltra is the high-reasoning cloud mode with a thinking budget
	// and optional search grounding.
	EngineModeUltra EngineMode = "Muntasir-Ultra"
	// EngineModeLocalX1 targets the local OpenAI-compatible completion server.
	EngineModeLocalX1 EngineMode = "Sovereign-Core-X1"
)

// ImageQuality selects the image generation tier, which maps to a distinct
// model identifier.
type ImageQuality string

const (
	ImageQuality1K ImageQuality = "1K"
	ImageQuality2K ImageQuality = "2K"
)

// GenerateRequest carries one user prompt to the engine coordinator.
type GenerateRequest struct {
	// Prompt is required unless ImageData is set.
	Prompt string
	// ImageData is an optional attached image, sent as inline binary content.
	ImageData     []byte
	ImageMIMEType string
	// Mode picks the backend and its parameters.
	Mode EngineMode
	// Search attaches google-search grounding to cloud requests.
	Search bool
	// Context is extra conversational framing appended to the system
	// instruction.
	Context string
	// System, when set, replaces the default persona instruction entirely
	// (used by the code-repair round trip).
	System string
	// Temperature, when set, overrides the mode's default temperature.
	Temperature *float64
}

// StreamChunk is one incremental update for an in-progress model response.
// Text is cumulative: each chunk carries the full text so far, never a delta.
type StreamChunk struct {
	Text      string
	Finished  bool
	Sources   []GroundingSource
	ModelName string
	LatencyMs int64
	// Mode, when non-empty, corrects the message's recorded mode. Set when a
	// local request fell back to a cloud backend.
	Mode EngineMode
	// Fallback marks a response produced by a backend other than the one the
	// caller requested, so the UI can disclose the switch.
	Fallback bool
	// ImageURI, when non-empty, is a generated image as a data URI.
	ImageURI string
}
