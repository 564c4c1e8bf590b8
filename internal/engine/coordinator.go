package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chatbank/internal/logger"
	"chatbank/internal/store"
	"chatbank/pkg/banktypes"
)

// fallbackDisclosure prefixes a response that was rerouted from the local
// core to the cloud, so the switch is visible to the user.
const fallbackDisclosure = "النواة المحلية (Local X1) غير متصلة. تم التحويل تلقائياً إلى النواة السحابية.\n\n"

// transportErrorText is the user-visible message appended when a request
// fails outright. Failures never propagate as a crash of the shell.
const transportErrorText = "تعذر الاتصال بالمحرك السيادي. تحقق من الشبكة وحاول مرة أخرى."

// credentialErrorText directs the user to configuration when no API key is
// usable; credential problems are not retried.
const credentialErrorText = "مفتاح الواجهة البرمجية غير مهيأ. افتح الإعدادات وأدخل مفتاحاً صالحاً."

// imageIntentKeywords triggers routing to the image backend. Matching is a
// simple case-insensitive substring check against the prompt.
var imageIntentKeywords = []string{
	"generate an image",
	"generate image",
	"create an image",
	"draw",
	"ارسم",
	"ولد صورة",
	"أنشئ صورة",
}

// Coordinator dispatches generation requests to the backend selected by the
// request's engine mode and reconciles the streamed response into the session
// store. At most one generation is in flight per session.
type Coordinator struct {
	cloud        Backend
	local        Backend
	image        ImageGenerator
	imageQuality banktypes.ImageQuality

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCoordinator wires the three backends. Any of local/image may be nil when
// the corresponding mode is not configured.
func NewCoordinator(cloud, local Backend, image ImageGenerator, quality banktypes.ImageQuality) *Coordinator {
	if quality == "" {
		quality = banktypes.ImageQuality1K
	}
	return &Coordinator{
		cloud:        cloud,
		local:        local,
		image:        image,
		imageQuality: quality,
		inflight:     make(map[string]struct{}),
	}
}

// Generate dispatches one request and emits cumulative chunks. Image-intent
// prompts route to the image backend; a LOCAL_X1 transport failure falls back
// to the cloud with the resulting chunks annotated and the mode corrected.
func (c *Coordinator) Generate(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error {
	if c.image != nil && len(req.ImageData) == 0 && hasImageIntent(req.Prompt) {
		return c.generateImage(ctx, req, emit)
	}

	if req.Mode == banktypes.EngineModeLocalX1 {
		if c.local == nil {
			return c.fallbackToCloud(ctx, req, emit)
		}
		err := c.local.Generate(ctx, req, emit)
		if err != nil && errors.Is(err, ErrLocalUnreachable) {
			logger.Warn("local core unreachable, falling back to cloud", "error", err)
			return c.fallbackToCloud(ctx, req, emit)
		}
		return err
	}

	return c.cloud.Generate(ctx, req, emit)
}

func (c *Coordinator) fallbackToCloud(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error {
	fallbackReq := req
	fallbackReq.Mode = banktypes.EngineModeFlash

	return c.cloud.Generate(ctx, fallbackReq, func(chunk banktypes.StreamChunk) {
		chunk.Text = fallbackDisclosure + chunk.Text
		chunk.Fallback = true
		chunk.Mode = banktypes.EngineModeFlash
		emit(chunk)
	})
}

func (c *Coordinator) generateImage(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error {
	dataURI, caption, err := c.image.GenerateImage(ctx, req.Prompt, c.imageQuality)
	if err != nil {
		return err
	}
	if caption == "" {
		caption = req.Prompt
	}
	emit(banktypes.StreamChunk{
		Text:      caption,
		ImageURI:  dataURI,
		Finished:  true,
		ModelName: imageModelRouter[c.imageQuality],
		Mode:      req.Mode,
	})
	return nil
}

// Send runs the full request cycle against a session: append the user
// message, open a model placeholder, stream merges into it, and close it.
// Returns the finished model message. A second Send against a session with a
// generation still in flight returns ErrSessionBusy instead of interleaving
// placeholders.
func (c *Coordinator) Send(ctx context.Context, st *store.Store, sessionID string, req banktypes.GenerateRequest) (*banktypes.Message, error) {
	if strings.TrimSpace(req.Prompt) == "" && len(req.ImageData) == 0 {
		return nil, fmt.Errorf("empty request: prompt or image required")
	}
	if err := c.acquire(sessionID); err != nil {
		return nil, err
	}
	defer c.release(sessionID)

	userParts := []banktypes.MessagePart{banktypes.TextPart(req.Prompt)}
	if len(req.ImageData) > 0 {
		mimeType := req.ImageMIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		userParts = append(userParts, banktypes.ImagePart(
			"data:"+mimeType+";base64,"+base64.StdEncoding.EncodeToString(req.ImageData)))
	}
	if _, err := st.AppendUserMessage(sessionID, userParts); err != nil {
		return nil, err
	}

	placeholder, err := st.BeginModelResponse(sessionID, req.Mode)
	if err != nil {
		return nil, err
	}
	messageID := placeholder.ID

	genErr := c.Generate(ctx, req, func(chunk banktypes.StreamChunk) {
		if mergeErr := st.MergeStreamChunk(sessionID, messageID, chunk); mergeErr != nil {
			logger.Warn("stream merge failed", "session", sessionID, "message", messageID, "error", mergeErr)
		}
	})
	if genErr != nil {
		// Convert the failure into an inline message; the shell never sees a
		// raised error for transport problems.
		text := transportErrorText
		if errors.Is(genErr, ErrCredential) {
			text = credentialErrorText
		}
		if mergeErr := st.MergeStreamChunk(sessionID, messageID, banktypes.StreamChunk{
			Text:     text,
			Finished: true,
		}); mergeErr != nil {
			logger.Warn("error merge failed", "session", sessionID, "error", mergeErr)
		}
		if errors.Is(genErr, ErrCredential) {
			return nil, genErr
		}
		logger.Error("generation failed", "session", sessionID, "mode", string(req.Mode), "error", genErr)
	}

	for _, sess := range st.Sessions() {
		if sess.ID != sessionID {
			continue
		}
		for i := range sess.Messages {
			if sess.Messages[i].ID == messageID {
				return &sess.Messages[i], nil
			}
		}
	}
	return nil, fmt.Errorf("message %q disappeared from session %q", messageID, sessionID)
}

func (c *Coordinator) acquire(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return ErrSessionBusy
	}
	c.inflight[sessionID] = struct{}{}
	return nil
}

func (c *Coordinator) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}

func hasImageIntent(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, keyword := range imageIntentKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
