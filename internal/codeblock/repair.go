package codeblock

import (
	"context"
	"fmt"

	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

// repairSystem frames the repair request.
const repairSystem = "أنت مهندس ترميم النظم السيادي."

// repairTemperature keeps reconstruction conservative.
const repairTemperature = 0.1

// Generator is the slice of the engine backend the repair round trip needs.
type Generator interface {
	Generate(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error
}

// Repair sends the current code (and an optional error string) through a
// single-shot generation call and extracts the first fenced block of the
// reply as the replacement. Repair is best-effort and never destructive: when
// the reply has no fenced block the raw reply text is returned, and when the
// call fails outright the original code comes back unchanged.
func Repair(ctx context.Context, gen Generator, code, errText string) string {
	prompt := fmt.Sprintf("أصلح هذا الكود البرمجي فوراً وطوره هندسياً للسيد خالد المنتصر:\n%s\n", code)
	if errText != "" {
		prompt += fmt.Sprintf("الخطأ: %s", errText)
	}

	temperature := repairTemperature
	var reply string
	err := gen.Generate(ctx, banktypes.GenerateRequest{
		Prompt:      prompt,
		Mode:        banktypes.EngineModeFlash,
		System:      repairSystem,
		Temperature: &temperature,
	}, func(chunk banktypes.StreamChunk) {
		if chunk.Finished {
			reply = chunk.Text
		}
	})
	if err != nil {
		logger.Warn("code repair failed, keeping original", "error", err)
		return code
	}
	if reply == "" {
		return code
	}

	if block, ok := Extract(reply, FirstBlock); ok {
		return block
	}
	return reply
}
