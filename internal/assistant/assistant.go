// Package assistant generates the conversational side of the intake flow:
// the next reply in a complaint conversation and the follow-up advice sent
// to the requester after a dispatch.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ombudhq/ombud/internal/complaint"
	"github.com/ombudhq/ombud/internal/gemini"
)

// DefaultAdvice is returned when advice generation degrades.
const DefaultAdvice = "Your complaint has been submitted. The department will review it and contact you soon."

type Assistant struct {
	llm    *gemini.Client
	logger *slog.Logger
}

func New(llm *gemini.Client, logger *slog.Logger) *Assistant {
	return &Assistant{llm: llm, logger: logger}
}

// Reply generates the next assistant turn for the conversation. The most
// recent entry is expected to be the user's message.
func (a *Assistant) Reply(ctx context.Context, transcript []complaint.Entry) (string, error) {
	messages := make([]gemini.Message, 0, len(transcript))
	for _, e := range transcript {
		messages = append(messages, gemini.Message{Role: string(e.Role), Content: e.Content})
	}

	reply, err := a.llm.Complete(ctx, chatSystemPrompt, messages, 1024)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// Advice generates follow-up guidance for the requester after a complaint
// was dispatched. Best effort: failures degrade to DefaultAdvice.
func (a *Assistant) Advice(ctx context.Context, transcript []complaint.Entry, department string) string {
	prompt := fmt.Sprintf(advicePrompt, department, complaint.TranscriptText(transcript))
	text, err := a.llm.Complete(ctx, "", []gemini.Message{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		a.logger.Warn("advice generation degraded", "department", department, "error", err)
		return DefaultAdvice
	}
	return strings.TrimSpace(text)
}
