// Package classifier maps a complaint conversation to one department from
// the fixed routing set, together with a summary and severity.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ombudhq/ombud/internal/complaint"
	"github.com/ombudhq/ombud/internal/gemini"
)

// FallbackSummary is the placeholder used when the model output could not
// be parsed.
const FallbackSummary = "Please review the complaint details."

// Result is the classification outcome. Parsed distinguishes a structured
// model response from the degraded fallback; Raw retains the unparsable
// model text for operator inspection.
type Result struct {
	Department string             `json:"department"`
	Summary    string             `json:"summary"`
	Location   string             `json:"location"`
	OccurredAt string             `json:"datetime"`
	Severity   complaint.Severity `json:"severity"`
	Details    string             `json:"details"`
	Raw        string             `json:"rawResponse,omitempty"`
	Parsed     bool               `json:"-"`
}

type Classifier struct {
	llm    *gemini.Client
	logger *slog.Logger
}

func New(llm *gemini.Client, logger *slog.Logger) *Classifier {
	return &Classifier{llm: llm, logger: logger}
}

// Classify resolves the department for a complaint. It never fails the
// caller: unusable model output degrades to the Admin/Medium fallback so
// classification cannot block dispatch.
func (c *Classifier) Classify(ctx context.Context, rec complaint.Record, transcript []complaint.Entry) Result {
	conversation := complaint.TranscriptText(transcript)

	known, err := json.Marshal(rec)
	if err != nil {
		known = []byte("{}")
	}
	prompt := fmt.Sprintf(classificationPrompt, conversation, known)

	raw, err := c.llm.Complete(ctx, "", []gemini.Message{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		c.logger.Warn("classification degraded to fallback", "error", err)
		return Fallback(conversation, "")
	}

	var parsed struct {
		Department string `json:"department"`
		Summary    string `json:"summary"`
		Location   string `json:"location"`
		OccurredAt string `json:"datetime"`
		Severity   string `json:"severity"`
		Details    string `json:"details"`
	}
	if err := json.Unmarshal([]byte(gemini.StripFences(raw)), &parsed); err != nil {
		c.logger.Warn("classification response unparsable", "error", err, "raw", raw)
		return Fallback(conversation, raw)
	}

	res := Result{
		Department: strings.TrimSpace(parsed.Department),
		Summary:    strings.TrimSpace(parsed.Summary),
		Location:   parsed.Location,
		OccurredAt: parsed.OccurredAt,
		Severity:   complaint.ParseSeverity(parsed.Severity),
		Details:    parsed.Details,
		Parsed:     true,
	}
	if !complaint.ValidDepartment(res.Department) {
		c.logger.Warn("classifier returned out-of-set department", "department", res.Department)
		res.Department = complaint.DefaultDepartment
	}
	if res.Summary == "" {
		res.Summary = FallbackSummary
	}
	if strings.TrimSpace(res.Location) == "" {
		res.Location = complaint.NotSpecified
	}
	if strings.TrimSpace(res.OccurredAt) == "" {
		res.OccurredAt = complaint.NotSpecified
	}

	c.logger.Info("complaint classified", "department", res.Department, "severity", res.Severity)
	return res
}

// Fallback is the safe-default classification used when the model output
// cannot be used. raw keeps the unparsed text, when there was any.
func Fallback(conversation, raw string) Result {
	return Result{
		Department: complaint.DefaultDepartment,
		Summary:    FallbackSummary,
		Location:   complaint.NotSpecified,
		OccurredAt: complaint.NotSpecified,
		Severity:   complaint.SeverityMedium,
		Details:    conversation,
		Raw:        raw,
	}
}
