// Package extractor derives a structured complaint record from a running
// conversation transcript.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ombudhq/ombud/internal/complaint"
	"github.com/ombudhq/ombud/internal/gemini"
)

type Extractor struct {
	llm    *gemini.Client
	logger *slog.Logger
}

func New(llm *gemini.Client, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

type llmRecord struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	OccurredAt  string `json:"datetime"`
	Severity    string `json:"severity"`
	Details     string `json:"details"`
}

// Extract derives a structured record from the full transcript. It never
// fails the caller: any completion or parse error degrades to a record
// holding the latest user utterance as the description and sentinels
// everywhere else.
func (e *Extractor) Extract(ctx context.Context, transcript []complaint.Entry) complaint.Record {
	prompt := fmt.Sprintf(extractionUserPrompt, complaint.TranscriptText(transcript))

	raw, err := e.llm.Complete(ctx, systemPrompt, []gemini.Message{{Role: "user", Content: prompt}}, 1024)
	if err != nil {
		e.logger.Warn("extraction degraded to fallback", "error", err)
		return fallbackRecord(transcript)
	}

	var parsed llmRecord
	if err := json.Unmarshal([]byte(gemini.StripFences(raw)), &parsed); err != nil {
		e.logger.Warn("extraction response unparsable", "error", err, "raw", raw)
		return fallbackRecord(transcript)
	}

	rec := complaint.NewRecord()
	if strings.TrimSpace(parsed.Description) != "" {
		rec.Description = parsed.Description
	}
	if specified(parsed.Location) {
		rec.Location = parsed.Location
	}
	if specified(parsed.OccurredAt) {
		rec.OccurredAt = parsed.OccurredAt
	}
	rec.Severity = complaint.ParseSeverity(parsed.Severity)
	if strings.TrimSpace(parsed.Details) != "" {
		rec.Details = parsed.Details
	}
	return rec
}

func fallbackRecord(transcript []complaint.Entry) complaint.Record {
	rec := complaint.NewRecord()
	rec.Description = complaint.LatestUserContent(transcript)
	return rec
}

func specified(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, complaint.NotSpecified)
}
