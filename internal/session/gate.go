package session

import (
	"strings"

	"github.com/ombudhq/ombud/internal/complaint"
)

// Phrases in the assistant's latest turn that invite the user to submit.
var invitationPhrases = []string{
	"send email",
	"submit your complaint",
}

// DispatchEligible reports whether the conversation has gathered enough to
// dispatch. A description alone is not enough: at least one supporting
// field must be present, or the assistant must have invited the user to
// submit in its latest turn.
func DispatchEligible(rec complaint.Record, transcript []complaint.Entry) bool {
	if complaint.LatestUserContent(transcript) == "" {
		return false
	}
	if strings.TrimSpace(rec.Description) == "" || rec.Description == complaint.NotSpecified {
		return false
	}
	if rec.HasFieldBeyondDescription() {
		return true
	}
	return invitationToSend(complaint.LatestAssistantContent(transcript))
}

func invitationToSend(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range invitationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return strings.Contains(lower, "click") && strings.Contains(lower, "email")
}
