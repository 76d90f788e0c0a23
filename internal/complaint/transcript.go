package complaint

import (
	"fmt"
	"strings"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one turn of the conversation. Entries are append-only and
// insertion order is the conversation order.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TranscriptText renders entries in the "User:/Assistant:" form used for
// prompts and the notification body.
func TranscriptText(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		label := "Assistant"
		if e.Role == RoleUser {
			label = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, e.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LatestUserContent returns the most recent user turn, or "".
func LatestUserContent(entries []Entry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == RoleUser {
			return entries[i].Content
		}
	}
	return ""
}

// LatestAssistantContent returns the most recent assistant turn, or "".
func LatestAssistantContent(entries []Entry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == RoleAssistant {
			return entries[i].Content
		}
	}
	return ""
}
