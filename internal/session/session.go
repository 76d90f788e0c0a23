// Package session holds in-memory complaint conversations and drives each
// one through its lifecycle from first message to dispatch.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/ombudhq/ombud/internal/complaint"
)

// State is the lifecycle position of a conversation.
type State string

const (
	StateIdle           State = "idle"
	StateCollecting     State = "collecting"
	StateEligible       State = "eligible"
	StateDispatching    State = "dispatching"
	StateSent           State = "sent"
	StateDispatchFailed State = "dispatch_failed"
)

var (
	ErrUnknownSession     = errors.New("unknown conversation")
	ErrEmptyMessage       = errors.New("message must not be empty")
	ErrSessionBusy        = errors.New("conversation is busy")
	ErrDispatchInFlight   = errors.New("dispatch already in progress")
	ErrNotEligible        = errors.New("complaint is not ready to dispatch")
	ErrAttachmentTooLarge = errors.New("attachment exceeds the size limit")
)

// Session is one conversation. All fields are guarded by mu; busy marks an
// operation in flight so concurrent callers are rejected, not queued.
type Session struct {
	ID string

	mu          sync.Mutex
	busy        bool
	state       State
	transcript  []complaint.Entry
	record      complaint.Record
	attachments []complaint.Attachment
	eligible    bool
	createdAt   time.Time
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		state:     StateIdle,
		record:    complaint.NewRecord(),
		createdAt: time.Now(),
	}
}

// Snapshot is a consistent copy of a session's visible state.
type Snapshot struct {
	ID               string
	State            State
	Transcript       []complaint.Entry
	Record           complaint.Record
	Attachments      []complaint.Attachment
	DispatchEligible bool
}

func (s *Session) snapshot() Snapshot {
	transcript := make([]complaint.Entry, len(s.transcript))
	copy(transcript, s.transcript)
	attachments := make([]complaint.Attachment, len(s.attachments))
	copy(attachments, s.attachments)
	return Snapshot{
		ID:               s.ID,
		State:            s.state,
		Transcript:       transcript,
		Record:           s.record,
		Attachments:      attachments,
		DispatchEligible: s.eligible,
	}
}
