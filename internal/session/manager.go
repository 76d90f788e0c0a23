package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ombudhq/ombud/internal/assistant"
	"github.com/ombudhq/ombud/internal/classifier"
	"github.com/ombudhq/ombud/internal/complaint"
	"github.com/ombudhq/ombud/internal/dispatch"
	"github.com/ombudhq/ombud/internal/events"
	"github.com/ombudhq/ombud/internal/extractor"
	"github.com/ombudhq/ombud/internal/store"
)

// Manager owns all live sessions and coordinates the assistant, extractor,
// classifier and dispatcher around them. The archive and event publisher
// are optional; a nil value disables that side effect.
type Manager struct {
	assistant  *assistant.Assistant
	extractor  *extractor.Extractor
	classifier *classifier.Classifier
	dispatcher *dispatch.Dispatcher
	archive    *store.Store
	events     *events.Publisher
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(
	asst *assistant.Assistant,
	ext *extractor.Extractor,
	cls *classifier.Classifier,
	disp *dispatch.Dispatcher,
	archive *store.Store,
	pub *events.Publisher,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		assistant:  asst,
		extractor:  ext,
		classifier: cls,
		dispatcher: disp,
		archive:    archive,
		events:     pub,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

// ChatResult is what one conversational turn produces.
type ChatResult struct {
	ConversationID   string
	Reply            string
	Record           complaint.Record
	DispatchEligible bool
	State            State
}

// DispatchResult is the outcome of a successful dispatch.
type DispatchResult struct {
	Receipt        *dispatch.Receipt
	Classification classifier.Result
	Advice         string
}

func (m *Manager) get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) getOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			return s
		}
	} else {
		id = uuid.New().String()
	}
	s := newSession(id)
	m.sessions[id] = s
	return s
}

// Chat runs one conversational turn: append the user message, get the
// assistant's reply, re-extract structured fields from the full transcript
// and re-evaluate dispatch eligibility. An empty id starts a new session.
// The provided history seeds a session the server has not seen before.
func (m *Manager) Chat(ctx context.Context, id, message string, history []complaint.Entry) (*ChatResult, error) {
	if message == "" {
		return nil, ErrEmptyMessage
	}

	s := m.getOrCreate(id)

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.busy = true
	if len(s.transcript) == 0 && len(history) > 0 {
		s.transcript = append(s.transcript, history...)
	}
	s.transcript = append(s.transcript, complaint.Entry{Role: complaint.RoleUser, Content: message})
	if s.state == StateIdle {
		s.state = StateCollecting
	}
	transcript := make([]complaint.Entry, len(s.transcript))
	copy(transcript, s.transcript)
	s.mu.Unlock()

	reply, err := m.assistant.Reply(ctx, transcript)
	if err != nil {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		return nil, fmt.Errorf("assistant reply: %w", err)
	}
	transcript = append(transcript, complaint.Entry{Role: complaint.RoleAssistant, Content: reply})

	fresh := m.extractor.Extract(ctx, transcript)

	s.mu.Lock()
	s.transcript = append(s.transcript, complaint.Entry{Role: complaint.RoleAssistant, Content: reply})
	s.record = complaint.Merge(s.record, fresh)
	s.eligible = DispatchEligible(s.record, s.transcript)
	if s.eligible {
		s.state = StateEligible
	} else {
		s.state = StateCollecting
	}
	res := &ChatResult{
		ConversationID:   s.ID,
		Reply:            reply,
		Record:           s.record,
		DispatchEligible: s.eligible,
		State:            s.state,
	}
	s.busy = false
	s.mu.Unlock()

	m.logger.Info("chat turn completed",
		"conversation_id", res.ConversationID,
		"eligible", res.DispatchEligible,
		"state", res.State,
	)
	return res, nil
}

// AddAttachment stages a file on the session for the next dispatch.
// Oversized files are rejected before anything is stored.
func (m *Manager) AddAttachment(id string, att complaint.Attachment) error {
	s, ok := m.get(id)
	if !ok {
		return ErrUnknownSession
	}
	if att.Size > complaint.MaxAttachmentSize {
		return fmt.Errorf("%w: %q is %d bytes", ErrAttachmentTooLarge, att.Name, att.Size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.attachments = append(s.attachments, att)
	return nil
}

// Dispatch classifies the session's complaint and delivers it. A non-nil
// pre-classification skips the model call; the caller supplies it when the
// client already confirmed the routing fields. On transport failure the
// session keeps its attachments and eligibility so the user can retry.
func (m *Manager) Dispatch(ctx context.Context, id, requesterEmail string, pre *classifier.Result) (*DispatchResult, error) {
	s, ok := m.get(id)
	if !ok {
		return nil, ErrUnknownSession
	}

	s.mu.Lock()
	if s.state == StateDispatching {
		s.mu.Unlock()
		return nil, ErrDispatchInFlight
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	if !s.eligible {
		s.mu.Unlock()
		return nil, ErrNotEligible
	}
	s.busy = true
	s.state = StateDispatching
	rec := s.record
	transcript := make([]complaint.Entry, len(s.transcript))
	copy(transcript, s.transcript)
	attachments := make([]complaint.Attachment, len(s.attachments))
	copy(attachments, s.attachments)
	s.mu.Unlock()

	var cls classifier.Result
	if pre != nil {
		cls = *pre
	} else {
		cls = m.classifier.Classify(ctx, rec, transcript)
	}

	receipt, err := m.dispatcher.Dispatch(ctx, dispatch.Request{
		Department:     cls.Department,
		Classification: cls,
		RequesterEmail: requesterEmail,
		Attachments:    attachments,
	})

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.state = StateDispatchFailed
		s.mu.Unlock()
		return nil, err
	}
	s.attachments = nil
	s.eligible = false
	s.state = StateSent
	s.mu.Unlock()

	advice := m.assistant.Advice(ctx, transcript, cls.Department)

	if m.archive != nil {
		if _, err := m.archive.RecordDispatch(ctx, id, cls, requesterEmail, receipt.DeliveryID); err != nil {
			m.logger.Error("failed to archive dispatched complaint", "conversation_id", id, "error", err)
		}
	}
	if m.events != nil {
		if err := m.events.ComplaintDispatched(events.Dispatched{
			ConversationID: id,
			Department:     cls.Department,
			Severity:       string(cls.Severity),
			Summary:        cls.Summary,
			DeliveryID:     receipt.DeliveryID,
			RequesterEmail: requesterEmail,
		}); err != nil {
			m.logger.Error("failed to publish dispatch event", "conversation_id", id, "error", err)
		}
	}

	return &DispatchResult{Receipt: receipt, Classification: cls, Advice: advice}, nil
}

// Snapshot returns a consistent copy of a session's state.
func (m *Manager) Snapshot(id string) (Snapshot, error) {
	s, ok := m.get(id)
	if !ok {
		return Snapshot{}, ErrUnknownSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}
