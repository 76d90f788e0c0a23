package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ombudhq/ombud/internal/assistant"
	"github.com/ombudhq/ombud/internal/classifier"
	"github.com/ombudhq/ombud/internal/complaint"
	"github.com/ombudhq/ombud/internal/dispatch"
	"github.com/ombudhq/ombud/internal/extractor"
	"github.com/ombudhq/ombud/internal/gemini"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM answers chat, extraction, classification and advice prompts with
// canned text, routed by prompt markers.
type fakeLLM struct {
	chatReply      string
	extractionJSON string
	classifyJSON   string
	advice         string
}

func (f *fakeLLM) client(t *testing.T) *gemini.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SystemInstruction *struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		var system string
		if req.SystemInstruction != nil && len(req.SystemInstruction.Parts) > 0 {
			system = req.SystemInstruction.Parts[0].Text
		}
		var first string
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			first = req.Contents[0].Parts[0].Text
		}

		text := f.classifyJSON
		switch {
		case strings.Contains(system, "complaint management assistant"):
			text = f.chatReply
		case strings.Contains(system, "extract structured complaint"):
			text = f.extractionJSON
		case strings.Contains(first, "A complaint has just been submitted"):
			text = f.advice
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}}},
			},
		})
	}))
	t.Cleanup(server.Close)

	llm := gemini.NewClient("test-key", "test-model")
	llm.SetTestTransport(server.URL)
	return llm
}

func defaultLLM() *fakeLLM {
	return &fakeLLM{
		chatReply:      "Thank you! I have all the essential details. Click 'Send Email' to submit your complaint.",
		extractionJSON: `{"description":"water leak","location":"lobby","datetime":"5pm","severity":"High","details":"leak near the entrance"}`,
		classifyJSON:   `{"department":"Maintenance","summary":"Water leak in the lobby.","location":"lobby","datetime":"5pm","severity":"High","details":"leak near the entrance"}`,
		advice:         "- Expect a response within two business days.",
	}
}

type fakeTransport struct {
	calls   int
	lastMsg dispatch.Message
	sendErr error
	started chan struct{}
	release chan struct{}
}

func (f *fakeTransport) Send(ctx context.Context, msg dispatch.Message) (string, error) {
	f.calls++
	f.lastMsg = msg
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "<msg@test>", nil
}

func newTestManager(t *testing.T, llm *fakeLLM, tr dispatch.Transport) *Manager {
	t.Helper()
	client := llm.client(t)
	logger := discardLogger()
	addresses := map[string]string{
		"Maintenance": "maintenance@example.com",
		"IT":          "it@example.com",
		"HR":          "hr@example.com",
		"Admin":       "admin@example.com",
		"Security":    "security@example.com",
		"Facilities":  "facilities@example.com",
	}
	return NewManager(
		assistant.New(client, logger),
		extractor.New(client, logger),
		classifier.New(client, logger),
		dispatch.New(addresses, tr, logger),
		nil, nil,
		logger,
	)
}

func TestChat_NewConversation(t *testing.T) {
	m := newTestManager(t, defaultLLM(), &fakeTransport{})

	res, err := m.Chat(context.Background(), "", "there is a water leak in the lobby, happened at 5pm", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConversationID == "" {
		t.Error("a new conversation should get an id")
	}
	if res.Reply == "" {
		t.Error("reply missing")
	}
	if res.Record.Location != "lobby" || res.Record.OccurredAt != "5pm" {
		t.Errorf("extracted record not merged: %+v", res.Record)
	}
	if !res.DispatchEligible {
		t.Error("description plus supporting fields should be eligible")
	}
	if res.State != StateEligible {
		t.Errorf("state = %q, want %q", res.State, StateEligible)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	m := newTestManager(t, defaultLLM(), &fakeTransport{})
	if _, err := m.Chat(context.Background(), "", "", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestChat_SeedsProvidedHistory(t *testing.T) {
	m := newTestManager(t, defaultLLM(), &fakeTransport{})

	history := []complaint.Entry{
		{Role: complaint.RoleUser, Content: "hello"},
		{Role: complaint.RoleAssistant, Content: "Hi! What happened?"},
	}
	res, err := m.Chat(context.Background(), "", "water leak in the lobby", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := m.Snapshot(res.ConversationID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// seeded history + user turn + assistant reply
	if len(snap.Transcript) != 4 {
		t.Errorf("transcript length = %d, want 4", len(snap.Transcript))
	}
}

func TestChat_FieldsAccumulateAcrossTurns(t *testing.T) {
	llm := defaultLLM()
	llm.extractionJSON = `{"description":"water leak","location":"lobby","datetime":"Not specified","severity":"Medium","details":"Not specified"}`
	m := newTestManager(t, llm, &fakeTransport{})

	res, err := m.Chat(context.Background(), "", "water leak in the lobby", nil)
	if err != nil {
		t.Fatalf("turn one: %v", err)
	}

	// The next extraction omits the location; the merged record keeps it.
	llm.extractionJSON = `{"description":"water leak","location":"Not specified","datetime":"5pm","severity":"High","details":"Not specified"}`
	res, err = m.Chat(context.Background(), res.ConversationID, "it happened at 5pm", nil)
	if err != nil {
		t.Fatalf("turn two: %v", err)
	}
	if res.Record.Location != "lobby" {
		t.Errorf("earlier location lost: %+v", res.Record)
	}
	if res.Record.OccurredAt != "5pm" {
		t.Errorf("new time not merged: %+v", res.Record)
	}
	if res.Record.Severity != complaint.SeverityHigh {
		t.Errorf("severity not raised: %+v", res.Record)
	}
}

func TestAddAttachment(t *testing.T) {
	m := newTestManager(t, defaultLLM(), &fakeTransport{})
	res, err := m.Chat(context.Background(), "", "water leak in the lobby", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	ok := complaint.Attachment{Name: "photo.jpg", ContentType: "image/jpeg", Size: 4 << 20, Data: []byte("x")}
	if err := m.AddAttachment(res.ConversationID, ok); err != nil {
		t.Fatalf("4 MiB attachment should be accepted: %v", err)
	}

	big := complaint.Attachment{Name: "video.mp4", ContentType: "video/mp4", Size: 6 << 20}
	if err := m.AddAttachment(res.ConversationID, big); !errors.Is(err, ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}

	snap, _ := m.Snapshot(res.ConversationID)
	if len(snap.Attachments) != 1 {
		t.Errorf("only the accepted attachment should be staged, got %d", len(snap.Attachments))
	}

	if err := m.AddAttachment("missing", ok); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestDispatch_Success(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(t, defaultLLM(), tr)

	res, err := m.Chat(context.Background(), "", "water leak in the lobby at 5pm", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	att := complaint.Attachment{Name: "photo.jpg", ContentType: "image/jpeg", Size: 3, Data: []byte{1, 2, 3}}
	if err := m.AddAttachment(res.ConversationID, att); err != nil {
		t.Fatalf("add attachment: %v", err)
	}

	out, err := m.Dispatch(context.Background(), res.ConversationID, "user@example.com", nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Receipt.Department != "Maintenance" {
		t.Errorf("department = %q", out.Receipt.Department)
	}
	if out.Advice == "" {
		t.Error("advice missing")
	}
	if len(tr.lastMsg.Attachments) != 1 {
		t.Errorf("attachment not delivered, got %d", len(tr.lastMsg.Attachments))
	}

	snap, _ := m.Snapshot(res.ConversationID)
	if snap.State != StateSent {
		t.Errorf("state = %q, want %q", snap.State, StateSent)
	}
	if len(snap.Attachments) != 0 {
		t.Error("attachments should be cleared after a successful dispatch")
	}
	if snap.DispatchEligible {
		t.Error("eligibility should reset after a successful dispatch")
	}
}

func TestDispatch_PreClassifiedSkipsModel(t *testing.T) {
	tr := &fakeTransport{}
	llm := defaultLLM()
	llm.classifyJSON = `{"department":"Maintenance"}`
	m := newTestManager(t, llm, tr)

	res, err := m.Chat(context.Background(), "", "water leak in the lobby at 5pm", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	pre := &classifier.Result{
		Department: "IT",
		Summary:    "Pre-confirmed routing.",
		Location:   complaint.NotSpecified,
		OccurredAt: complaint.NotSpecified,
		Severity:   complaint.SeverityLow,
		Parsed:     true,
	}
	out, err := m.Dispatch(context.Background(), res.ConversationID, "", pre)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Receipt.Department != "IT" {
		t.Errorf("pre-classification ignored, department = %q", out.Receipt.Department)
	}
	if tr.lastMsg.To != "it@example.com" {
		t.Errorf("to = %q", tr.lastMsg.To)
	}
}

func TestDispatch_NotEligible(t *testing.T) {
	llm := defaultLLM()
	llm.chatReply = "Could you tell me where this happened?"
	llm.extractionJSON = `{"description":"something is wrong","location":"Not specified","datetime":"Not specified","severity":"Medium","details":"Not specified"}`
	m := newTestManager(t, llm, &fakeTransport{})

	res, err := m.Chat(context.Background(), "", "something is wrong", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := m.Dispatch(context.Background(), res.ConversationID, "", nil); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestDispatch_UnknownSession(t *testing.T) {
	m := newTestManager(t, defaultLLM(), &fakeTransport{})
	if _, err := m.Dispatch(context.Background(), "missing", "", nil); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestDispatch_TransportFailureKeepsSessionRetryable(t *testing.T) {
	tr := &fakeTransport{sendErr: errors.New("connection refused")}
	m := newTestManager(t, defaultLLM(), tr)

	res, err := m.Chat(context.Background(), "", "water leak in the lobby at 5pm", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	att := complaint.Attachment{Name: "photo.jpg", Size: 3, Data: []byte{1, 2, 3}}
	if err := m.AddAttachment(res.ConversationID, att); err != nil {
		t.Fatalf("add attachment: %v", err)
	}

	_, err = m.Dispatch(context.Background(), res.ConversationID, "", nil)
	var te *dispatch.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	snap, _ := m.Snapshot(res.ConversationID)
	if snap.State != StateDispatchFailed {
		t.Errorf("state = %q, want %q", snap.State, StateDispatchFailed)
	}
	if len(snap.Attachments) != 1 {
		t.Error("attachments must be retained after a transport failure")
	}
	if !snap.DispatchEligible {
		t.Error("eligibility must survive a transport failure")
	}

	// The retry goes through once the transport recovers.
	tr.sendErr = nil
	if _, err := m.Dispatch(context.Background(), res.ConversationID, "", nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestDispatch_ConcurrentRejected(t *testing.T) {
	tr := &fakeTransport{started: make(chan struct{}), release: make(chan struct{})}
	m := newTestManager(t, defaultLLM(), tr)

	res, err := m.Chat(context.Background(), "", "water leak in the lobby at 5pm", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), res.ConversationID, "", nil)
		done <- err
	}()
	<-tr.started

	if _, err := m.Dispatch(context.Background(), res.ConversationID, "", nil); !errors.Is(err, ErrDispatchInFlight) {
		t.Errorf("expected ErrDispatchInFlight, got %v", err)
	}
	if _, err := m.Chat(context.Background(), res.ConversationID, "hello?", nil); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy for chat during dispatch, got %v", err)
	}

	close(tr.release)
	if err := <-done; err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
}
