// Package api exposes the complaint intake pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ombudhq/ombud/internal/classifier"
	"github.com/ombudhq/ombud/internal/complaint"
	"github.com/ombudhq/ombud/internal/dispatch"
	"github.com/ombudhq/ombud/internal/identity"
	"github.com/ombudhq/ombud/internal/session"
	"github.com/ombudhq/ombud/internal/store"
)

const maxMultipartMemory = 32 << 20

type Server struct {
	router     *chi.Mux
	port       int
	sessions   *session.Manager
	classifier *classifier.Classifier
	dispatcher *dispatch.Dispatcher
	verifier   *identity.Verifier
	archive    *store.Store
	logger     *slog.Logger
}

// NewServer wires the HTTP routes. The verifier and archive are optional;
// nil disables token verification and the complaints listing.
func NewServer(
	port int,
	sessions *session.Manager,
	cls *classifier.Classifier,
	disp *dispatch.Dispatcher,
	verifier *identity.Verifier,
	archive *store.Store,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		port:       port,
		sessions:   sessions,
		classifier: cls,
		dispatcher: disp,
		verifier:   verifier,
		archive:    archive,
		logger:     logger,
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Post("/api/classify", s.handleClassify)
	s.router.Post("/api/send", s.handleSend)
	s.router.Get("/api/v1/complaints", s.handleComplaints)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("http server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toTranscript(history []historyEntry) []complaint.Entry {
	out := make([]complaint.Entry, 0, len(history))
	for _, h := range history {
		role := complaint.RoleUser
		if h.Role == "assistant" || h.Role == "bot" || h.Role == "model" {
			role = complaint.RoleAssistant
		}
		out = append(out, complaint.Entry{Role: role, Content: h.Content})
	}
	return out
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message             string         `json:"message"`
		ConversationID      string         `json:"conversationId"`
		ConversationHistory []historyEntry `json:"conversationHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.sessions.Chat(r.Context(), req.ConversationID, strings.TrimSpace(req.Message), toTranscript(req.ConversationHistory))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, session.ErrSessionBusy), errors.Is(err, session.ErrDispatchInFlight):
			writeError(w, http.StatusConflict, "conversation is busy, try again shortly")
		default:
			s.logger.Error("chat turn failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to generate a reply")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reply":            res.Reply,
		"conversationId":   res.ConversationID,
		"complaint":        res.Record,
		"dispatchEligible": res.DispatchEligible,
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID      string         `json:"conversationId"`
		ConversationHistory []historyEntry `json:"conversationHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var rec complaint.Record
	var transcript []complaint.Entry
	switch {
	case req.ConversationID != "":
		snap, err := s.sessions.Snapshot(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown conversation")
			return
		}
		rec, transcript = snap.Record, snap.Transcript
	case len(req.ConversationHistory) > 0:
		rec, transcript = complaint.NewRecord(), toTranscript(req.ConversationHistory)
	default:
		writeError(w, http.StatusBadRequest, "conversationId or conversationHistory is required")
		return
	}

	writeJSON(w, http.StatusOK, s.classifier.Classify(r.Context(), rec, transcript))
}

type sendRequest struct {
	ConversationID string `json:"conversationId"`
	Department     string `json:"department"`
	Summary        string `json:"summary"`
	Location       string `json:"location"`
	OccurredAt     string `json:"datetime"`
	Severity       string `json:"severity"`
	Details        string `json:"details"`
	UserEmail      string `json:"userEmail"`

	attachments []complaint.Attachment
}

func (s *Server) parseSendRequest(w http.ResponseWriter, r *http.Request) (*sendRequest, bool) {
	var req sendRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return nil, false
		}
		req.ConversationID = r.FormValue("conversationId")
		req.Department = r.FormValue("department")
		req.Summary = r.FormValue("summary")
		req.Location = r.FormValue("location")
		req.OccurredAt = r.FormValue("datetime")
		req.Severity = r.FormValue("severity")
		req.Details = r.FormValue("details")
		req.UserEmail = r.FormValue("userEmail")

		for _, fh := range r.MultipartForm.File["attachments"] {
			if fh.Size > complaint.MaxAttachmentSize {
				writeError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("attachment %q exceeds the %d MB limit", fh.Filename, complaint.MaxAttachmentSize>>20))
				return nil, false
			}
			att, err := readAttachment(fh)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unreadable attachment %q", fh.Filename))
				return nil, false
			}
			req.attachments = append(req.attachments, att)
		}
		return &req, true
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

func readAttachment(fh *multipart.FileHeader) (complaint.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return complaint.Attachment{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return complaint.Attachment{}, err
	}
	return complaint.Attachment{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        data,
	}, nil
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSendRequest(w, r)
	if !ok {
		return
	}

	requesterEmail := strings.TrimSpace(req.UserEmail)
	if token := bearerToken(r); token != "" && s.verifier != nil {
		ident, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid identity token")
			return
		}
		requesterEmail = ident.Email
	}

	var result *session.DispatchResult
	var err error
	if req.ConversationID != "" {
		result, err = s.dispatchSession(r.Context(), req, requesterEmail)
	} else {
		result, err = s.dispatchStateless(r.Context(), req, requesterEmail, w)
		if result == nil && err == nil {
			return
		}
	}
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"messageId":       result.Receipt.DeliveryID,
		"department":      result.Receipt.Department,
		"departmentEmail": result.Receipt.DepartmentEmail,
		"advice":          result.Advice,
	})
}

func (s *Server) dispatchSession(ctx context.Context, req *sendRequest, requesterEmail string) (*session.DispatchResult, error) {
	for _, att := range req.attachments {
		if err := s.sessions.AddAttachment(req.ConversationID, att); err != nil {
			return nil, err
		}
	}

	var pre *classifier.Result
	if req.Department != "" {
		pre = &classifier.Result{
			Department: req.Department,
			Summary:    req.Summary,
			Location:   orNotSpecified(req.Location),
			OccurredAt: orNotSpecified(req.OccurredAt),
			Severity:   complaint.ParseSeverity(req.Severity),
			Details:    req.Details,
			Parsed:     true,
		}
	}

	return s.sessions.Dispatch(ctx, req.ConversationID, requesterEmail, pre)
}

func (s *Server) dispatchStateless(ctx context.Context, req *sendRequest, requesterEmail string, w http.ResponseWriter) (*session.DispatchResult, error) {
	if req.Department == "" || strings.TrimSpace(req.Summary) == "" {
		writeError(w, http.StatusBadRequest, "department and summary are required without a conversation")
		return nil, nil
	}

	cls := classifier.Result{
		Department: req.Department,
		Summary:    req.Summary,
		Location:   orNotSpecified(req.Location),
		OccurredAt: orNotSpecified(req.OccurredAt),
		Severity:   complaint.ParseSeverity(req.Severity),
		Details:    req.Details,
		Parsed:     true,
	}
	receipt, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Department:     req.Department,
		Classification: cls,
		RequesterEmail: requesterEmail,
		Attachments:    req.attachments,
	})
	if err != nil {
		return nil, err
	}
	return &session.DispatchResult{Receipt: receipt, Classification: cls}, nil
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var te *dispatch.TransportError
	switch {
	case errors.Is(err, session.ErrUnknownSession):
		writeError(w, http.StatusNotFound, "unknown conversation")
	case errors.Is(err, session.ErrAttachmentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, session.ErrNotEligible):
		writeError(w, http.StatusConflict, "complaint is not ready to dispatch")
	case errors.Is(err, session.ErrDispatchInFlight), errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, "a dispatch is already in progress")
	case errors.Is(err, dispatch.ErrUnknownDepartment),
		errors.Is(err, dispatch.ErrDepartmentNotConfigured),
		errors.Is(err, dispatch.ErrMissingSummary):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &te):
		writeError(w, http.StatusBadGateway, te.Error())
	default:
		s.logger.Error("dispatch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "dispatch failed")
	}
}

func (s *Server) handleComplaints(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "complaint archive is not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	complaints, err := s.archive.RecentDispatches(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list complaints", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list complaints")
		return
	}
	if complaints == nil {
		complaints = []store.DispatchedComplaint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"complaints": complaints})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func orNotSpecified(v string) string {
	if strings.TrimSpace(v) == "" {
		return complaint.NotSpecified
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
