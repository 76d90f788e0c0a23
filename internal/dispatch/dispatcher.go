// Package dispatch validates, renders and delivers complaint notifications
// to department mailboxes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ombudhq/ombud/internal/classifier"
	"github.com/ombudhq/ombud/internal/complaint"
)

// Input and configuration failures, rejected before any transport call.
var (
	ErrUnknownDepartment       = errors.New("unknown department")
	ErrDepartmentNotConfigured = errors.New("department mailbox not configured")
	ErrMissingSummary          = errors.New("summary is required")
)

// TransportError carries the mail transport's own message. The complaint
// stays with the session so the user can retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "mail transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message is the rendered notification handed to the transport.
type Message struct {
	To          string
	CC          string
	Subject     string
	HTMLBody    string
	Attachments []complaint.Attachment
}

// Transport delivers a rendered notification and returns a delivery id.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type Request struct {
	Department     string
	Classification classifier.Result
	RequesterEmail string
	Attachments    []complaint.Attachment
}

type Receipt struct {
	DeliveryID      string `json:"messageId"`
	Department      string `json:"department"`
	DepartmentEmail string `json:"departmentEmail"`
}

type Dispatcher struct {
	addresses map[string]string
	transport Transport
	logger    *slog.Logger
}

// New builds a dispatcher over an explicit department→address table. The
// table is injected once at construction, never read ambiently.
func New(addresses map[string]string, transport Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{addresses: addresses, transport: transport, logger: logger}
}

// Dispatch validates the request, renders the notification and performs
// exactly one delivery attempt. Retry policy belongs to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Receipt, error) {
	if !complaint.ValidDepartment(req.Department) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDepartment, req.Department)
	}
	addr := d.addresses[req.Department]
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("%w: %s", ErrDepartmentNotConfigured, req.Department)
	}
	if strings.TrimSpace(req.Classification.Summary) == "" {
		return nil, ErrMissingSummary
	}

	body, err := renderNotification(req)
	if err != nil {
		return nil, fmt.Errorf("render notification: %w", err)
	}

	subject := fmt.Sprintf("New Complaint - %s Department [%s Priority]", req.Department, req.Classification.Severity)
	id, err := d.transport.Send(ctx, Message{
		To:          addr,
		CC:          req.RequesterEmail,
		Subject:     subject,
		HTMLBody:    body,
		Attachments: req.Attachments,
	})
	if err != nil {
		d.logger.Error("dispatch failed", "department", req.Department, "error", err)
		return nil, &TransportError{Err: err}
	}

	d.logger.Info("complaint dispatched",
		"department", req.Department,
		"severity", req.Classification.Severity,
		"delivery_id", id,
		"attachments", len(req.Attachments),
	)

	return &Receipt{DeliveryID: id, Department: req.Department, DepartmentEmail: addr}, nil
}
