// Package mailer delivers rendered notifications over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"

	"github.com/ombudhq/ombud/internal/dispatch"
)

// SMTP sends notifications through a single SMTP account, Gmail-style
// submission with STARTTLS on port 587 by default.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *slog.Logger
}

func NewSMTP(host string, port int, username, password, from string, logger *slog.Logger) *SMTP {
	if from == "" {
		from = username
	}
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

// Send delivers one message and returns its Message-Id.
func (s *SMTP) Send(ctx context.Context, msg dispatch.Message) (string, error) {
	e, id, err := s.build(msg)
	if err != nil {
		return "", err
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := e.Send(addr, auth); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Info("mail delivered", "to", msg.To, "message_id", id)
	return id, nil
}

func (s *SMTP) build(msg dispatch.Message) (*email.Email, string, error) {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	if msg.CC != "" {
		e.Cc = []string{msg.CC}
	}
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTMLBody)

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := e.Attach(bytes.NewReader(att.Data), att.Name, contentType); err != nil {
			return nil, "", fmt.Errorf("attach %q: %w", att.Name, err)
		}
	}

	id := fmt.Sprintf("<%s@%s>", uuid.New(), s.host)
	e.Headers.Set("Message-Id", id)
	return e, id, nil
}
