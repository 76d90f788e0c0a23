// Package events publishes complaint lifecycle events to NATS so other
// systems can react to dispatches without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const SubjectDispatched = "ombud.complaint.dispatched"

// Dispatched is emitted after a complaint notification is delivered.
type Dispatched struct {
	ConversationID string    `json:"conversation_id"`
	Department     string    `json:"department"`
	Severity       string    `json:"severity"`
	Summary        string    `json:"summary"`
	DeliveryID     string    `json:"delivery_id"`
	RequesterEmail string    `json:"requester_email,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS with retry enabled so a broker restart does not take
// the service down with it.
func Connect(ctx context.Context, url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", url)
	return &Publisher{conn: conn, logger: logger}, nil
}

// ComplaintDispatched publishes a dispatch event. The timestamp is stamped
// here when the caller left it zero.
func (p *Publisher) ComplaintDispatched(evt Dispatched) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal dispatch event: %w", err)
	}
	if err := p.conn.Publish(SubjectDispatched, payload); err != nil {
		return fmt.Errorf("publish dispatch event: %w", err)
	}
	p.logger.Debug("dispatch event published", "conversation_id", evt.ConversationID, "department", evt.Department)
	return nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
