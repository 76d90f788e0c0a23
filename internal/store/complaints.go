package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ombudhq/ombud/internal/classifier"
)

// DispatchedComplaint is one archived dispatch.
type DispatchedComplaint struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	Department     string    `json:"department"`
	Summary        string    `json:"summary"`
	Location       string    `json:"location"`
	OccurredAt     string    `json:"datetime"`
	Severity       string    `json:"severity"`
	Details        string    `json:"details"`
	RequesterEmail string    `json:"requesterEmail,omitempty"`
	DeliveryID     string    `json:"messageId"`
	DispatchedAt   time.Time `json:"dispatchedAt"`
}

// RecordDispatch archives a delivered complaint and returns its row id.
func (s *Store) RecordDispatch(ctx context.Context, conversationID string, cls classifier.Result, requesterEmail, deliveryID string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO complaints (
			id, conversation_id, department, summary, location,
			occurred_at, severity, details, requester_email, delivery_id, dispatched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		id, conversationID, cls.Department, cls.Summary, cls.Location,
		cls.OccurredAt, string(cls.Severity), cls.Details, requesterEmail, deliveryID,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert complaint: %w", err)
	}
	return id, nil
}

// RecentDispatches returns the newest archived complaints, capped at limit.
func (s *Store) RecentDispatches(ctx context.Context, limit int) ([]DispatchedComplaint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, department, summary, location,
		       occurred_at, severity, details, requester_email, delivery_id, dispatched_at
		FROM complaints
		ORDER BY dispatched_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()

	var out []DispatchedComplaint
	for rows.Next() {
		var c DispatchedComplaint
		if err := rows.Scan(
			&c.ID, &c.ConversationID, &c.Department, &c.Summary, &c.Location,
			&c.OccurredAt, &c.Severity, &c.Details, &c.RequesterEmail, &c.DeliveryID, &c.DispatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
