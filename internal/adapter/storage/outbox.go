package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hqnguyen/order-engine/internal/core/domain"
)

// OutboxMySQL stores domain events durably. Append runs inside the
// same transaction as the business mutation; the relay reads and marks
// rows outside any business transaction.
type OutboxMySQL struct {
	q queryer
}

func (r *OutboxMySQL) Append(ctx context.Context, event *domain.OutboxEvent) error {
	now := time.Now().UTC()
	event.CreatedAt = now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, topic, payload, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		event.ID.String(), event.EventType, event.AggregateID.String(),
		event.Topic, []byte(event.Payload), string(event.Status), now,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxMySQL) PullPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, topic, payload, status, retry_count, error_message, processed_at, created_at
		FROM outbox_events WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(domain.EventStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pull pending events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var (
			event         domain.OutboxEvent
			idStr, aggStr string
			status        string
			payload       []byte
			errorMessage  sql.NullString
			processedAt   sql.NullTime
		)
		if err := rows.Scan(&idStr, &event.EventType, &aggStr, &event.Topic, &payload,
			&status, &event.RetryCount, &errorMessage, &processedAt, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		if event.ID, err = parseUUID(idStr); err != nil {
			return nil, err
		}
		if event.AggregateID, err = parseUUID(aggStr); err != nil {
			return nil, err
		}
		event.Payload = payload
		event.Status = domain.EventStatus(status)
		event.ErrorMessage = errorMessage.String
		event.ProcessedAt = timePtr(processedAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *OutboxMySQL) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE outbox_events SET status = ?, processed_at = ? WHERE id = ?`,
		string(domain.EventStatusPublished), time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

func (r *OutboxMySQL) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE outbox_events SET status = ?, error_message = ?, retry_count = retry_count + 1 WHERE id = ?`,
		string(domain.EventStatusFailed), reason, id.String(),
	)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}
