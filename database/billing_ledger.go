package database

import (
	"context"
	"fmt"
	"time"

	"ledgerly/backend/models"
)

// BillingLedger records processed payment events and the dead-letter queue.
type BillingLedger struct {
	db *LocalDB
}

// NewBillingLedger returns a ledger on db.
func NewBillingLedger(db *LocalDB) *BillingLedger {
	return &BillingLedger{db: db}
}

// MarkProcessed records eventID. It returns false when the event was seen before.
func (l *BillingLedger) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := l.db.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO billing_events (event_id, event_type, received_at)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`),
		eventID, eventType, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AdvanceSubscription records (created, rank) as the latest applied event of
// subscriptionID. It returns false, leaving the marker alone, when the stored marker
// is later. Equal markers are accepted so a failed event can be replayed.
func (l *BillingLedger) AdvanceSubscription(ctx context.Context, subscriptionID string, created int64, rank int) (bool, error) {
	res, err := l.db.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO billing_subscriptions (subscription_id, event_created, event_rank, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (subscription_id) DO UPDATE SET
			event_created = excluded.event_created,
			event_rank = excluded.event_rank,
			updated_at = excluded.updated_at
		WHERE billing_subscriptions.event_created < excluded.event_created
			OR (billing_subscriptions.event_created = excluded.event_created
				AND billing_subscriptions.event_rank <= excluded.event_rank)`),
		subscriptionID, created, rank, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to advance subscription %s: %w", subscriptionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AddDeadLetter queues a failed event for redelivery.
func (l *BillingLedger) AddDeadLetter(ctx context.Context, eventID, eventType string, payload []byte, lastErr string) error {
	now := time.Now().UTC()
	_, err := l.db.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO billing_dead_letters (event_id, event_type, payload, last_error, attempts, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)`),
		eventID, eventType, payload, lastErr, models.DeadLetterPending, now, now)
	if err != nil {
		return fmt.Errorf("failed to store dead letter for %s: %w", eventID, err)
	}
	return nil
}

// PendingDeadLetters returns up to limit pending letters, oldest first.
func (l *BillingLedger) PendingDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	return l.ListDeadLetters(ctx, models.DeadLetterPending, limit)
}

// ListDeadLetters returns up to limit letters in status, oldest first.
func (l *BillingLedger) ListDeadLetters(ctx context.Context, status string, limit int) ([]models.DeadLetter, error) {
	rows, err := l.db.QueryContext(ctx, l.db.Rebind(`
		SELECT id, event_id, event_type, payload, last_error, attempts, status, created_at, updated_at
		FROM billing_dead_letters
		WHERE status = ?
		ORDER BY id
		LIMIT ?`), status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []models.DeadLetter
	for rows.Next() {
		var d models.DeadLetter
		if err := rows.Scan(&d.ID, &d.EventID, &d.EventType, &d.Payload, &d.LastError,
			&d.Attempts, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		letters = append(letters, d)
	}
	return letters, rows.Err()
}

// ResolveDeadLetter marks a letter as successfully redelivered.
func (l *BillingLedger) ResolveDeadLetter(ctx context.Context, id int64) error {
	return l.updateLetter(ctx, id, models.DeadLetterResolved, "")
}

// FailDeadLetter records another failed attempt. abandon stops further retries.
func (l *BillingLedger) FailDeadLetter(ctx context.Context, id int64, lastErr string, abandon bool) error {
	status := models.DeadLetterPending
	if abandon {
		status = models.DeadLetterAbandoned
	}
	return l.updateLetter(ctx, id, status, lastErr)
}

func (l *BillingLedger) updateLetter(ctx context.Context, id int64, status, lastErr string) error {
	query := `
		UPDATE billing_dead_letters
		SET attempts = attempts + 1, status = ?, updated_at = ?`
	args := []any{status, time.Now().UTC()}
	if lastErr != "" {
		query += ", last_error = ?"
		args = append(args, lastErr)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := l.db.ExecContext(ctx, l.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update dead letter %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("dead letter %d does not exist", id)
	}
	return nil
}
