package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/onglesrivieres/salon360-sub003/internal/notify"

	"github.com/jackc/pgx/v5"
)

// The notification worker tracks its position in the outbox with a single
// offset row so restarts never re-deliver.

func (s *Store) GetLastOffset(ctx context.Context) (time.Time, error) {
	var last time.Time
	row := s.pool.QueryRow(ctx, `SELECT last_event_at FROM notification_offsets WHERE id = 1`)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return last, nil
}

func (s *Store) UpdateOffset(ctx context.Context, last time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_offsets (id, last_event_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_event_at = EXCLUDED.last_event_at
	`, last)
	return err
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]notify.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, store_id, type, payload_json, created_at
		FROM outbox_events
		WHERE created_at > $1
		ORDER BY created_at ASC
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []notify.OutboxEvent
	for rows.Next() {
		var event notify.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.StoreID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) GetContact(ctx context.Context, employeeID string) (notify.Contact, error) {
	var phone, email sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT phone, email FROM employees WHERE employee_id = $1
	`, employeeID)
	if err := row.Scan(&phone, &email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notify.Contact{}, nil
		}
		return notify.Contact{}, err
	}
	return notify.Contact{Phone: phone.String, Email: email.String}, nil
}

func (s *Store) InsertNotification(ctx context.Context, n notify.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (notification_id, channel, recipient, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.NotificationID, n.Channel, n.Recipient, n.Body, n.Status, time.Now().UTC())
	return err
}
