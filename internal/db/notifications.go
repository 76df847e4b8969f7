package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tripdesk/backend/internal/models"
)

const notificationColumns = `id, kind, recipient, payload, status, attempts, next_attempt_at, last_error, created_at, sent_at`

func scanNotification(row pgx.Row) (models.Notification, error) {
	var n models.Notification
	var payload []byte
	err := row.Scan(&n.ID, &n.Kind, &n.Recipient, &payload, &n.Status, &n.Attempts, &n.NextAttemptAt,
		&n.LastError, &n.CreatedAt, &n.SentAt)
	n.Payload = payload
	return n, err
}

func (s *Store) EnqueueNotification(ctx context.Context, n models.Notification) error {
	payload := []byte(n.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, n.ID, n.Kind, n.Recipient, payload, n.Status, n.Attempts, n.NextAttemptAt, n.LastError, n.CreatedAt, n.SentAt)
	return translate(err, "Notification")
}

// ClaimDueNotifications leases up to limit pending notifications that are due at
// now. The lease pushes next_attempt_at forward so concurrent dispatchers skip
// rows already being worked on.
func (s *Store) ClaimDueNotifications(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Notification, error) {
	rows, err := s.q(ctx).Query(ctx, `
		UPDATE notifications SET next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+notificationColumns, now, now.Add(lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.q(ctx).Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = $2, attempts = attempts + 1, last_error = ''
		WHERE id = $1
	`, id, at)
	return translate(err, "Notification")
}

// MarkNotificationRetry records a failed attempt. When failed is true the row
// leaves the pending queue for good.
func (s *Store) MarkNotificationRetry(ctx context.Context, id string, next time.Time, lastErr string, failed bool) error {
	status := models.NotificationPending
	if failed {
		status = models.NotificationFailed
	}
	_, err := s.q(ctx).Exec(ctx, `
		UPDATE notifications SET status = $2, attempts = attempts + 1, next_attempt_at = $3, last_error = $4
		WHERE id = $1
	`, id, status, next, lastErr)
	return translate(err, "Notification")
}

func (s *Store) CountPendingNotifications(ctx context.Context) (int, error) {
	var n int
	err := s.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE status = 'pending'`).Scan(&n)
	return n, err
}
