package notificationdb

import (
	"context"
	"database/sql"
)

const notificationColumns = `id, user_id, type, title, message, related_id, is_read, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Type,
		&i.Title,
		&i.Message,
		&i.RelatedID,
		&i.IsRead,
		sqliteTime{&i.CreatedAt},
	)
	return i, err
}

func (q *Queries) listNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		i, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUnreadNotifications = `-- name: CountUnreadNotifications :one
SELECT COUNT(*) FROM notifications
WHERE user_id = ? AND is_read = 0
`

func (q *Queries) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnreadNotifications, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createNotification = `-- name: CreateNotification :exec
INSERT INTO notifications (id, user_id, type, title, message, related_id)
VALUES (?, ?, ?, ?, ?, ?)
`

type CreateNotificationParams struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	RelatedID sql.NullInt64
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	_, err := q.db.ExecContext(ctx, createNotification,
		arg.ID,
		arg.UserID,
		arg.Type,
		arg.Title,
		arg.Message,
		arg.RelatedID,
	)
	return err
}

const getNotificationByID = `-- name: GetNotificationByID :one
SELECT ` + notificationColumns + ` FROM notifications
WHERE id = ?
`

func (q *Queries) GetNotificationByID(ctx context.Context, id string) (Notification, error) {
	row := q.db.QueryRowContext(ctx, getNotificationByID, id)
	return scanNotification(row)
}

const listNotificationsByUserID = `-- name: ListNotificationsByUserID :many
SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT 50
`

func (q *Queries) ListNotificationsByUserID(ctx context.Context, userID string) ([]Notification, error) {
	return q.listNotifications(ctx, listNotificationsByUserID, userID)
}

const listUnreadNotifications = `-- name: ListUnreadNotifications :many
SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ? AND is_read = 0
ORDER BY created_at DESC, rowid DESC
LIMIT 50
`

func (q *Queries) ListUnreadNotifications(ctx context.Context, userID string) ([]Notification, error) {
	return q.listNotifications(ctx, listUnreadNotifications, userID)
}

const markAllAsRead = `-- name: MarkAllAsRead :exec
UPDATE notifications SET is_read = 1
WHERE user_id = ? AND is_read = 0
`

func (q *Queries) MarkAllAsRead(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, markAllAsRead, userID)
	return err
}

const markAsRead = `-- name: MarkAsRead :exec
UPDATE notifications SET is_read = 1
WHERE id = ?
`

func (q *Queries) MarkAsRead(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markAsRead, id)
	return err
}
