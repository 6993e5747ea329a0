package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/models"
)

// NotificationRepository is the append-only notification sink plus its
// read side.
type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Notify creates a notification addressed to userID. It satisfies the
// analysis.Notifier contract; callers treat it as fire-and-forget.
func (r *NotificationRepository) Notify(ctx context.Context, userID, ntype, title, message string, metadata map[string]string) error {
	return r.Create(ctx, models.NewNotification(userID, ntype, title, message, metadata))
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	var metadataJSON *string
	if n.Metadata != nil {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		s := string(b)
		metadataJSON = &s
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.conn.ExecContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, metadataJSON, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, type, title, message, metadata, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var metadataJSON sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &metadataJSON, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &n.Metadata); err != nil {
				n.Metadata = nil
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one of the user's notifications as read. Marking another
// user's notification reports not-found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = $1 WHERE id = $2 AND user_id = $3`,
		true, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
