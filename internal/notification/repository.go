package notification

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles notification data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new notification repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification
func (r *Repository) Create(ctx context.Context, recipientID int64, typ Type, message string, settlementID *int64) (*Notification, error) {
	query := `
		INSERT INTO notifications (recipient_id, type, message, settlement_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, recipient_id, type, message, is_read, settlement_id, created_at
	`

	n := &Notification{}
	err := r.db.QueryRowContext(ctx, query, recipientID, typ, message, settlementID).Scan(
		&n.ID,
		&n.RecipientID,
		&n.Type,
		&n.Message,
		&n.IsRead,
		&n.SettlementID,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n, nil
}

// ListByRecipient retrieves a user's notifications, newest first
func (r *Repository) ListByRecipient(ctx context.Context, recipientID int64) ([]*Notification, error) {
	query := `
		SELECT id, recipient_id, type, message, is_read, settlement_id, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Type,
			&n.Message,
			&n.IsRead,
			&n.SettlementID,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkRead flags one of the recipient's notifications as read. Returns false
// when the notification does not exist or belongs to someone else.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id, recipientID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkAllRead flags every unread notification of the recipient as read
func (r *Repository) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`,
		recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// CountUnread counts the recipient's unread notifications
func (r *Repository) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
