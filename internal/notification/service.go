package notification

import (
	"context"
	"errors"
)

// ErrNotificationNotFound is returned when the notification does not exist
// or belongs to another user.
var ErrNotificationNotFound = errors.New("notification not found")

// Service handles notification business logic
type Service struct {
	repo *Repository
}

// NewService creates a new notification service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// SettlementDue records a SETTLEMENT_DUE notification for a payer. Satisfies
// the settlement engine's Notifier.
func (s *Service) SettlementDue(ctx context.Context, recipientID, settlementID int64, message string) error {
	_, err := s.repo.Create(ctx, recipientID, TypeSettlementDue, message, &settlementID)
	return err
}

// SettlementConfirmed records an INFO notification for the counterparty of a
// confirmed settlement. Satisfies the settlement engine's Notifier.
func (s *Service) SettlementConfirmed(ctx context.Context, recipientID, settlementID int64, message string) error {
	_, err := s.repo.Create(ctx, recipientID, TypeInfo, message, &settlementID)
	return err
}

// List retrieves the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID int64) ([]*Notification, error) {
	return s.repo.ListByRecipient(ctx, userID)
}

// MarkRead flags one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flags all of the user's notifications as read and reports how
// many were flipped
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// UnreadCount counts the user's unread notifications
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
