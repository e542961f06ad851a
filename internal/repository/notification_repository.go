package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
)

// NotificationsCollection holds the per-user notification feed.
const NotificationsCollection = "notifications"

// NotificationRepository defines persistence access for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	WatchForUser(ctx context.Context, userID string, onNotifications func([]domain.Notification), onError docstore.ErrorFunc) docstore.Unsubscribe
}

type notificationRepository struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewNotificationRepository returns a document store backed implementation.
func NewNotificationRepository(store docstore.Store, logger *zap.Logger) NotificationRepository {
	return &notificationRepository{store: store, logger: nopIfNil(logger)}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	id, err := r.store.Add(ctx, NotificationsCollection, map[string]any{
		"userId":    n.UserID,
		"title":     n.Title,
		"body":      n.Body,
		"type":      string(n.Type),
		"issueId":   n.IssueID,
		"read":      n.Read,
		"createdAt": domain.FormatTime(n.CreatedAt),
	})
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	docs, err := r.store.List(ctx, forUser(userID))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, r.logger, toNotification), nil
}

func (r *notificationRepository) WatchForUser(ctx context.Context, userID string, onNotifications func([]domain.Notification), onError docstore.ErrorFunc) docstore.Unsubscribe {
	return r.store.Watch(ctx, forUser(userID), func(docs []docstore.Document) {
		onNotifications(decodeAll(docs, r.logger, toNotification))
	}, onError)
}

func forUser(userID string) docstore.Query {
	return docstore.Collection(NotificationsCollection).
		Where("userId", userID).
		Order("createdAt", docstore.Desc)
}

func toNotification(doc docstore.Document) (*domain.Notification, error) {
	var n domain.Notification
	if err := decode(doc, &n); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", doc.ID, err)
	}
	n.ID = doc.ID
	return &n, nil
}
