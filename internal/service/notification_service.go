package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/push"
	"github.com/spec-kit/issue-service/internal/repository"
)

// Notification texts shown to the reporter.
const (
	statusUpdatedTitle = "Status Updated"
	newCommentTitle    = "New Comment"
)

// NotificationService turns committed issue changes into a push to the
// reporter and a stored notification. Handler errors go to the
// dispatcher's log and never reach the writer.
type NotificationService struct {
	dispatcher    events.Dispatcher
	issues        repository.IssueRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	relay         push.Relay
	metrics       *observability.Metrics
	now           func() time.Time
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher       events.Dispatcher
	IssueRepo        repository.IssueRepository
	UserRepo         repository.UserRepository
	NotificationRepo repository.NotificationRepository
	Relay            push.Relay
	Metrics          *observability.Metrics
	Clock            func() time.Time
	Logger           *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	n := &NotificationService{
		dispatcher:    deps.Dispatcher,
		issues:        deps.IssueRepo,
		users:         deps.UserRepo,
		notifications: deps.NotificationRepo,
		relay:         deps.Relay,
		metrics:       deps.Metrics,
		now:           deps.Clock,
		logger:        deps.Logger,
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.relay == nil {
		n.relay = push.NewLogRelay(n.logger)
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIssueCreated, n.handleIssueCreated)
	n.dispatcher.Subscribe(events.EventIssueStatusChanged, n.handleIssueStatusChanged)
	n.dispatcher.Subscribe(events.EventIssueCommentAdded, n.handleIssueCommentAdded)
}

// List returns the notifications of userID, newest first.
func (n *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return n.notifications.ListForUser(ctx, userID)
}

// Subscribe streams the notifications of userID, newest first. A failed
// subscription is logged and stops updating.
func (n *NotificationService) Subscribe(ctx context.Context, userID string, callback func([]domain.Notification)) docstore.Unsubscribe {
	return n.notifications.WatchForUser(ctx, userID, callback, func(err error) {
		n.logger.Error("notification subscription failed", zap.String("user_id", userID), zap.Error(err))
	})
}

func (n *NotificationService) handleIssueCreated(_ context.Context, event events.Event) error {
	n.logger.Info("IssueCreated", zap.String("issue_id", event.IssueID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleIssueStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssueStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	issue, err := n.issues.GetByID(ctx, event.IssueID)
	if err != nil {
		return fmt.Errorf("load issue: %w", err)
	}
	body := fmt.Sprintf("Your issue \"%s\" is now %s", issueLabel(issue), payload.NewStatus)
	return n.notifyReporter(ctx, issue, domain.NotificationStatusUpdate, statusUpdatedTitle, body)
}

// Only staff replies notify the reporter; employee comments notify nobody.
func (n *NotificationService) handleIssueCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssueCommentAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.Role != domain.RoleManager {
		return nil
	}
	issue, err := n.issues.GetByID(ctx, event.IssueID)
	if err != nil {
		return fmt.Errorf("load issue: %w", err)
	}
	body := "Manager replied: " + payload.Text
	return n.notifyReporter(ctx, issue, domain.NotificationComment, newCommentTitle, body)
}

// notifyReporter pushes to the reporter's device and records the
// notification. Nothing happens when the reporter has no push token. A
// relay failure is logged and the notification is still recorded.
func (n *NotificationService) notifyReporter(ctx context.Context, issue *domain.Issue, kind domain.NotificationType, title, body string) error {
	if issue.UserID == "" {
		return nil
	}
	reporter, err := n.users.GetByID(ctx, issue.UserID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			n.metrics.RecordNotification(string(kind), observability.NotificationNoToken)
			return nil
		}
		return fmt.Errorf("load reporter: %w", err)
	}
	if reporter.PushToken == "" {
		n.metrics.RecordNotification(string(kind), observability.NotificationNoToken)
		return nil
	}

	msg := push.Message{
		Token: reporter.PushToken,
		Title: title,
		Body:  body,
		Data:  map[string]string{"issueId": issue.ID, "type": string(kind)},
	}
	if err := n.relay.Send(ctx, msg); err != nil {
		n.metrics.RecordNotification(string(kind), observability.NotificationFailed)
		n.logger.Warn("push send failed",
			zap.String("issue_id", issue.ID),
			zap.String("user_id", issue.UserID),
			zap.Error(err),
		)
	} else {
		n.metrics.RecordNotification(string(kind), observability.NotificationSent)
	}

	record := &domain.Notification{
		UserID:    issue.UserID,
		Title:     title,
		Body:      body,
		Type:      kind,
		IssueID:   issue.ID,
		CreatedAt: n.now(),
	}
	if err := n.notifications.Create(ctx, record); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	n.metrics.RecordNotification(string(kind), observability.NotificationRecorded)
	return nil
}

// issueLabel names an issue in notification text. Issues filed without a
// title are named by the start of their description.
func issueLabel(issue *domain.Issue) string {
	if issue.Title != "" {
		return issue.Title
	}
	return stringPreview(issue.Description, 40)
}
