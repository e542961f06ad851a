package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// CategoryAll disables category filtering in FilterIssues.
const CategoryAll = "All"

// IssueService is the only reader and writer of issue state. Status and
// comment notifications are published from here once the write commits.
type IssueService struct {
	issues     repository.IssueRepository
	dispatcher events.Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo  repository.IssueRepository
	Dispatcher events.Dispatcher
	Clock      func() time.Time
	Logger     *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	s := &IssueService{
		issues:     deps.IssueRepo,
		dispatcher: deps.Dispatcher,
		now:        deps.Clock,
		logger:     deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// AddIssue stores a new Open issue. Caller supplied fields are trusted
// as given.
func (s *IssueService) AddIssue(ctx context.Context, in domain.IssueInput) (*domain.Issue, error) {
	issue := &domain.Issue{
		UserID:           in.UserID,
		UserEmail:        in.UserEmail,
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		Severity:         in.Severity,
		Priority:         in.Priority,
		Impact:           in.Impact,
		Reproducibility:  in.Reproducibility,
		Location:         in.Location,
		AssetID:          in.AssetID,
		ContactPhone:     in.ContactPhone,
		BestTime:         in.BestTime,
		StepsToReproduce: in.StepsToReproduce,
		ExpectedResult:   in.ExpectedResult,
		Status:           domain.IssueStatusOpen,
		Comments:         []domain.Comment{},
		CreatedAt:        s.now(),
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   events.Actor{UserID: in.UserID},
		Payload: events.IssueCreatedPayload{UserID: in.UserID, Category: in.Category},
	})
	return issue, nil
}

// GetIssue reads one issue.
func (s *IssueService) GetIssue(ctx context.Context, id string) (*domain.Issue, error) {
	return s.issues.GetByID(ctx, id)
}

// GetIssues reads issues once with the same query shape as
// SubscribeToIssues.
func (s *IssueService) GetIssues(ctx context.Context, userID string) ([]domain.Issue, error) {
	return s.issues.List(ctx, issueFilter(userID))
}

// SubscribeToIssues streams the issues of userID, unordered, or every
// issue newest first when userID is empty. Each snapshot replaces the
// previous result. A failed subscription delivers one empty result and
// stops.
func (s *IssueService) SubscribeToIssues(ctx context.Context, userID string, callback func([]domain.Issue)) docstore.Unsubscribe {
	return s.issues.Watch(ctx, issueFilter(userID), callback, func(err error) {
		s.logger.Error("issue subscription failed", zap.String("user_id", userID), zap.Error(err))
		callback([]domain.Issue{})
	})
}

// UpdateIssueStatus writes the new status. The reporter notification runs
// after the write and cannot undo it.
func (s *IssueService) UpdateIssueStatus(ctx context.Context, actor events.Actor, issueID string, status domain.IssueStatus) error {
	if !status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}
	if err := s.issues.UpdateStatus(ctx, issueID, status, s.now()); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: issueID,
		Actor:   actor,
		Payload: events.IssueStatusChangedPayload{NewStatus: status},
	})
	return nil
}

// AddComment appends to the comment thread and bumps updatedAt.
// Concurrent appends are never lost.
func (s *IssueService) AddComment(ctx context.Context, issueID, text string, role domain.Role, authorName string) error {
	now := s.now()
	comment := domain.Comment{
		ID:         uuid.NewString(),
		Text:       text,
		Role:       role,
		AuthorName: authorName,
		CreatedAt:  now,
	}
	if err := s.issues.AppendComment(ctx, issueID, comment, now); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueCommentAdded,
		IssueID: issueID,
		Actor:   events.Actor{Role: role},
		Payload: events.IssueCommentAddedPayload{Text: text, Role: role, AuthorName: authorName},
	})
	return nil
}

// FilterIssues narrows a list the way the list screens do: by exact
// category unless it is empty or CategoryAll, then by a case-insensitive
// substring of title, description or reporter email.
func FilterIssues(issues []domain.Issue, category, search string) []domain.Issue {
	query := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if category != "" && category != CategoryAll && issue.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(issue.Title), query) &&
			!strings.Contains(strings.ToLower(issue.Description), query) &&
			!strings.Contains(strings.ToLower(issue.UserEmail), query) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func issueFilter(userID string) repository.IssueFilter {
	if userID != "" {
		return repository.IssueFilter{UserID: userID}
	}
	return repository.IssueFilter{NewestFirst: true}
}

func (s *IssueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("issue_id", event.IssueID),
			zap.Error(err),
		)
	}
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
