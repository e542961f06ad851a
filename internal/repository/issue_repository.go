package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
)

// IssuesCollection holds reported issues.
const IssuesCollection = "issues"

// IssueFilter narrows an issue query. An empty UserID selects every issue.
type IssueFilter struct {
	UserID      string
	NewestFirst bool
}

// IssueRepository defines persistence access for issues.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	UpdateStatus(ctx context.Context, id string, status domain.IssueStatus, updatedAt time.Time) error
	AppendComment(ctx context.Context, id string, comment domain.Comment, updatedAt time.Time) error
	Watch(ctx context.Context, filter IssueFilter, onIssues func([]domain.Issue), onError docstore.ErrorFunc) docstore.Unsubscribe
}

type issueRepository struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewIssueRepository returns a document store backed implementation.
// Lists skip documents that fail to decode and log them on logger.
func NewIssueRepository(store docstore.Store, logger *zap.Logger) IssueRepository {
	return &issueRepository{store: store, logger: nopIfNil(logger)}
}

// Create stores a new issue and assigns its id.
func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	id, err := r.store.Add(ctx, IssuesCollection, issueToMap(issue))
	if err != nil {
		return err
	}
	issue.ID = id
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	doc, err := r.store.Get(ctx, IssuesCollection, id)
	if err != nil {
		return nil, err
	}
	return toIssue(*doc)
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	docs, err := r.store.List(ctx, filter.query())
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, r.logger, toIssue), nil
}

func (r *issueRepository) UpdateStatus(ctx context.Context, id string, status domain.IssueStatus, updatedAt time.Time) error {
	return r.store.Update(ctx, IssuesCollection, id, []docstore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: domain.FormatTime(updatedAt)},
	})
}

// AppendComment adds comment to the end of the thread with the store's
// atomic array union.
func (r *issueRepository) AppendComment(ctx context.Context, id string, comment domain.Comment, updatedAt time.Time) error {
	return r.store.Update(ctx, IssuesCollection, id, []docstore.Update{
		{Path: "comments", Value: docstore.ArrayUnion(commentToMap(comment))},
		{Path: "updatedAt", Value: domain.FormatTime(updatedAt)},
	})
}

func (r *issueRepository) Watch(ctx context.Context, filter IssueFilter, onIssues func([]domain.Issue), onError docstore.ErrorFunc) docstore.Unsubscribe {
	return r.store.Watch(ctx, filter.query(), func(docs []docstore.Document) {
		onIssues(decodeAll(docs, r.logger, toIssue))
	}, onError)
}

func (f IssueFilter) query() docstore.Query {
	q := docstore.Collection(IssuesCollection)
	if f.UserID != "" {
		q = q.Where("userId", f.UserID)
	}
	if f.NewestFirst {
		q = q.Order("createdAt", docstore.Desc)
	}
	return q
}

func issueToMap(issue *domain.Issue) map[string]any {
	data := map[string]any{
		"userId":      issue.UserID,
		"description": issue.Description,
		"category":    issue.Category,
		"status":      string(issue.Status),
		"createdAt":   domain.FormatTime(issue.CreatedAt),
	}
	putString(data, "userEmail", issue.UserEmail)
	putString(data, "title", issue.Title)
	putString(data, "severity", issue.Severity)
	putString(data, "priority", issue.Priority)
	putString(data, "impact", issue.Impact)
	putString(data, "reproducibility", issue.Reproducibility)
	putString(data, "location", issue.Location)
	putString(data, "assetId", issue.AssetID)
	putString(data, "contactPhone", issue.ContactPhone)
	putString(data, "bestTime", issue.BestTime)
	putString(data, "stepsToReproduce", issue.StepsToReproduce)
	putString(data, "expectedResult", issue.ExpectedResult)
	if len(issue.Comments) > 0 {
		comments := make([]any, 0, len(issue.Comments))
		for _, c := range issue.Comments {
			comments = append(comments, commentToMap(c))
		}
		data["comments"] = comments
	}
	if issue.UpdatedAt != nil {
		data["updatedAt"] = domain.FormatTime(*issue.UpdatedAt)
	}
	return data
}

func commentToMap(c domain.Comment) map[string]any {
	data := map[string]any{
		"text":       c.Text,
		"role":       string(c.Role),
		"authorName": c.AuthorName,
		"createdAt":  domain.FormatTime(c.CreatedAt),
	}
	putString(data, "id", c.ID)
	return data
}

func toIssue(doc docstore.Document) (*domain.Issue, error) {
	var issue domain.Issue
	if err := decode(doc, &issue); err != nil {
		return nil, fmt.Errorf("decode issue %s: %w", doc.ID, err)
	}
	issue.ID = doc.ID
	return &issue, nil
}
