package events

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue_created"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventIssueCommentAdded  EventType = "issue_comment_added"
)

// Actor identifies who caused an event. Empty when unknown.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services after a write commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	NewStatus domain.IssueStatus `json:"new_status"`
}

// IssueCommentAddedPayload payload.
type IssueCommentAddedPayload struct {
	Text       string      `json:"text"`
	Role       domain.Role `json:"role"`
	AuthorName string      `json:"author_name"`
}
