package domain

import "time"

// NotificationType distinguishes what triggered a notification.
type NotificationType string

const (
	NotificationStatusUpdate NotificationType = "status_update"
	NotificationComment      NotificationType = "comment"
)

// Notification records a push that was sent to a reporter.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Type      NotificationType `json:"type"`
	IssueID   string           `json:"issueId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
