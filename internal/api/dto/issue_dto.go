package dto

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// CreateIssueRequest payload. Only description and category are required.
type CreateIssueRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Severity         string `json:"severity"`
	Priority         string `json:"priority"`
	Impact           string `json:"impact"`
	Reproducibility  string `json:"reproducibility"`
	Location         string `json:"location"`
	AssetID          string `json:"assetId"`
	ContactPhone     string `json:"contactPhone"`
	BestTime         string `json:"bestTime"`
	StepsToReproduce string `json:"stepsToReproduce"`
	ExpectedResult   string `json:"expectedResult"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.IssueStatus `json:"status"`
}

// CommentResponse is one entry of an issue thread.
type CommentResponse struct {
	ID         string      `json:"id,omitempty"`
	Text       string      `json:"text"`
	Role       domain.Role `json:"role"`
	AuthorName string      `json:"authorName"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// IssueResponse mirrors the stored issue document.
type IssueResponse struct {
	ID               string             `json:"id"`
	UserID           string             `json:"userId"`
	UserEmail        string             `json:"userEmail,omitempty"`
	Title            string             `json:"title,omitempty"`
	Description      string             `json:"description"`
	Category         string             `json:"category"`
	Severity         string             `json:"severity,omitempty"`
	Priority         string             `json:"priority,omitempty"`
	Impact           string             `json:"impact,omitempty"`
	Reproducibility  string             `json:"reproducibility,omitempty"`
	Location         string             `json:"location,omitempty"`
	AssetID          string             `json:"assetId,omitempty"`
	ContactPhone     string             `json:"contactPhone,omitempty"`
	BestTime         string             `json:"bestTime,omitempty"`
	StepsToReproduce string             `json:"stepsToReproduce,omitempty"`
	ExpectedResult   string             `json:"expectedResult,omitempty"`
	Status           domain.IssueStatus `json:"status"`
	Comments         []CommentResponse  `json:"comments"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        *time.Time         `json:"updatedAt,omitempty"`
}

// NotificationResponse is one entry of the notification feed.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Type      domain.NotificationType `json:"type"`
	IssueID   string                  `json:"issueId"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"createdAt"`
}
