package handlers

import (
	"net/http"
	"strings"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/identity"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

func issueResponse(issue *domain.Issue) dto.IssueResponse {
	comments := make([]dto.CommentResponse, 0, len(issue.Comments))
	for _, c := range issue.Comments {
		comments = append(comments, dto.CommentResponse{
			ID:         c.ID,
			Text:       c.Text,
			Role:       c.Role,
			AuthorName: c.AuthorName,
			CreatedAt:  c.CreatedAt,
		})
	}
	return dto.IssueResponse{
		ID:               issue.ID,
		UserID:           issue.UserID,
		UserEmail:        issue.UserEmail,
		Title:            issue.Title,
		Description:      issue.Description,
		Category:         issue.Category,
		Severity:         issue.Severity,
		Priority:         issue.Priority,
		Impact:           issue.Impact,
		Reproducibility:  issue.Reproducibility,
		Location:         issue.Location,
		AssetID:          issue.AssetID,
		ContactPhone:     issue.ContactPhone,
		BestTime:         issue.BestTime,
		StepsToReproduce: issue.StepsToReproduce,
		ExpectedResult:   issue.ExpectedResult,
		Status:           issue.Status,
		Comments:         comments,
		CreatedAt:        issue.CreatedAt,
		UpdatedAt:        issue.UpdatedAt,
	}
}

func issueResponses(issues []domain.Issue) []dto.IssueResponse {
	items := make([]dto.IssueResponse, 0, len(issues))
	for i := range issues {
		items = append(items, issueResponse(&issues[i]))
	}
	return items
}

func notificationResponses(items []domain.Notification) []dto.NotificationResponse {
	out := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, dto.NotificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			Type:      n.Type,
			IssueID:   n.IssueID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

func userResponse(user *domain.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}
	if !user.CreatedAt.IsZero() {
		created := user.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

// authFailure turns an identity provider error into a response carrying
// the provider's message.
func authFailure(err error, status int) error {
	authErr, ok := identity.AsAuthError(err)
	if !ok {
		return err
	}
	if authErr == identity.ErrEmailInUse {
		status = http.StatusConflict
	}
	code := strings.ToUpper(strings.ReplaceAll(authErr.Code, "-", "_"))
	return apperrors.NewDomainError(code, authErr.Message, status, nil)
}

func signUpFailure(err error) error {
	return authFailure(err, http.StatusBadRequest)
}

func signInFailure(err error) error {
	return authFailure(err, http.StatusUnauthorized)
}
