package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/service"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// Author names used when the caller has no display name.
const (
	staffAuthorName    = "Manager"
	employeeAuthorName = "Employee"
)

// IssuesHandler manages issue endpoints. Employees only ever see their own
// issues; managers and admins see every issue.
type IssuesHandler struct {
	issues  *service.IssueService
	metrics *observability.Metrics
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issues *service.IssueService, metrics *observability.Metrics) *IssuesHandler {
	return &IssuesHandler{issues: issues, metrics: metrics}
}

// CreateIssue POST /issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Description) == "" || req.Category == "" {
		return apperrors.NewValidationError("description and category required", nil)
	}
	if !domain.ValidCategory(req.Category) {
		return apperrors.NewValidationError("unknown category", map[string]any{"allowed": domain.Categories})
	}

	issue, err := h.issues.AddIssue(c.UserContext(), domain.IssueInput{
		UserID:           principal.UID(),
		UserEmail:        principal.Identity.Email,
		Title:            strings.TrimSpace(req.Title),
		Description:      strings.TrimSpace(req.Description),
		Category:         req.Category,
		Severity:         req.Severity,
		Priority:         req.Priority,
		Impact:           req.Impact,
		Reproducibility:  req.Reproducibility,
		Location:         req.Location,
		AssetID:          req.AssetID,
		ContactPhone:     req.ContactPhone,
		BestTime:         req.BestTime,
		StepsToReproduce: req.StepsToReproduce,
		ExpectedResult:   req.ExpectedResult,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(issue)})
}

// ListIssues GET /issues?category=&search=.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issues, err := h.issues.GetIssues(c.UserContext(), scopeFor(principal))
	if err != nil {
		return err
	}
	issues = service.FilterIssues(newestFirst(issues), c.Query("category"), c.Query("search"))
	return c.JSON(fiber.Map{"data": issueResponses(issues)})
}

// StreamIssues GET /issues/stream. Every "issues" event carries the full
// list.
func (h *IssuesHandler) StreamIssues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	scope := scopeFor(principal)
	category, search := c.Query("category"), c.Query("search")

	source := func(ctx context.Context, emit func([]dto.IssueResponse)) func() {
		unsubscribe := h.issues.SubscribeToIssues(ctx, scope, func(issues []domain.Issue) {
			emit(issueResponses(service.FilterIssues(newestFirst(issues), category, search)))
		})
		return unsubscribe
	}
	return streamSnapshots(c, h.metrics, "issues", source, nil)
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issue, err := h.visibleIssue(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// AddComment POST /issues/:id/comments. Staff comments are recorded with
// the manager role.
func (h *IssuesHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return apperrors.NewValidationError("text required", nil)
	}

	ctx := c.UserContext()
	issueID := c.Params("id")
	if _, err := h.visibleIssue(ctx, principal, issueID); err != nil {
		return err
	}

	role, author := domain.RoleEmployee, principal.Identity.DisplayName
	if principal.Role.IsStaff() {
		role, author = domain.RoleManager, staffAuthorName
	} else if author == "" {
		author = employeeAuthorName
	}
	if err := h.issues.AddComment(ctx, issueID, text, role, author); err != nil {
		return err
	}

	issue, err := h.issues.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(issue)})
}

// UpdateStatus PATCH /issues/:id/status. Staff only.
func (h *IssuesHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ctx := c.UserContext()
	issueID := c.Params("id")
	actor := events.Actor{UserID: principal.UID(), Role: principal.Role}
	if err := h.issues.UpdateIssueStatus(ctx, actor, issueID, req.Status); err != nil {
		return err
	}
	issue, err := h.issues.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// visibleIssue loads an issue the principal may read. Another user's
// issue is reported as missing to employees.
func (h *IssuesHandler) visibleIssue(ctx context.Context, principal *auth.Principal, id string) (*domain.Issue, error) {
	issue, err := h.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.Role.IsStaff() && issue.UserID != principal.UID() {
		return nil, apperrors.NewNotFound("issue", map[string]any{"id": id})
	}
	return issue, nil
}

// scopeFor is the user filter for the principal; empty means every issue.
func scopeFor(principal *auth.Principal) string {
	if principal.Role.IsStaff() {
		return ""
	}
	return principal.UID()
}

// newestFirst sorts in place. The per-user query has no order of its own.
func newestFirst(issues []domain.Issue) []domain.Issue {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].CreatedAt.After(issues[j].CreatedAt)
	})
	return issues
}
