package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func TestIssueRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewIssueRepository(docstore.NewMemoryStore(), nil)

	issue := &domain.Issue{
		UserID:      "u1",
		UserEmail:   "e@x.com",
		Description: "printer on fire",
		Category:    domain.CategoryIT,
		Location:    "3F",
		Status:      domain.IssueStatusOpen,
		CreatedAt:   t0,
	}
	if err := repo.Create(ctx, issue); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if issue.ID == "" {
		t.Fatal("expected id to be assigned")
	}

	got, err := repo.GetByID(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Description != issue.Description || got.Category != domain.CategoryIT || got.Location != "3F" {
		t.Errorf("got %+v", got)
	}
	if got.Severity != "" {
		t.Errorf("severity = %q, want absent", got.Severity)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("createdAt = %s, want %s", got.CreatedAt, t0)
	}
	if got.UpdatedAt != nil {
		t.Errorf("updatedAt = %v, want nil", got.UpdatedAt)
	}
}

func TestIssueRepository_CommentsAndStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewIssueRepository(docstore.NewMemoryStore(), nil)
	issue := &domain.Issue{UserID: "u1", Description: "d", Category: domain.CategorySafety, Status: domain.IssueStatusOpen, CreatedAt: t0}
	if err := repo.Create(ctx, issue); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i, text := range []string{"first", "second"} {
		c := domain.Comment{Text: text, Role: domain.RoleManager, AuthorName: "M", CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := repo.AppendComment(ctx, issue.ID, c, c.CreatedAt); err != nil {
			t.Fatalf("AppendComment: %v", err)
		}
	}
	if err := repo.UpdateStatus(ctx, issue.ID, domain.IssueStatusResolved, t0.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, _ := repo.GetByID(ctx, issue.ID)
	if got.Status != domain.IssueStatusResolved {
		t.Errorf("status = %s", got.Status)
	}
	if len(got.Comments) != 2 || got.Comments[0].Text != "first" || got.Comments[1].Text != "second" {
		t.Fatalf("comments = %+v", got.Comments)
	}
	if got.Comments[0].Role != domain.RoleManager || !got.Comments[1].CreatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("comment fields = %+v", got.Comments[1])
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("updatedAt = %v", got.UpdatedAt)
	}

	if err := repo.UpdateStatus(ctx, "missing", domain.IssueStatusOpen, t0); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(docstore.NewMemoryStore(), nil)

	if _, err := repo.GetByID(ctx, "u1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := repo.Upsert(ctx, "u1", domain.UserInput{Email: "m@x.com", FullName: "M", Role: domain.RoleManager}, t0); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.UpdatePushToken(ctx, "u1", "ExponentPushToken[abc]"); err != nil {
		t.Fatalf("UpdatePushToken: %v", err)
	}

	user, err := repo.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.Role != domain.RoleManager || user.PushToken != "ExponentPushToken[abc]" || user.Email != "m@x.com" {
		t.Errorf("user = %+v", user)
	}
	if !user.CreatedAt.Equal(t0) {
		t.Errorf("createdAt = %s", user.CreatedAt)
	}
}

func TestUserRepository_RoleNormalised(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	_ = store.Set(ctx, UsersCollection, "u1", map[string]any{"role": "ADMIN"}, false)
	_ = store.Set(ctx, UsersCollection, "u2", map[string]any{"email": "x@x.com"}, false)

	repo := NewUserRepository(store, nil)
	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	roles := map[string]domain.Role{}
	for _, u := range users {
		roles[u.ID] = u.Role
	}
	if roles["u1"] != domain.RoleAdmin || roles["u2"] != domain.RoleEmployee {
		t.Errorf("roles = %v", roles)
	}
}

func TestNotificationRepository_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(docstore.NewMemoryStore(), nil)
	for i := 0; i < 3; i++ {
		n := &domain.Notification{UserID: "u1", Title: "t", Type: domain.NotificationComment, CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = repo.Create(ctx, &domain.Notification{UserID: "u2", CreatedAt: t0})

	items, err := repo.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if !items[0].CreatedAt.After(items[2].CreatedAt) {
		t.Errorf("not newest first: %v then %v", items[0].CreatedAt, items[2].CreatedAt)
	}
}

func TestNotificationRepository_SkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	core, logs := observer.New(zap.WarnLevel)
	repo := NewNotificationRepository(store, zap.New(core))

	if err := repo.Create(ctx, &domain.Notification{UserID: "u1", Title: "ok", CreatedAt: t0}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = store.Set(ctx, NotificationsCollection, "broken", map[string]any{"userId": "u1", "createdAt": "last tuesday"}, false)

	items, err := repo.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(items) != 1 || items[0].Title != "ok" {
		t.Fatalf("items = %+v", items)
	}
	if logs.FilterMessage("skipping undecodable document").FilterField(zap.String("id", "broken")).Len() != 1 {
		t.Error("expected skip to be logged")
	}
}
