package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/push"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/service"
)

type countingRelay struct {
	mu   sync.Mutex
	sent int
}

func (r *countingRelay) Send(context.Context, push.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
	return nil
}

func (r *countingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

func TestStartNotificationWorker_DeliversQueuedEvents(t *testing.T) {
	store := docstore.NewMemoryStore()
	issueRepo := repository.NewIssueRepository(store, nil)
	userRepo := repository.NewUserRepository(store, nil)
	dispatcher := events.NewQueuedDispatcher(16, zap.NewNop())
	relay := &countingRelay{}

	issues := service.NewIssueService(service.IssueDependencies{IssueRepo: issueRepo, Dispatcher: dispatcher})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		IssueRepo:        issueRepo,
		UserRepo:         userRepo,
		NotificationRepo: repository.NewNotificationRepository(store, nil),
		Relay:            relay,
	})

	ctx, cancel := context.WithCancel(context.Background())
	wait := StartNotificationWorker(ctx, notifications, dispatcher, 2)

	bg := context.Background()
	if err := userRepo.UpdatePushToken(bg, "u1", "ExponentPushToken[1]"); err != nil {
		t.Fatalf("UpdatePushToken: %v", err)
	}
	issue, err := issues.AddIssue(bg, domain.IssueInput{UserID: "u1", Description: "d", Category: domain.CategoryIT})
	if err != nil {
		t.Fatalf("AddIssue: %v", err)
	}
	if err := issues.UpdateIssueStatus(bg, events.Actor{}, issue.ID, domain.IssueStatusResolved); err != nil {
		t.Fatalf("UpdateIssueStatus: %v", err)
	}

	cancel()
	wait()
	if relay.count() != 1 {
		t.Errorf("sent = %d, want 1", relay.count())
	}
}

func TestStartNotificationWorker_SynchronousDispatcher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifications := service.NewNotificationService(service.NotificationDependencies{Dispatcher: dispatcher})
	wait := StartNotificationWorker(context.Background(), notifications, dispatcher, 4)
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait should return immediately for a synchronous dispatcher")
	}
}
