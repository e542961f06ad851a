package worker

import (
	"context"

	"github.com/spec-kit/issue-service/internal/events"
	"github.com/spec-kit/issue-service/internal/service"
)

// NotificationRunner delivers queued events on background goroutines.
type NotificationRunner interface {
	Run(ctx context.Context, n int)
	Wait()
}

// StartNotificationWorker registers notification handlers and, when the
// dispatcher is queued, starts its workers. The returned func blocks until
// the workers have drained after ctx ends.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, dispatcher events.Dispatcher, workers int) func() {
	if notificationService == nil {
		return func() {}
	}
	notificationService.RegisterHandlers()

	runner, ok := dispatcher.(NotificationRunner)
	if !ok {
		return func() {}
	}
	runner.Run(ctx, workers)
	return runner.Wait
}
