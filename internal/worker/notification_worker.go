package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/oms-chat/internal/service"
)

// Runner is a blocking receive loop, such as the Redis chat fan-out.
type Runner interface {
	Run(ctx context.Context) error
}

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// RunWithRestart keeps r running until ctx is cancelled, restarting it with
// exponential backoff when it returns early.
func RunWithRestart(ctx context.Context, name string, r Runner, logger *zap.Logger) {
	backoff := initialBackoff
	for {
		started := time.Now()
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > maxBackoff {
			backoff = initialBackoff
		}
		logger.Warn("worker stopped, restarting",
			zap.String("worker", name),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
