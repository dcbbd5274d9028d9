package pipeline

import (
	"context"
	"log/slog"

	"papercast/internal/jobs"
	"papercast/internal/logging"
	"papercast/internal/notifications"
	"papercast/internal/textutil"
)

// NotificationHook forwards terminal jobs to the notification service.
type NotificationHook struct {
	notifier notifications.Service
	logger   *slog.Logger
}

// NewNotificationHook wraps notifier.
func NewNotificationHook(notifier notifications.Service, logger *slog.Logger) *NotificationHook {
	return &NotificationHook{notifier: notifier, logger: logging.NewComponentLogger(logger, "notifications")}
}

// JobFinished sends a completion or failure alert. Delivery errors are logged only.
func (h *NotificationHook) JobFinished(ctx context.Context, job jobs.Job) {
	if h == nil || h.notifier == nil {
		return
	}
	var err error
	switch job.Status {
	case jobs.StatusCompleted:
		err = h.notifier.NotifyPodcastCompleted(ctx, textutil.TitleFromFilename(job.OriginalFilename), job.ID, job.Fallback)
	case jobs.StatusFailed:
		err = h.notifier.NotifyPodcastFailed(ctx, job.OriginalFilename, job.ID, job.Message)
	default:
		return
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, h.logger), "notification delivery failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push alert for this job"),
		)
	}
}
