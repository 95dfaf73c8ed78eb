package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	"github.com/gymflow/gymflow-api/pkg/jobs"
)

// Notifier announces booking events to a member. Implementations are
// fire-and-forget: a failed notification must never fail the ledger
// operation that produced it.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, severity models.NotificationSeverity)
}

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	MarkDispatched(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// NotificationService persists notifications and hands them to an async
// dispatch queue. The delivery transport itself (push, mail) is an external
// collaborator; dispatch here ends at a logged hand-off.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its dispatch queue. The
// queue backlog is exported through metrics so a stalled dispatcher is
// visible before members notice missing confirmations.
func NewNotificationService(repo notificationRepository, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.dispatch, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
		OnDepth: func(depth int) {
			metrics.SetQueueDepth("notifications", depth)
		},
	})
	return svc
}

// Start begins async dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch queue.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify stores the notification and enqueues its dispatch. Errors are
// logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message string, severity models.NotificationSeverity) {
	notification := &models.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Severity: severity,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to persist notification",
			zap.String("user_id", userID),
			zap.String("title", title),
			zap.Error(err))
		return
	}

	job := jobs.Job{ID: notification.ID, Type: "notification.dispatch", Payload: notification.ID}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification dispatch",
			zap.String("notification_id", notification.ID),
			zap.Error(err))
	}
}

// ListForUser returns a member's recent notifications.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	return s.repo.ListForUser(ctx, userID, limit)
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		s.logger.Warn("notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	// Hand-off point for the external delivery transport.
	s.logger.Info("notification dispatched", zap.String("notification_id", id))
	return s.repo.MarkDispatched(ctx, id)
}
