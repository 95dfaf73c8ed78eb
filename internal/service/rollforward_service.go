package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
)

type rollforwardTemplateRepository interface {
	DuplicateForPeriod(ctx context.Context, currentPeriod, nextPeriod time.Time) (int64, error)
}

type rollforwardBookingRepository interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListDueReminders(ctx context.Context, windowStart, windowEnd time.Time) ([]models.BookingDetail, error)
	MarkReminderSent(ctx context.Context, bookingID string) error
}

type renewalChecker interface {
	CheckRenewals(ctx context.Context, now time.Time) (int, error)
}

// RollforwardService runs the periodic maintenance pass: duplicate the
// current period's templates into the next one, expire stale bookings, flag
// lapsed memberships and send class reminders. Every step is idempotent, so
// re-running a tick after a partial failure is always safe.
type RollforwardService struct {
	templates rollforwardTemplateRepository
	bookings  rollforwardBookingRepository
	renewals  renewalChecker
	notifier  Notifier
	logger    *zap.Logger

	reminderLookahead time.Duration
	reminderTolerance time.Duration
	bookingRetention  time.Duration
	now               func() time.Time
}

// RollforwardConfig carries the scheduler timing knobs.
type RollforwardConfig struct {
	ReminderLookahead time.Duration
	ReminderTolerance time.Duration
	BookingRetention  time.Duration
}

// NewRollforwardService instantiates RollforwardService.
func NewRollforwardService(
	templates rollforwardTemplateRepository,
	bookings rollforwardBookingRepository,
	renewals renewalChecker,
	notifier Notifier,
	logger *zap.Logger,
	cfg RollforwardConfig,
) *RollforwardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReminderLookahead <= 0 {
		cfg.ReminderLookahead = time.Hour
	}
	if cfg.ReminderTolerance <= 0 {
		cfg.ReminderTolerance = 7 * time.Minute
	}
	if cfg.BookingRetention <= 0 {
		cfg.BookingRetention = 35 * 24 * time.Hour
	}
	return &RollforwardService{
		templates:         templates,
		bookings:          bookings,
		renewals:          renewals,
		notifier:          notifier,
		logger:            logger,
		reminderLookahead: cfg.ReminderLookahead,
		reminderTolerance: cfg.ReminderTolerance,
		bookingRetention:  cfg.BookingRetention,
		now:               time.Now,
	}
}

// Run executes all maintenance steps for one tick. A failing step is logged
// and does not stop the remaining ones.
func (s *RollforwardService) Run(ctx context.Context) {
	now := s.now()

	if _, err := s.DuplicateTemplatesForNextPeriod(ctx, now); err != nil {
		s.logger.Error("template roll-forward failed", zap.Error(err))
	}
	if _, err := s.ExpireStaleBookings(ctx, now); err != nil {
		s.logger.Error("stale booking cleanup failed", zap.Error(err))
	}
	if s.renewals != nil {
		if _, err := s.renewals.CheckRenewals(ctx, now); err != nil {
			s.logger.Error("membership renewal check failed", zap.Error(err))
		}
	}
	if _, err := s.SendUpcomingReminders(ctx, now); err != nil {
		s.logger.Error("reminder pass failed", zap.Error(err))
	}
}

// DuplicateTemplatesForNextPeriod copies the current month's templates into
// the next month. The repository skips slots that already exist there.
func (s *RollforwardService) DuplicateTemplatesForNextPeriod(ctx context.Context, now time.Time) (int64, error) {
	current := models.PeriodStart(now)
	next := models.NextPeriodStart(now)

	copied, err := s.templates.DuplicateForPeriod(ctx, current, next)
	if err != nil {
		return 0, fmt.Errorf("duplicate templates into %s: %w", next.Format("2006-01"), err)
	}
	if copied > 0 {
		s.logger.Info("templates rolled forward",
			zap.Time("period", next),
			zap.Int64("copied", copied))
	}
	return copied, nil
}

// ExpireStaleBookings purges bookings older than the retention window.
func (s *RollforwardService) ExpireStaleBookings(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.bookingRetention)
	removed, err := s.bookings.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire bookings before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if removed > 0 {
		s.logger.Info("stale bookings expired", zap.Int64("removed", removed))
	}
	return removed, nil
}

// SendUpcomingReminders notifies members whose confirmed class starts about
// one lookahead from now. The tolerance widens the window so a late tick
// still catches its classes; the reminder flag keeps repeats out.
func (s *RollforwardService) SendUpcomingReminders(ctx context.Context, now time.Time) (int, error) {
	windowStart := now.Add(s.reminderLookahead - s.reminderTolerance)
	windowEnd := now.Add(s.reminderLookahead + s.reminderTolerance)

	due, err := s.bookings.ListDueReminders(ctx, windowStart, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for _, booking := range due {
		s.notifier.Notify(ctx, booking.UserID,
			"Class starting soon",
			fmt.Sprintf("Your %s class starts at %s. See you there!", booking.ClassTypeName, booking.StartTime),
			models.SeverityInfo)
		if err := s.bookings.MarkReminderSent(ctx, booking.ID); err != nil {
			s.logger.Error("failed to mark reminder as sent",
				zap.String("booking_id", booking.ID),
				zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		s.logger.Info("class reminders sent", zap.Int("count", sent))
	}
	return sent, nil
}
