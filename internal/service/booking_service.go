package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	"github.com/gymflow/gymflow-api/internal/repository"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

const (
	classDateLayout = "2006-01-02"
	startTimeLayout = "15:04"

	freeTrainingCapacity = 1
	freeTrainingMinutes  = 60
)

type bookingLedger interface {
	Reserve(ctx context.Context, templateID string, classDate time.Time, userID string) (*models.Booking, error)
	Cancel(ctx context.Context, templateID string, classDate time.Time, userID string) (*repository.CancelOutcome, error)
	Find(ctx context.Context, templateID string, classDate time.Time, userID string) (*models.Booking, error)
	ListForUser(ctx context.Context, userID string, from time.Time) ([]models.BookingDetail, error)
}

type bookingTemplateStore interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleTemplate, error)
	Create(ctx context.Context, tpl *models.ScheduleTemplate) error
	Delete(ctx context.Context, id string) error
}

type quotaProvider interface {
	Remaining(ctx context.Context, userID string) (*models.QuotaState, error)
}

type instanceCacheInvalidator interface {
	InvalidateClassType(ctx context.Context, classTypeID string)
}

// BookingService coordinates reservations and cancellations. The application
// checks here are a fast path for UX; the repository transaction and the
// database constraints are the actual arbiters of capacity and uniqueness.
type BookingService struct {
	ledger        bookingLedger
	templates     bookingTemplateStore
	quota         quotaProvider
	subscriptions SubscriptionStatusProvider
	notifier      Notifier
	projections   instanceCacheInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger

	cancellationWindow      time.Duration
	freeTrainingClassTypeID string
	loc                     *time.Location
	now                     func() time.Time
}

// BookingServiceConfig carries booking rule settings. Location is the gym's
// timezone; class dates are parsed in it so the cancellation window and the
// strictly-future check line up with local wall clocks.
type BookingServiceConfig struct {
	CancellationWindow      time.Duration
	FreeTrainingClassTypeID string
	Location                *time.Location
}

// NewBookingService instantiates BookingService.
func NewBookingService(
	ledger bookingLedger,
	templates bookingTemplateStore,
	quota quotaProvider,
	subscriptions SubscriptionStatusProvider,
	notifier Notifier,
	projections instanceCacheInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg BookingServiceConfig,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CancellationWindow <= 0 {
		cfg.CancellationWindow = time.Hour
	}
	if cfg.FreeTrainingClassTypeID == "" {
		cfg.FreeTrainingClassTypeID = "free-training"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BookingService{
		ledger:                  ledger,
		templates:               templates,
		quota:                   quota,
		subscriptions:           subscriptions,
		notifier:                notifier,
		projections:             projections,
		metrics:                 metrics,
		validator:               validate,
		logger:                  logger,
		cancellationWindow:      cfg.CancellationWindow,
		freeTrainingClassTypeID: cfg.FreeTrainingClassTypeID,
		loc:                     cfg.Location,
		now:                     time.Now,
	}
}

// ReserveRequest describes a reservation attempt. UserID is only honoured for
// administrators booking on behalf of another member.
type ReserveRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	ClassDate  string `json:"class_date" validate:"required"`
	UserID     string `json:"user_id"`
}

// CancelRequest identifies the booking to cancel.
type CancelRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	ClassDate  string `json:"class_date" validate:"required"`
	UserID     string `json:"user_id"`
}

// FreeTrainingRequest schedules an ad-hoc single session.
type FreeTrainingRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	UserID    string `json:"user_id"`
}

// Reserve books a class instance for the target member, confirmed while
// capacity remains and waitlisted afterwards.
func (s *BookingService) Reserve(ctx context.Context, actor models.Actor, req ReserveRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}
	classDate, err := s.parseClassDate(req.ClassDate)
	if err != nil {
		return nil, err
	}
	targetID, onBehalf, err := s.resolveTarget(actor, req.UserID)
	if err != nil {
		return nil, err
	}

	tpl, err := s.loadTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if int(classDate.Weekday()) != tpl.DayOfWeek {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no class takes place on this date")
	}
	startsAt, err := tpl.StartsOn(classDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class start")
	}
	if !startsAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class instance is no longer bookable")
	}

	if err := s.guardTarget(ctx, targetID, actor, onBehalf); err != nil {
		return nil, err
	}

	booking, err := s.ledger.Reserve(ctx, tpl.ID, classDate, targetID)
	if err != nil {
		s.metrics.RecordBookingOperation("reserve", errorOutcome(err))
		return nil, mapLedgerError(err, "failed to reserve class")
	}
	s.metrics.RecordBookingOperation("reserve", string(booking.Status))
	s.projections.InvalidateClassType(ctx, tpl.ClassTypeID)

	switch booking.Status {
	case models.BookingConfirmed:
		s.notifier.Notify(ctx, targetID,
			"Booking confirmed",
			fmt.Sprintf("Your spot on %s at %s is confirmed.", classDate.Format(classDateLayout), tpl.StartTime),
			models.SeveritySuccess)
	case models.BookingWaitlist:
		position := 0
		if booking.Position != nil {
			position = *booking.Position
		}
		s.notifier.Notify(ctx, targetID,
			"Added to waitlist",
			fmt.Sprintf("The class on %s at %s is full. You are number %d on the waitlist.", classDate.Format(classDateLayout), tpl.StartTime, position),
			models.SeverityInfo)
	}

	return booking, nil
}

// Cancel removes the target member's booking. Members cannot self-cancel
// inside the cancellation window; administrators cancelling on behalf of
// someone else are exempt.
func (s *BookingService) Cancel(ctx context.Context, actor models.Actor, req CancelRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	classDate, err := s.parseClassDate(req.ClassDate)
	if err != nil {
		return err
	}
	targetID, onBehalf, err := s.resolveTarget(actor, req.UserID)
	if err != nil {
		return err
	}

	tpl, err := s.loadTemplate(ctx, req.TemplateID)
	if err != nil {
		return err
	}
	startsAt, err := tpl.StartsOn(classDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class start")
	}
	if err := s.checkCancellationWindow(startsAt, actor, onBehalf); err != nil {
		return err
	}

	outcome, err := s.ledger.Cancel(ctx, tpl.ID, classDate, targetID)
	if err != nil {
		s.metrics.RecordBookingOperation("cancel", errorOutcome(err))
		return mapLedgerError(err, "failed to cancel booking")
	}
	s.metrics.RecordBookingOperation("cancel", string(outcome.Removed.Status))
	s.projections.InvalidateClassType(ctx, tpl.ClassTypeID)

	if outcome.Promoted != nil {
		s.metrics.RecordBookingOperation("cancel", "promoted")
		s.notifier.Notify(ctx, outcome.Promoted.UserID,
			"Moved off the waitlist",
			fmt.Sprintf("A spot opened up for the class on %s at %s. Your booking is now confirmed.", classDate.Format(classDateLayout), tpl.StartTime),
			models.SeveritySuccess)
	}
	if onBehalf {
		s.notifier.Notify(ctx, targetID,
			"Booking cancelled",
			fmt.Sprintf("Your booking for %s at %s was cancelled by the gym.", classDate.Format(classDateLayout), tpl.StartTime),
			models.SeverityInfo)
	}

	return nil
}

// ReserveFreeSession books an ad-hoc single training slot. A synthetic
// capacity-1 template is created for the session and lives exactly as long
// as the booking does.
func (s *BookingService) ReserveFreeSession(ctx context.Context, actor models.Actor, req FreeTrainingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid free training payload")
	}
	date, err := s.parseClassDate(req.Date)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse(startTimeLayout, req.StartTime); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must use the HH:MM format")
	}
	targetID, onBehalf, err := s.resolveTarget(actor, req.UserID)
	if err != nil {
		return nil, err
	}

	tpl := models.ScheduleTemplate{
		ClassTypeID:     s.freeTrainingClassTypeID,
		DayOfWeek:       int(date.Weekday()),
		StartTime:       req.StartTime,
		DurationMinutes: freeTrainingMinutes,
		MaxCapacity:     freeTrainingCapacity,
		PeriodAnchor:    models.PeriodStart(date),
	}
	startsAt, err := tpl.StartsOn(date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve session start")
	}
	// Free training must be in the future even when an admin books it for
	// someone else.
	if !startsAt.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "free training sessions must be scheduled in the future")
	}

	if err := s.guardTarget(ctx, targetID, actor, onBehalf); err != nil {
		return nil, err
	}

	if err := s.templates.Create(ctx, &tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create free training slot")
	}

	booking, err := s.ledger.Reserve(ctx, tpl.ID, date, targetID)
	if err != nil {
		if delErr := s.templates.Delete(ctx, tpl.ID); delErr != nil {
			s.logger.Warn("failed to clean up synthetic template", zap.String("template_id", tpl.ID), zap.Error(delErr))
		}
		s.metrics.RecordBookingOperation("free_training", errorOutcome(err))
		return nil, mapLedgerError(err, "failed to reserve free training")
	}
	s.metrics.RecordBookingOperation("free_training", string(booking.Status))

	s.notifier.Notify(ctx, targetID,
		"Free training booked",
		fmt.Sprintf("Your free training on %s at %s is confirmed.", date.Format(classDateLayout), req.StartTime),
		models.SeveritySuccess)

	return booking, nil
}

// CancelFreeSession removes a free training booking and its synthetic
// template. The cancellation window applies exactly as for classes.
func (s *BookingService) CancelFreeSession(ctx context.Context, actor models.Actor, req CancelRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	classDate, err := s.parseClassDate(req.ClassDate)
	if err != nil {
		return err
	}
	targetID, onBehalf, err := s.resolveTarget(actor, req.UserID)
	if err != nil {
		return err
	}

	tpl, err := s.loadTemplate(ctx, req.TemplateID)
	if err != nil {
		return err
	}
	startsAt, err := tpl.StartsOn(classDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve session start")
	}
	if err := s.checkCancellationWindow(startsAt, actor, onBehalf); err != nil {
		return err
	}

	if _, err := s.ledger.Cancel(ctx, tpl.ID, classDate, targetID); err != nil {
		return mapLedgerError(err, "failed to cancel free training")
	}

	if tpl.IsSynthetic() {
		if err := s.templates.Delete(ctx, tpl.ID); err != nil {
			s.logger.Warn("failed to delete synthetic template", zap.String("template_id", tpl.ID), zap.Error(err))
		}
	}
	s.metrics.RecordBookingOperation("free_training", "cancelled")

	return nil
}

// Status returns the member's booking for an instance, so the class detail
// view can show whether they are confirmed or waitlisted and at what position.
func (s *BookingService) Status(ctx context.Context, userID, templateID, classDate string) (*models.Booking, error) {
	date, err := s.parseClassDate(classDate)
	if err != nil {
		return nil, err
	}
	booking, err := s.ledger.Find(ctx, templateID, date, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no booking for this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// ListMine returns the member's bookings from today onward.
func (s *BookingService) ListMine(ctx context.Context, userID string) ([]models.BookingDetail, error) {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	bookings, err := s.ledger.ListForUser(ctx, userID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

func (s *BookingService) resolveTarget(actor models.Actor, requestedUserID string) (string, bool, error) {
	targetID := requestedUserID
	if targetID == "" {
		targetID = actor.UserID
	}
	onBehalf := targetID != actor.UserID
	if onBehalf && !actor.IsAdmin() {
		return "", false, appErrors.Clone(appErrors.ErrForbidden, "only administrators can act on behalf of another member")
	}
	return targetID, onBehalf, nil
}

// guardTarget applies the pre-ledger checks, quota first and the blocked flag
// second. An admin booking on behalf of another member bypasses the quota but
// never the blocked flag.
func (s *BookingService) guardTarget(ctx context.Context, targetID string, actor models.Actor, onBehalf bool) error {
	if !(actor.IsAdmin() && onBehalf) {
		quota, err := s.quota.Remaining(ctx, targetID)
		if err != nil {
			return err
		}
		if !quota.HasRemaining() {
			if quota.Limit != nil {
				return appErrors.Clone(appErrors.ErrQuotaExceeded,
					fmt.Sprintf("monthly booking quota exhausted (%d of %d used)", quota.Confirmed, *quota.Limit))
			}
			return appErrors.ErrQuotaExceeded
		}
	}

	blocked, err := s.subscriptions.IsBlocked(ctx, targetID)
	if err != nil {
		return err
	}
	if blocked {
		return appErrors.ErrAccountBlocked
	}
	return nil
}

func (s *BookingService) checkCancellationWindow(startsAt time.Time, actor models.Actor, onBehalf bool) error {
	if actor.IsAdmin() && onBehalf {
		return nil
	}
	if !s.now().Before(startsAt.Add(-s.cancellationWindow)) {
		return appErrors.ErrCancellationWindowClosed
	}
	return nil
}

func (s *BookingService) loadTemplate(ctx context.Context, id string) (*models.ScheduleTemplate, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return tpl, nil
}

// parseClassDate parses a YYYY-MM-DD date in the gym's timezone so the
// derived session start compares correctly against s.now().
func (s *BookingService) parseClassDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(classDateLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "class_date must use the YYYY-MM-DD format")
	}
	return date, nil
}

func mapLedgerError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "booking unavailable")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func errorOutcome(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return appErrors.ErrInternal.Code
}
