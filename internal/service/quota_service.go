package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type quotaBookingRepository interface {
	CountConfirmedForPeriod(ctx context.Context, userID string, periodStart time.Time) (int, error)
}

// QuotaService computes a member's remaining monthly booking allowance. Role
// entitlements are resolved in exactly one place (models.EntitlementForRole)
// so display and enforcement can never disagree.
type QuotaService struct {
	bookings      quotaBookingRepository
	subscriptions SubscriptionStatusProvider
	logger        *zap.Logger
	now           func() time.Time
}

// NewQuotaService instantiates QuotaService.
func NewQuotaService(bookings quotaBookingRepository, subscriptions SubscriptionStatusProvider, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{bookings: bookings, subscriptions: subscriptions, logger: logger, now: time.Now}
}

// Remaining returns the member's quota state for the current calendar month.
func (s *QuotaService) Remaining(ctx context.Context, userID string) (*models.QuotaState, error) {
	role, err := s.subscriptions.RoleOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	periodStart := models.PeriodStart(s.now())
	state := &models.QuotaState{UserID: userID, PeriodStart: periodStart}

	entitlement := models.EntitlementForRole(role)
	if entitlement.Unlimited {
		state.Unlimited = true
		confirmed, err := s.bookings.CountConfirmedForPeriod(ctx, userID, periodStart)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
		}
		state.Confirmed = confirmed
		return state, nil
	}

	limit := entitlement.Cap
	state.Limit = &limit

	confirmed, err := s.bookings.CountConfirmedForPeriod(ctx, userID, periodStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}
	state.Confirmed = confirmed

	remaining := limit - confirmed
	if remaining < 0 {
		remaining = 0
	}
	state.Remaining = &remaining
	return state, nil
}
