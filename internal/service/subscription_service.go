package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

// SubscriptionStatusProvider exposes the membership facts the booking ledger
// depends on. Payments and renewals live outside this service; they interact
// with the core only through the blocked flag surfaced here.
type SubscriptionStatusProvider interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
	RoleOf(ctx context.Context, userID string) (models.UserRole, error)
}

type subscriptionUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
	ListExpiredSubscriptions(ctx context.Context, asOf time.Time) ([]models.User, error)
}

// SubscriptionService implements SubscriptionStatusProvider over the user
// store with a short-lived cache, and owns the renewal check.
type SubscriptionService struct {
	repo      subscriptionUserRepository
	cache     *CacheService
	notifier  Notifier
	statusTTL time.Duration
	logger    *zap.Logger
}

type subscriptionStatus struct {
	Role    models.UserRole `json:"role"`
	Blocked bool            `json:"blocked"`
}

// NewSubscriptionService constructs the service.
func NewSubscriptionService(repo subscriptionUserRepository, cache *CacheService, notifier Notifier, statusTTL time.Duration, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if statusTTL <= 0 {
		statusTTL = 30 * time.Second
	}
	return &SubscriptionService{repo: repo, cache: cache, notifier: notifier, statusTTL: statusTTL, logger: logger}
}

// IsBlocked reports whether the member's account is blocked.
func (s *SubscriptionService) IsBlocked(ctx context.Context, userID string) (bool, error) {
	status, err := s.status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.Blocked, nil
}

// RoleOf returns the member's role.
func (s *SubscriptionService) RoleOf(ctx context.Context, userID string) (models.UserRole, error) {
	status, err := s.status(ctx, userID)
	if err != nil {
		return "", err
	}
	return status.Role, nil
}

// CheckRenewals blocks members whose subscription has lapsed and notifies
// them. Individual failures are logged and skipped so a single bad row never
// stops the sweep.
func (s *SubscriptionService) CheckRenewals(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredSubscriptions(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired subscriptions")
	}

	blocked := 0
	for _, user := range expired {
		if err := s.repo.SetBlocked(ctx, user.ID, true); err != nil {
			s.logger.Warn("failed to block expired member", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		blocked++
		s.invalidate(ctx, user.ID)
		if s.notifier != nil {
			s.notifier.Notify(ctx, user.ID,
				"Membership expired",
				"Your membership has expired. Renew it to keep booking classes.",
				models.SeverityWarning)
		}
	}
	return blocked, nil
}

func (s *SubscriptionService) status(ctx context.Context, userID string) (*subscriptionStatus, error) {
	key := statusCacheKey(userID)
	var cached subscriptionStatus
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}

	status := subscriptionStatus{Role: user.Role, Blocked: user.Blocked}
	_ = s.cache.Set(ctx, key, status, s.statusTTL)
	return &status, nil
}

// InvalidateStatus drops the cached status so the next check reads the user
// row. Called whenever the blocked flag changes outside this service.
func (s *SubscriptionService) InvalidateStatus(ctx context.Context, userID string) {
	s.invalidate(ctx, userID)
}

func (s *SubscriptionService) invalidate(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, statusCacheKey(userID))
}

func statusCacheKey(userID string) string {
	return fmt.Sprintf("subscription:status:%s", userID)
}
