package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type memberRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

type statusInvalidator interface {
	InvalidateStatus(ctx context.Context, userID string)
}

// MemberService exposes the administrative view over members: listing,
// lookup, and the manual block/unblock toggle. Automatic blocking on lapsed
// subscriptions lives in SubscriptionService; both paths write the same flag.
type MemberService struct {
	repo     memberRepository
	statuses statusInvalidator
	notifier Notifier
	logger   *zap.Logger
}

// NewMemberService instantiates MemberService.
func NewMemberService(repo memberRepository, statuses statusInvalidator, notifier Notifier, logger *zap.Logger) *MemberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberService{repo: repo, statuses: statuses, notifier: notifier, logger: logger}
}

// List returns paginated members with pagination metadata.
func (s *MemberService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return users, pagination, nil
}

// Get returns a member by ID.
func (s *MemberService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return user, nil
}

// SetBlocked flips the blocked flag and drops the cached subscription status
// so the change takes effect on the next booking attempt.
func (s *MemberService) SetBlocked(ctx context.Context, id string, blocked bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetBlocked(ctx, id, blocked); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member")
	}
	if s.statuses != nil {
		s.statuses.InvalidateStatus(ctx, id)
	}
	if s.notifier != nil && blocked {
		s.notifier.Notify(ctx, id, "Account blocked",
			"Your account has been blocked. Contact the front desk to resolve it.",
			models.SeverityWarning)
	}
	s.logger.Info("member blocked flag updated", zap.String("user_id", id), zap.Bool("blocked", blocked))
	return nil
}
