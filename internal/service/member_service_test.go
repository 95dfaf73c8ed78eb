package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

type stubMemberRepo struct {
	users       map[string]*models.User
	listed      []models.User
	listTotal   int
	blockedArgs map[string]bool
}

func (s *stubMemberRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	return s.listed, s.listTotal, nil
}

func (s *stubMemberRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubMemberRepo) SetBlocked(_ context.Context, id string, blocked bool) error {
	if s.blockedArgs == nil {
		s.blockedArgs = map[string]bool{}
	}
	s.blockedArgs[id] = blocked
	return nil
}

type stubStatusInvalidator struct {
	invalidated []string
}

func (s *stubStatusInvalidator) InvalidateStatus(_ context.Context, userID string) {
	s.invalidated = append(s.invalidated, userID)
}

func TestMemberListClampsPagination(t *testing.T) {
	repo := &stubMemberRepo{listed: []models.User{{ID: "u-1"}}, listTotal: 41}
	svc := NewMemberService(repo, nil, nil, nil)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 0})

	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 41, pagination.TotalCount)
}

func TestBlockMemberInvalidatesStatusAndNotifies(t *testing.T) {
	repo := &stubMemberRepo{users: map[string]*models.User{"u-1": {ID: "u-1", Role: models.RoleFull}}}
	statuses := &stubStatusInvalidator{}
	notifier := &stubNotifier{}
	svc := NewMemberService(repo, statuses, notifier, nil)

	err := svc.SetBlocked(context.Background(), "u-1", true)

	require.NoError(t, err)
	assert.True(t, repo.blockedArgs["u-1"])
	assert.Equal(t, []string{"u-1"}, statuses.invalidated)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "Account blocked", notifier.events[0].title)
}

func TestUnblockMemberSkipsNotification(t *testing.T) {
	repo := &stubMemberRepo{users: map[string]*models.User{"u-1": {ID: "u-1"}}}
	statuses := &stubStatusInvalidator{}
	notifier := &stubNotifier{}
	svc := NewMemberService(repo, statuses, notifier, nil)

	err := svc.SetBlocked(context.Background(), "u-1", false)

	require.NoError(t, err)
	assert.False(t, repo.blockedArgs["u-1"])
	assert.Equal(t, []string{"u-1"}, statuses.invalidated)
	assert.Empty(t, notifier.events)
}

func TestBlockUnknownMemberReturnsNotFound(t *testing.T) {
	repo := &stubMemberRepo{users: map[string]*models.User{}}
	svc := NewMemberService(repo, nil, nil, nil)

	err := svc.SetBlocked(context.Background(), "ghost", true)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.blockedArgs)
}
