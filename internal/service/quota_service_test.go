package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
)

type stubQuotaBookings struct {
	confirmed  int
	err        error
	lastPeriod time.Time
}

func (s *stubQuotaBookings) CountConfirmedForPeriod(_ context.Context, _ string, periodStart time.Time) (int, error) {
	s.lastPeriod = periodStart
	return s.confirmed, s.err
}

func newQuotaFixture(confirmed int, roles map[string]models.UserRole) (*QuotaService, *stubQuotaBookings) {
	bookings := &stubQuotaBookings{confirmed: confirmed}
	svc := NewQuotaService(bookings, &stubSubscriptions{roles: roles}, nil)
	svc.now = func() time.Time {
		return time.Date(2026, time.September, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc, bookings
}

func TestRemainingForCappedRole(t *testing.T) {
	svc, bookings := newQuotaFixture(5, map[string]models.UserRole{"member-1": models.RoleBasicaClases})

	state, err := svc.Remaining(context.Background(), "member-1")
	require.NoError(t, err)
	assert.False(t, state.Unlimited)
	require.NotNil(t, state.Limit)
	assert.Equal(t, 12, *state.Limit)
	assert.Equal(t, 5, state.Confirmed)
	require.NotNil(t, state.Remaining)
	assert.Equal(t, 7, *state.Remaining)
	assert.True(t, state.HasRemaining())
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), bookings.lastPeriod)
}

func TestRemainingClampsAtZero(t *testing.T) {
	svc, _ := newQuotaFixture(14, map[string]models.UserRole{"member-1": models.RoleBasicaClases})

	state, err := svc.Remaining(context.Background(), "member-1")
	require.NoError(t, err)
	require.NotNil(t, state.Remaining)
	assert.Equal(t, 0, *state.Remaining)
	assert.False(t, state.HasRemaining())
}

func TestRemainingForUnlimitedRole(t *testing.T) {
	svc, _ := newQuotaFixture(30, map[string]models.UserRole{"member-1": models.RoleFull})

	state, err := svc.Remaining(context.Background(), "member-1")
	require.NoError(t, err)
	assert.True(t, state.Unlimited)
	assert.Nil(t, state.Limit)
	assert.Nil(t, state.Remaining)
	assert.Equal(t, 30, state.Confirmed)
	assert.True(t, state.HasRemaining())
}

func TestRemainingForRoleWithoutClasses(t *testing.T) {
	svc, _ := newQuotaFixture(0, map[string]models.UserRole{"member-1": models.RoleBasica})

	state, err := svc.Remaining(context.Background(), "member-1")
	require.NoError(t, err)
	require.NotNil(t, state.Limit)
	assert.Equal(t, 0, *state.Limit)
	assert.False(t, state.HasRemaining())
}
