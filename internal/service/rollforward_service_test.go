package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
)

type stubRollforwardTemplates struct {
	copied      int64
	err         error
	lastCurrent time.Time
	lastNext    time.Time
}

func (s *stubRollforwardTemplates) DuplicateForPeriod(_ context.Context, currentPeriod, nextPeriod time.Time) (int64, error) {
	s.lastCurrent = currentPeriod
	s.lastNext = nextPeriod
	return s.copied, s.err
}

type stubRollforwardBookings struct {
	deleted    int64
	due        []models.BookingDetail
	markErr    map[string]error
	marked     []string
	lastCutoff time.Time
	lastStart  time.Time
	lastEnd    time.Time
}

func (s *stubRollforwardBookings) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.lastCutoff = cutoff
	return s.deleted, nil
}

func (s *stubRollforwardBookings) ListDueReminders(_ context.Context, windowStart, windowEnd time.Time) ([]models.BookingDetail, error) {
	s.lastStart = windowStart
	s.lastEnd = windowEnd
	return s.due, nil
}

func (s *stubRollforwardBookings) MarkReminderSent(_ context.Context, bookingID string) error {
	if err := s.markErr[bookingID]; err != nil {
		return err
	}
	s.marked = append(s.marked, bookingID)
	return nil
}

func dueBooking(id, userID string) models.BookingDetail {
	detail := models.BookingDetail{StartTime: "18:30", ClassTypeName: "Yoga"}
	detail.ID = id
	detail.UserID = userID
	return detail
}

func newRollforwardFixture() (*RollforwardService, *stubRollforwardTemplates, *stubRollforwardBookings, *stubNotifier) {
	templates := &stubRollforwardTemplates{}
	bookings := &stubRollforwardBookings{markErr: map[string]error{}}
	notifier := &stubNotifier{}
	svc := NewRollforwardService(templates, bookings, nil, notifier, nil, RollforwardConfig{
		ReminderLookahead: time.Hour,
		ReminderTolerance: 7 * time.Minute,
		BookingRetention:  35 * 24 * time.Hour,
	})
	return svc, templates, bookings, notifier
}

func TestDuplicateTemplatesTargetsNextMonth(t *testing.T) {
	svc, templates, _, _ := newRollforwardFixture()
	templates.copied = 4

	now := time.Date(2026, time.September, 20, 9, 0, 0, 0, time.UTC)
	copied, err := svc.DuplicateTemplatesForNextPeriod(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), copied)
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), templates.lastCurrent)
	assert.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), templates.lastNext)
}

func TestExpireStaleBookingsUsesRetention(t *testing.T) {
	svc, _, bookings, _ := newRollforwardFixture()
	bookings.deleted = 9

	now := time.Date(2026, time.October, 10, 3, 0, 0, 0, time.UTC)
	removed, err := svc.ExpireStaleBookings(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(9), removed)
	assert.Equal(t, now.Add(-35*24*time.Hour), bookings.lastCutoff)
}

func TestSendRemindersUsesToleranceWindow(t *testing.T) {
	svc, _, bookings, notifier := newRollforwardFixture()
	bookings.due = []models.BookingDetail{dueBooking("b-1", "member-1")}

	now := time.Date(2026, time.September, 7, 17, 30, 0, 0, time.UTC)
	sent, err := svc.SendUpcomingReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, now.Add(53*time.Minute), bookings.lastStart)
	assert.Equal(t, now.Add(67*time.Minute), bookings.lastEnd)
	assert.Equal(t, []string{"b-1"}, bookings.marked)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "member-1", notifier.events[0].userID)
	assert.Equal(t, "Class starting soon", notifier.events[0].title)
}

func TestSendRemindersContinuesPastMarkFailure(t *testing.T) {
	svc, _, bookings, notifier := newRollforwardFixture()
	bookings.due = []models.BookingDetail{
		dueBooking("b-1", "member-1"),
		dueBooking("b-2", "member-2"),
	}
	bookings.markErr["b-1"] = errors.New("connection reset")

	sent, err := svc.SendUpcomingReminders(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"b-2"}, bookings.marked)
	assert.Len(t, notifier.events, 2)
}

func TestRunSurvivesStepFailures(t *testing.T) {
	svc, templates, bookings, _ := newRollforwardFixture()
	templates.err = errors.New("deadlock detected")

	svc.Run(context.Background())
	// Later steps still execute after the roll-forward failure.
	assert.False(t, bookings.lastCutoff.IsZero())
	assert.False(t, bookings.lastStart.IsZero())
}
