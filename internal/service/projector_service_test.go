package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
)

func mondayTemplate() models.ScheduleTemplate {
	return models.ScheduleTemplate{
		ID:              "tpl-1",
		ClassTypeID:     "yoga",
		DayOfWeek:       1,
		StartTime:       "18:30",
		DurationMinutes: 60,
		MaxCapacity:     20,
	}
}

func TestProjectYieldsOneInstancePerWeek(t *testing.T) {
	// Wednesday; the next Monday is September 7th.
	now := time.Date(2026, time.September, 2, 12, 0, 0, 0, time.UTC)

	instances, err := Project(mondayTemplate(), now, 8, now)
	require.NoError(t, err)
	require.Len(t, instances, 8)

	first := instances[0]
	assert.Equal(t, time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, time.Date(2026, time.September, 7, 18, 30, 0, 0, time.UTC), first.StartsAt)
	assert.Equal(t, time.Date(2026, time.September, 7, 19, 30, 0, 0, time.UTC), first.EndsAt)
	assert.Equal(t, 20, first.Capacity)

	for i := 1; i < len(instances); i++ {
		assert.Equal(t, instances[i-1].Date.AddDate(0, 0, 7), instances[i].Date)
		assert.Equal(t, time.Monday, instances[i].Date.Weekday())
	}
}

func TestProjectSkipsTodaysClassOnceStarted(t *testing.T) {
	// Monday after the 18:30 class began.
	now := time.Date(2026, time.September, 7, 19, 0, 0, 0, time.UTC)

	instances, err := Project(mondayTemplate(), now, 8, now)
	require.NoError(t, err)
	require.Len(t, instances, 7)
	assert.Equal(t, time.Date(2026, time.September, 14, 0, 0, 0, 0, time.UTC), instances[0].Date)
}

func TestProjectKeepsTodaysClassBeforeStart(t *testing.T) {
	now := time.Date(2026, time.September, 7, 10, 0, 0, 0, time.UTC)

	instances, err := Project(mondayTemplate(), now, 8, now)
	require.NoError(t, err)
	require.Len(t, instances, 8)
	assert.Equal(t, time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC), instances[0].Date)
}

func TestProjectStartsOnHorizonWeekday(t *testing.T) {
	tpl := mondayTemplate()
	tpl.DayOfWeek = 0 // Sunday

	// Horizon starts on a Sunday.
	now := time.Date(2026, time.September, 6, 8, 0, 0, 0, time.UTC)
	instances, err := Project(tpl, now, 4, now)
	require.NoError(t, err)
	require.Len(t, instances, 4)
	assert.Equal(t, time.Date(2026, time.September, 6, 0, 0, 0, 0, time.UTC), instances[0].Date)
}

func TestProjectRejectsInvalidDayOfWeek(t *testing.T) {
	tpl := mondayTemplate()
	tpl.DayOfWeek = 7

	_, err := Project(tpl, time.Now(), 8, time.Now())
	assert.Error(t, err)
}

func TestProjectIsDeterministic(t *testing.T) {
	now := time.Date(2026, time.September, 2, 12, 0, 0, 0, time.UTC)

	a, err := Project(mondayTemplate(), now, 8, now)
	require.NoError(t, err)
	b, err := Project(mondayTemplate(), now, 8, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
