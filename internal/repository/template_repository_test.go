package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
)

func TestTemplateFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	now := time.Now()
	anchor := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "class_type_id", "day_of_week", "start_time", "duration_minutes", "max_capacity", "period_anchor", "created_at", "updated_at"}).
		AddRow("tpl-1", "yoga", 1, "18:30", 60, 20, anchor, now, now)
	mock.ExpectQuery("SELECT .+ FROM schedule_templates WHERE id = ").
		WithArgs("tpl-1").
		WillReturnRows(rows)

	tpl, err := repo.FindByID(context.Background(), "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "yoga", tpl.ClassTypeID)
	assert.Equal(t, 1, tpl.DayOfWeek)
	assert.Equal(t, "18:30", tpl.StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectExec("INSERT INTO schedule_templates").WillReturnResult(sqlmock.NewResult(1, 1))

	tpl := &models.ScheduleTemplate{
		ClassTypeID:     "yoga",
		DayOfWeek:       1,
		StartTime:       "18:30",
		DurationMinutes: 60,
		MaxCapacity:     20,
		PeriodAnchor:    time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
	}
	err := repo.Create(context.Background(), tpl)
	require.NoError(t, err)
	assert.NotEmpty(t, tpl.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateForPeriodReportsCopies(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	current := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO schedule_templates").
		WithArgs(current, next).
		WillReturnResult(sqlmock.NewResult(0, 5))

	copied, err := repo.DuplicateForPeriod(context.Background(), current, next)
	require.NoError(t, err)
	assert.Equal(t, int64(5), copied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateForPeriodIsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	current := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO schedule_templates").
		WithArgs(current, next).
		WillReturnResult(sqlmock.NewResult(0, 0))

	copied, err := repo.DuplicateForPeriod(context.Background(), current, next)
	require.NoError(t, err)
	assert.Equal(t, int64(0), copied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateListFiltersByClassType(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	now := time.Now()
	anchor := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	listRows := sqlmock.NewRows([]string{"id", "class_type_id", "day_of_week", "start_time", "duration_minutes", "max_capacity", "period_anchor", "created_at", "updated_at"}).
		AddRow("tpl-1", "yoga", 1, "18:30", 60, 20, anchor, now, now)
	mock.ExpectQuery("SELECT .+ FROM schedule_templates WHERE 1=1 AND class_type_id = ").
		WithArgs("yoga").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_templates WHERE 1=1 AND class_type_id = $1")).
		WithArgs("yoga").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	templates, total, err := repo.List(context.Background(), models.TemplateFilter{ClassTypeID: "yoga"})
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
