package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var classDate = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

func expectTemplateLock(mock sqlmock.Sqlmock, capacity int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT max_capacity FROM schedule_templates WHERE id = $1 FOR UPDATE")).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_capacity"}).AddRow(capacity))
}

func TestReserveConfirmedWhileCapacityRemains(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectTemplateLock(mock, 10)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3")).
		WithArgs("tpl-1", classDate, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'confirmed'")).
		WithArgs("tpl-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("SAVEPOINT confirm_insert").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), "tpl-1", classDate, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Nil(t, booking.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveWaitlistsWhenFull(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectTemplateLock(mock, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3")).
		WithArgs("tpl-1", classDate, "user-3").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'confirmed'")).
		WithArgs("tpl-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), 0) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'waitlist'")).
		WithArgs("tpl-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), "tpl-1", classDate, "user-3")
	require.NoError(t, err)
	assert.Equal(t, models.BookingWaitlist, booking.Status)
	require.NotNil(t, booking.Position)
	assert.Equal(t, 2, *booking.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRejectsDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectTemplateLock(mock, 10)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3")).
		WithArgs("tpl-1", classDate, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "tpl-1", classDate, "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateBooking))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveDowngradesToWaitlistOnCapacityRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectTemplateLock(mock, 10)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3")).
		WithArgs("tpl-1", classDate, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'confirmed'")).
		WithArgs("tpl-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	mock.ExpectExec("SAVEPOINT confirm_insert").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23514", Message: "BOOKING_CAPACITY_EXCEEDED"})
	mock.ExpectExec("ROLLBACK TO SAVEPOINT confirm_insert").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), 0) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'waitlist'")).
		WithArgs("tpl-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), "tpl-1", classDate, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingWaitlist, booking.Status)
	require.NotNil(t, booking.Position)
	assert.Equal(t, 1, *booking.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRejectsOverQuotaMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	expectTemplateLock(mock, 10)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3")).
		WithArgs("tpl-1", classDate, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'confirmed'")).
		WithArgs("tpl-1", classDate).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("SAVEPOINT confirm_insert").WillReturnResult(sqlmock.NewResult(0, 0))
	// The quota trigger fires when a racing reserve on another instance
	// already consumed the member's last remaining slot for the period.
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: "23514", Message: "BOOKING_QUOTA_EXCEEDED"})
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), "tpl-1", classDate, "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrQuotaExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelConfirmedPromotesWaitlistHead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	expectTemplateLock(mock, 2)
	removedRows := sqlmock.NewRows([]string{"id", "template_id", "user_id", "class_date", "status", "position", "reminder_sent", "created_at"}).
		AddRow("b-1", "tpl-1", "user-1", classDate, "confirmed", nil, false, now)
	mock.ExpectQuery("DELETE FROM bookings").
		WithArgs("tpl-1", classDate, "user-1").
		WillReturnRows(removedRows)

	headRows := sqlmock.NewRows([]string{"id", "template_id", "user_id", "class_date", "status", "position", "reminder_sent", "created_at"}).
		AddRow("b-3", "tpl-1", "user-3", classDate, "waitlist", 1, false, now)
	mock.ExpectQuery("FROM bookings").
		WithArgs("tpl-1", classDate).
		WillReturnRows(headRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = 'confirmed', position = NULL WHERE id = $1")).
		WithArgs("b-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET position = position - 1")).
		WithArgs("tpl-1", classDate, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.Cancel(context.Background(), "tpl-1", classDate, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", outcome.Removed.ID)
	require.NotNil(t, outcome.Promoted)
	assert.Equal(t, "user-3", outcome.Promoted.UserID)
	assert.Equal(t, models.BookingConfirmed, outcome.Promoted.Status)
	assert.Nil(t, outcome.Promoted.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelWaitlistClosesGap(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	expectTemplateLock(mock, 2)
	removedRows := sqlmock.NewRows([]string{"id", "template_id", "user_id", "class_date", "status", "position", "reminder_sent", "created_at"}).
		AddRow("b-4", "tpl-1", "user-4", classDate, "waitlist", 2, false, now)
	mock.ExpectQuery("DELETE FROM bookings").
		WithArgs("tpl-1", classDate, "user-4").
		WillReturnRows(removedRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET position = position - 1")).
		WithArgs("tpl-1", classDate, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	outcome, err := repo.Cancel(context.Background(), "tpl-1", classDate, "user-4")
	require.NoError(t, err)
	assert.Nil(t, outcome.Promoted)
	require.NotNil(t, outcome.Removed.Position)
	assert.Equal(t, 2, *outcome.Removed.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountConfirmedForPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	period := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", period).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountConfirmedForPeriod(context.Background(), "user-1", period)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
