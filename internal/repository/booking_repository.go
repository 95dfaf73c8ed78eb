package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gymflow/gymflow-api/internal/models"
	appErrors "github.com/gymflow/gymflow-api/pkg/errors"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
	pqRaiseException  = "P0001"
)

// BookingRepository owns the reservation ledger. All writes for a given
// (template, class date) instance run inside a transaction that locks the
// template row, so concurrent reserve/cancel calls are serialized by Postgres
// rather than by application code.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CancelOutcome reports what a cancellation removed and which waitlist entry,
// if any, was promoted to confirmed in its place.
type CancelOutcome struct {
	Removed  models.Booking
	Promoted *models.Booking
}

// Reserve inserts a booking for the instance, confirmed while capacity
// remains and waitlisted afterwards. Returns ErrDuplicateBooking when the
// user already holds a booking for the instance and ErrQuotaExceeded when
// the quota trigger rejects the confirmed insert.
func (r *BookingRepository) Reserve(ctx context.Context, templateID string, classDate time.Time, userID string) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	capacity, err := lockTemplateCapacity(ctx, tx, templateID)
	if err != nil {
		return nil, err
	}

	var existing int
	if err := tx.GetContext(ctx, &existing,
		`SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3`,
		templateID, classDate, userID); err != nil {
		return nil, fmt.Errorf("check duplicate booking: %w", err)
	}
	if existing > 0 {
		return nil, appErrors.ErrDuplicateBooking
	}

	var confirmed int
	if err := tx.GetContext(ctx, &confirmed,
		`SELECT COUNT(*) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'confirmed'`,
		templateID, classDate); err != nil {
		return nil, fmt.Errorf("count confirmed bookings: %w", err)
	}

	booking := models.Booking{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		UserID:     userID,
		ClassDate:  classDate,
		CreatedAt:  time.Now().UTC(),
	}

	if confirmed < capacity {
		booking.Status = models.BookingConfirmed
		if _, err := tx.ExecContext(ctx, `SAVEPOINT confirm_insert`); err != nil {
			return nil, fmt.Errorf("savepoint: %w", err)
		}
		err = insertBooking(ctx, tx, &booking)
		if isCapacityViolation(err) {
			// The capacity trigger won a race we should not be able to lose
			// while holding the template lock; downgrade to waitlist anyway.
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT confirm_insert`); rbErr != nil {
				return nil, fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
			err = insertAsWaitlist(ctx, tx, &booking)
		}
	} else {
		err = insertAsWaitlist(ctx, tx, &booking)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateBooking
		}
		if isQuotaViolation(err) {
			return nil, appErrors.ErrQuotaExceeded
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return &booking, nil
}

// Cancel deletes the user's booking for the instance. Cancelling a confirmed
// booking promotes the lowest-position waitlist entry; both cancel paths keep
// the remaining waitlist positions gapless.
func (r *BookingRepository) Cancel(ctx context.Context, templateID string, classDate time.Time, userID string) (*CancelOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := lockTemplateCapacity(ctx, tx, templateID); err != nil {
		return nil, err
	}

	var removed models.Booking
	err = tx.GetContext(ctx, &removed,
		`DELETE FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3
		 RETURNING id, template_id, user_id, class_date, status, position, reminder_sent, created_at`,
		templateID, classDate, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("delete booking: %w", err)
	}

	outcome := &CancelOutcome{Removed: removed}

	switch removed.Status {
	case models.BookingConfirmed:
		promoted, err := promoteHead(ctx, tx, templateID, classDate)
		if err != nil {
			return nil, err
		}
		outcome.Promoted = promoted
	case models.BookingWaitlist:
		if removed.Position != nil {
			if err := closeWaitlistGap(ctx, tx, templateID, classDate, *removed.Position); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return outcome, nil
}

// Find returns the booking a user holds for an instance, or sql.ErrNoRows.
func (r *BookingRepository) Find(ctx context.Context, templateID string, classDate time.Time, userID string) (*models.Booking, error) {
	const query = `SELECT id, template_id, user_id, class_date, status, position, reminder_sent, created_at
		FROM bookings WHERE template_id = $1 AND class_date = $2 AND user_id = $3`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, templateID, classDate, userID); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListForUser returns a member's bookings on or after the given date, joined
// with template details, soonest first.
func (r *BookingRepository) ListForUser(ctx context.Context, userID string, from time.Time) ([]models.BookingDetail, error) {
	const query = `SELECT b.id, b.template_id, b.user_id, b.class_date, b.status, b.position, b.reminder_sent, b.created_at,
			t.start_time, t.duration_minutes, t.class_type_id, ct.name AS class_type_name
		FROM bookings b
		JOIN schedule_templates t ON t.id = b.template_id
		JOIN class_types ct ON ct.id = t.class_type_id
		WHERE b.user_id = $1 AND b.class_date >= $2
		ORDER BY b.class_date ASC, t.start_time ASC`
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, userID, from); err != nil {
		return nil, fmt.Errorf("list bookings for user: %w", err)
	}
	return bookings, nil
}

// CountsForTemplates aggregates per-instance booking counts for the given
// templates, limited to instances on or after the given date.
func (r *BookingRepository) CountsForTemplates(ctx context.Context, templateIDs []string, from time.Time) ([]models.InstanceCount, error) {
	if len(templateIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT template_id, class_date, status, COUNT(*) AS count
		FROM bookings
		WHERE template_id = ANY($1) AND class_date >= $2
		GROUP BY template_id, class_date, status`
	var counts []models.InstanceCount
	if err := r.db.SelectContext(ctx, &counts, query, pq.Array(templateIDs), from); err != nil {
		return nil, fmt.Errorf("count bookings per instance: %w", err)
	}
	return counts, nil
}

// CountConfirmedForPeriod returns a user's confirmed bookings whose template
// is anchored to the given period. This is the quota count basis.
func (r *BookingRepository) CountConfirmedForPeriod(ctx context.Context, userID string, periodStart time.Time) (int, error) {
	const query = `SELECT COUNT(*)
		FROM bookings b
		JOIN schedule_templates t ON t.id = b.template_id
		WHERE b.user_id = $1 AND b.status = 'confirmed' AND t.period_anchor = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, periodStart); err != nil {
		return 0, fmt.Errorf("count confirmed bookings for period: %w", err)
	}
	return count, nil
}

// DeleteCreatedBefore hard-deletes bookings created before the cutoff.
func (r *BookingRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale bookings: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale bookings rows affected: %w", err)
	}
	return deleted, nil
}

// ListDueReminders returns confirmed, unreminded bookings whose instance
// starts inside [windowStart, windowEnd).
func (r *BookingRepository) ListDueReminders(ctx context.Context, windowStart, windowEnd time.Time) ([]models.BookingDetail, error) {
	const query = `SELECT b.id, b.template_id, b.user_id, b.class_date, b.status, b.position, b.reminder_sent, b.created_at,
			t.start_time, t.duration_minutes, t.class_type_id, ct.name AS class_type_name
		FROM bookings b
		JOIN schedule_templates t ON t.id = b.template_id
		JOIN class_types ct ON ct.id = t.class_type_id
		WHERE b.status = 'confirmed'
		  AND b.reminder_sent = FALSE
		  AND (b.class_date + t.start_time::time) >= $1
		  AND (b.class_date + t.start_time::time) < $2
		ORDER BY b.class_date ASC, t.start_time ASC`
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, windowStart, windowEnd); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return bookings, nil
}

// MarkReminderSent flags a booking so overlapping job runs never double-send.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, bookingID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE bookings SET reminder_sent = TRUE WHERE id = $1`, bookingID); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

// Roster returns all attendees of an instance, confirmed first, then the
// waitlist by position.
func (r *BookingRepository) Roster(ctx context.Context, templateID string, classDate time.Time) ([]models.RosterEntry, error) {
	const query = `SELECT b.user_id, u.full_name, u.email, b.status, b.position, b.created_at
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.template_id = $1 AND b.class_date = $2
		ORDER BY b.status ASC, b.position ASC NULLS FIRST, b.created_at ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, templateID, classDate); err != nil {
		return nil, fmt.Errorf("load instance roster: %w", err)
	}
	return roster, nil
}

func lockTemplateCapacity(ctx context.Context, tx *sqlx.Tx, templateID string) (int, error) {
	var capacity int
	err := tx.GetContext(ctx, &capacity,
		`SELECT max_capacity FROM schedule_templates WHERE id = $1 FOR UPDATE`, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("lock template: %w", err)
	}
	return capacity, nil
}

func insertBooking(ctx context.Context, tx *sqlx.Tx, booking *models.Booking) error {
	const query = `INSERT INTO bookings (id, template_id, user_id, class_date, status, position, reminder_sent, created_at)
		VALUES (:id, :template_id, :user_id, :class_date, :status, :position, :reminder_sent, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, booking); err != nil {
		return err
	}
	return nil
}

func insertAsWaitlist(ctx context.Context, tx *sqlx.Tx, booking *models.Booking) error {
	var maxPosition int
	if err := tx.GetContext(ctx, &maxPosition,
		`SELECT COALESCE(MAX(position), 0) FROM bookings WHERE template_id = $1 AND class_date = $2 AND status = 'waitlist'`,
		booking.TemplateID, booking.ClassDate); err != nil {
		return fmt.Errorf("max waitlist position: %w", err)
	}
	position := maxPosition + 1
	booking.Status = models.BookingWaitlist
	booking.Position = &position
	return insertBooking(ctx, tx, booking)
}

func promoteHead(ctx context.Context, tx *sqlx.Tx, templateID string, classDate time.Time) (*models.Booking, error) {
	var head models.Booking
	err := tx.GetContext(ctx, &head,
		`SELECT id, template_id, user_id, class_date, status, position, reminder_sent, created_at
		 FROM bookings
		 WHERE template_id = $1 AND class_date = $2 AND status = 'waitlist'
		 ORDER BY position ASC
		 LIMIT 1`,
		templateID, classDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find waitlist head: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'confirmed', position = NULL WHERE id = $1`, head.ID); err != nil {
		return nil, fmt.Errorf("promote waitlist head: %w", err)
	}

	if head.Position != nil {
		if err := closeWaitlistGap(ctx, tx, templateID, classDate, *head.Position); err != nil {
			return nil, err
		}
	}

	head.Status = models.BookingConfirmed
	head.Position = nil
	return &head, nil
}

func closeWaitlistGap(ctx context.Context, tx *sqlx.Tx, templateID string, classDate time.Time, removedPosition int) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET position = position - 1
		 WHERE template_id = $1 AND class_date = $2 AND status = 'waitlist' AND position > $3`,
		templateID, classDate, removedPosition); err != nil {
		return fmt.Errorf("renumber waitlist: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

func isCapacityViolation(err error) bool {
	return isBookingTriggerViolation(err, "BOOKING_CAPACITY")
}

// isQuotaViolation recognizes the monthly-quota trigger. Unlike a capacity
// rejection there is no waitlist fallback: an over-quota member may not hold
// the booking in any status.
func isQuotaViolation(err error) bool {
	return isBookingTriggerViolation(err, "BOOKING_QUOTA")
}

func isBookingTriggerViolation(err error, marker string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if code != pqCheckViolation && code != pqRaiseException {
			return false
		}
		return strings.Contains(pqErr.Message, marker)
	}
	return false
}
