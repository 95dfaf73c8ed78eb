package models

import "time"

// BookingStatus distinguishes reservations counted against capacity from
// waitlisted ones.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingWaitlist  BookingStatus = "waitlist"
)

// Booking is one reservation row against a (template, class date) instance.
// Position is meaningful only while Status is waitlist; lower means earlier
// in line.
type Booking struct {
	ID           string        `db:"id" json:"id"`
	TemplateID   string        `db:"template_id" json:"template_id"`
	UserID       string        `db:"user_id" json:"user_id"`
	ClassDate    time.Time     `db:"class_date" json:"class_date"`
	Status       BookingStatus `db:"status" json:"status"`
	Position     *int          `db:"position" json:"position,omitempty"`
	ReminderSent bool          `db:"reminder_sent" json:"reminder_sent"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// BookingDetail joins a booking with its template for list views.
type BookingDetail struct {
	Booking
	StartTime       string `db:"start_time" json:"start_time"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`
	ClassTypeID     string `db:"class_type_id" json:"class_type_id"`
	ClassTypeName   string `db:"class_type_name" json:"class_type_name"`
}

// StartsAt resolves the absolute start instant of the booked instance.
func (d BookingDetail) StartsAt() (time.Time, error) {
	tpl := ScheduleTemplate{StartTime: d.StartTime}
	return tpl.StartsOn(d.ClassDate)
}

// InstanceCount aggregates booking counts per (template, date) pair for
// decorating projected instances.
type InstanceCount struct {
	TemplateID string        `db:"template_id"`
	ClassDate  time.Time     `db:"class_date"`
	Status     BookingStatus `db:"status"`
	Count      int           `db:"count"`
}

// RosterEntry is one attendee row on an instance roster export.
type RosterEntry struct {
	UserID    string        `db:"user_id" json:"user_id"`
	FullName  string        `db:"full_name" json:"full_name"`
	Email     string        `db:"email" json:"email"`
	Status    BookingStatus `db:"status" json:"status"`
	Position  *int          `db:"position" json:"position,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// QuotaState summarises a member's booking allowance for the current period.
// Limit and Remaining are nil for unlimited roles.
type QuotaState struct {
	UserID      string    `json:"user_id"`
	PeriodStart time.Time `json:"period_start"`
	Unlimited   bool      `json:"unlimited"`
	Limit       *int      `json:"limit,omitempty"`
	Confirmed   int       `json:"confirmed"`
	Remaining   *int      `json:"remaining,omitempty"`
}

// HasRemaining reports whether at least one booking is still allowed.
func (q QuotaState) HasRemaining() bool {
	if q.Unlimited {
		return true
	}
	return q.Remaining != nil && *q.Remaining > 0
}
