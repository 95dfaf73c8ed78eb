package models

import (
	"fmt"
	"time"
)

// ScheduleTemplate is the recurring weekly definition of a class slot. One row
// exists per period; the roll-forward job replicates templates into the next
// period with a fresh PeriodAnchor.
type ScheduleTemplate struct {
	ID              string    `db:"id" json:"id"`
	ClassTypeID     string    `db:"class_type_id" json:"class_type_id"`
	DayOfWeek       int       `db:"day_of_week" json:"day_of_week"`
	StartTime       string    `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	MaxCapacity     int       `db:"max_capacity" json:"max_capacity"`
	PeriodAnchor    time.Time `db:"period_anchor" json:"period_anchor"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StartsOn combines the template's time-of-day with a concrete date, in the
// date's location.
func (t ScheduleTemplate) StartsOn(date time.Time) (time.Time, error) {
	clock, err := time.Parse("15:04", t.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse template start time %q: %w", t.StartTime, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, date.Location()), nil
}

// IsSynthetic reports whether the template was generated on the fly for a
// free-training session. Synthetic templates always have capacity 1 and are
// deleted together with their booking.
func (t ScheduleTemplate) IsSynthetic() bool {
	return t.MaxCapacity == 1
}

// TemplateFilter describes query params for listing templates.
type TemplateFilter struct {
	ClassTypeID  string
	DayOfWeek    *int
	PeriodAnchor *time.Time
	Page         int
	PageSize     int
}

// ClassInstance is one concrete dated occurrence of a template. Instances are
// derived on every projection; they are never stored.
type ClassInstance struct {
	TemplateID     string    `json:"template_id"`
	ClassTypeID    string    `json:"class_type_id"`
	Date           time.Time `json:"date"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Capacity       int       `json:"capacity"`
	ConfirmedCount int       `json:"confirmed_count"`
	WaitlistCount  int       `json:"waitlist_count"`
}

// SpotsLeft returns the remaining confirmed capacity, never negative.
func (i ClassInstance) SpotsLeft() int {
	left := i.Capacity - i.ConfirmedCount
	if left < 0 {
		return 0
	}
	return left
}

// PeriodStart truncates t to the first day of its calendar month.
func PeriodStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// NextPeriodStart returns the first day of the month after t.
func NextPeriodStart(t time.Time) time.Time {
	return PeriodStart(t).AddDate(0, 1, 0)
}
