package models

import "time"

// NotificationSeverity classifies notifications for display.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityWarning NotificationSeverity = "warning"
)

// Notification is a persisted fire-and-forget message to a member. Delivery
// transport (push, mail) lives outside this service; Dispatched marks the
// hand-off to the async dispatcher.
type Notification struct {
	ID         string               `db:"id" json:"id"`
	UserID     string               `db:"user_id" json:"user_id"`
	Title      string               `db:"title" json:"title"`
	Message    string               `db:"message" json:"message"`
	Severity   NotificationSeverity `db:"severity" json:"severity"`
	Dispatched bool                 `db:"dispatched" json:"dispatched"`
	CreatedAt  time.Time            `db:"created_at" json:"created_at"`
}
