package models

import "time"

// Attendance statuses.
const (
	AttendeeRegistered = "registered"
	AttendeeAttended   = "attended"
	AttendeeCancelled  = "cancelled"
	AttendeeWaitlisted = "waitlisted"
)

// Event is an organized event users can attend. A nil Capacity means
// unlimited attendance and disables waitlisting.
type Event struct {
	ID          int       `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	OrganizerID int       `db:"organizer_id" json:"organizer_id"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time `db:"ends_at" json:"ends_at"`
	Capacity    *int      `db:"capacity" json:"capacity,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// EventAttendee tracks one user's attendance at one event. At most one row
// per (event, user); re-registration reuses the existing row.
type EventAttendee struct {
	ID               int       `db:"id" json:"id"`
	EventID          int       `db:"event_id" json:"event_id"`
	UserID           int       `db:"user_id" json:"user_id"`
	Status           string    `db:"status" json:"status"`
	RegistrationDate time.Time `db:"registration_date" json:"registration_date"`
}
