package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Venue is a bookable space.
type Venue struct {
	ID              int             `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	OwnerID         int             `db:"owner_id" json:"owner_id"`
	City            string          `db:"city" json:"city"`
	Capacity        int             `db:"capacity" json:"capacity"`
	HourlyRate      decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`
	MinBookingHours int             `db:"min_booking_hours" json:"min_booking_hours"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// VenueAvailability is one weekly opening window. DayOfWeek runs 0 (Monday)
// through 6 (Sunday). Times are "HH:MM" strings in the venue's local day.
type VenueAvailability struct {
	ID          int    `db:"id" json:"id"`
	VenueID     int    `db:"venue_id" json:"venue_id"`
	DayOfWeek   int    `db:"day_of_week" json:"day_of_week"`
	OpeningTime string `db:"opening_time" json:"opening_time"`
	ClosingTime string `db:"closing_time" json:"closing_time"`
	IsAvailable bool   `db:"is_available" json:"is_available"`
}

// VenueBooking reserves a venue for a date and time window. For a given venue
// and date, non-cancelled bookings never overlap.
type VenueBooking struct {
	ID          int             `db:"id" json:"id"`
	VenueID     int             `db:"venue_id" json:"venue_id"`
	BookerID    int             `db:"booker_id" json:"booker_id"`
	BookingDate string          `db:"booking_date" json:"booking_date"`
	StartTime   string          `db:"start_time" json:"start_time"`
	EndTime     string          `db:"end_time" json:"end_time"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// VenueReview is one user's rating of a venue. One per (venue, user).
type VenueReview struct {
	ID        int       `db:"id" json:"id"`
	VenueID   int       `db:"venue_id" json:"venue_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
