package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"upnext-service/internal/models"
)

var ErrVenueNotFound = errors.New("venue not found")
var ErrBookingNotFound = errors.New("booking not found")
var ErrBelowMinimumHours = errors.New("booking is shorter than the venue minimum")
var ErrVenueClosed = errors.New("venue is not available on the selected day")
var ErrOutsideOpeningHours = errors.New("booking time is outside opening hours")
var ErrSlotTaken = errors.New("this time slot is already booked")
var ErrBookingNotCancellable = errors.New("booking can no longer be cancelled")
var ErrAlreadyReviewed = errors.New("venue already reviewed by this user")

// VenueRepository abstracts venue, availability, booking and review
// persistence. CreateBooking serializes against concurrent bookings of the
// same venue.
type VenueRepository interface {
	CreateVenue(ctx context.Context, venue models.Venue) (models.Venue, error)
	GetVenue(ctx context.Context, venueID int) (models.Venue, error)
	AddAvailability(ctx context.Context, availability models.VenueAvailability) (models.VenueAvailability, error)
	ListAvailability(ctx context.Context, venueID int) ([]models.VenueAvailability, error)
	CreateBooking(ctx context.Context, venueID, bookerID int, bookingDate, startTime, endTime string) (models.VenueBooking, error)
	GetBooking(ctx context.Context, bookingID int) (models.VenueBooking, error)
	CancelBooking(ctx context.Context, bookingID int) (models.VenueBooking, error)
	ListBookings(ctx context.Context, venueID int) ([]models.VenueBooking, error)
	CreateReview(ctx context.Context, review models.VenueReview) (models.VenueReview, error)
}

// VenueRepo is a sqlx implementation of VenueRepository.
type VenueRepo struct {
	db *sqlx.DB
}

// NewVenueRepo constructs a VenueRepo.
func NewVenueRepo(db *sqlx.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// CreateVenue inserts a new venue.
func (r *VenueRepo) CreateVenue(ctx context.Context, venue models.Venue) (models.Venue, error) {
	var created models.Venue
	err := r.db.QueryRowxContext(ctx, `INSERT INTO venues (name, description, owner_id, city, capacity, hourly_rate, min_booking_hours)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, name, description, owner_id, city, capacity, hourly_rate, min_booking_hours, is_active, created_at`,
		venue.Name, venue.Description, venue.OwnerID, venue.City, venue.Capacity, venue.HourlyRate, venue.MinBookingHours).
		StructScan(&created)
	return created, err
}

// GetVenue fetches a venue by id.
func (r *VenueRepo) GetVenue(ctx context.Context, venueID int) (models.Venue, error) {
	var venue models.Venue
	err := r.db.GetContext(ctx, &venue, `SELECT id, name, description, owner_id, city, capacity, hourly_rate, min_booking_hours, is_active, created_at
        FROM venues WHERE id=$1`, venueID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Venue{}, ErrVenueNotFound
	}
	return venue, err
}

// AddAvailability inserts a weekly opening window for a venue.
func (r *VenueRepo) AddAvailability(ctx context.Context, availability models.VenueAvailability) (models.VenueAvailability, error) {
	var created models.VenueAvailability
	err := r.db.QueryRowxContext(ctx, `INSERT INTO venue_availability (venue_id, day_of_week, opening_time, closing_time, is_available)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, venue_id, day_of_week, opening_time, closing_time, is_available`,
		availability.VenueID, availability.DayOfWeek, availability.OpeningTime, availability.ClosingTime, availability.IsAvailable).
		StructScan(&created)
	return created, err
}

// ListAvailability returns all opening windows of a venue.
func (r *VenueRepo) ListAvailability(ctx context.Context, venueID int) ([]models.VenueAvailability, error) {
	var windows []models.VenueAvailability
	err := r.db.SelectContext(ctx, &windows, `SELECT id, venue_id, day_of_week, opening_time, closing_time, is_available
        FROM venue_availability WHERE venue_id=$1 ORDER BY day_of_week, opening_time`, venueID)
	return windows, err
}

// parseClock converts an "HH:MM" string to minutes since midnight.
func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return hours*60 + minutes, nil
}

// bookingMinutes returns the booking duration in minutes. An end before the
// start is treated as crossing midnight; equal times are a zero-length
// booking and fail the minimum-hours check.
func bookingMinutes(startTime, endTime string) (int, error) {
	start, err := parseClock(startTime)
	if err != nil {
		return 0, err
	}
	end, err := parseClock(endTime)
	if err != nil {
		return 0, err
	}
	minutes := end - start
	if minutes < 0 {
		minutes += 24 * 60
	}
	return minutes, nil
}

// bookingWeekday maps a "YYYY-MM-DD" date to the availability convention of
// 0 = Monday through 6 = Sunday.
func bookingWeekday(bookingDate string) (int, error) {
	date, err := time.Parse("2006-01-02", bookingDate)
	if err != nil {
		return 0, fmt.Errorf("invalid booking date %q", bookingDate)
	}
	return (int(date.Weekday()) + 6) % 7, nil
}

// overlaps applies the half-open interval test: [s1,e1) and [s2,e2) overlap
// iff s1 < e2 and s2 < e1. Times are "HH:MM" so lexical order is time order.
func overlaps(start1, end1, start2, end2 string) bool {
	return start1 < end2 && start2 < end1
}

// CreateBooking validates and creates a booking inside one transaction with a
// row lock on the venue, so two concurrent requests can never both pass the
// overlap check. Bookings on days with no availability window are rejected
// rather than falling back to another day's hours.
func (r *VenueRepo) CreateBooking(ctx context.Context, venueID, bookerID int, bookingDate, startTime, endTime string) (models.VenueBooking, error) {
	minutes, err := bookingMinutes(startTime, endTime)
	if err != nil {
		return models.VenueBooking{}, err
	}
	weekday, err := bookingWeekday(bookingDate)
	if err != nil {
		return models.VenueBooking{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.VenueBooking{}, err
	}
	defer tx.Rollback()

	var venue models.Venue
	err = tx.GetContext(ctx, &venue, `SELECT id, name, description, owner_id, city, capacity, hourly_rate, min_booking_hours, is_active, created_at
        FROM venues WHERE id=$1 FOR UPDATE`, venueID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VenueBooking{}, ErrVenueNotFound
	}
	if err != nil {
		return models.VenueBooking{}, err
	}

	if minutes < venue.MinBookingHours*60 {
		return models.VenueBooking{}, ErrBelowMinimumHours
	}

	var windows []models.VenueAvailability
	if err := tx.SelectContext(ctx, &windows, `SELECT id, venue_id, day_of_week, opening_time, closing_time, is_available
        FROM venue_availability WHERE venue_id=$1 AND day_of_week=$2 AND is_available`, venueID, weekday); err != nil {
		return models.VenueBooking{}, err
	}
	if len(windows) == 0 {
		return models.VenueBooking{}, ErrVenueClosed
	}
	withinHours := false
	for _, w := range windows {
		if w.OpeningTime <= startTime && endTime <= w.ClosingTime {
			withinHours = true
			break
		}
	}
	if !withinHours {
		return models.VenueBooking{}, ErrOutsideOpeningHours
	}

	var conflict bool
	if err := tx.GetContext(ctx, &conflict, `SELECT EXISTS(SELECT 1 FROM venue_bookings
        WHERE venue_id=$1 AND booking_date=$2 AND status = ANY($3)
        AND start_time < $5 AND end_time > $4)`,
		venueID, bookingDate, pq.Array([]string{models.BookingPending, models.BookingConfirmed}), startTime, endTime); err != nil {
		return models.VenueBooking{}, err
	}
	if conflict {
		return models.VenueBooking{}, ErrSlotTaken
	}

	hours := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
	totalPrice := venue.HourlyRate.Mul(hours).Round(2)

	var booking models.VenueBooking
	if err := tx.QueryRowxContext(ctx, `INSERT INTO venue_bookings (venue_id, booker_id, booking_date, start_time, end_time, total_price, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, venue_id, booker_id, booking_date, start_time, end_time, total_price, status, created_at`,
		venueID, bookerID, bookingDate, startTime, endTime, totalPrice, models.BookingConfirmed).StructScan(&booking); err != nil {
		return models.VenueBooking{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.VenueBooking{}, err
	}
	return booking, nil
}

// GetBooking fetches a booking by id.
func (r *VenueRepo) GetBooking(ctx context.Context, bookingID int) (models.VenueBooking, error) {
	var booking models.VenueBooking
	err := r.db.GetContext(ctx, &booking, `SELECT id, venue_id, booker_id, booking_date, start_time, end_time, total_price, status, created_at
        FROM venue_bookings WHERE id=$1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VenueBooking{}, ErrBookingNotFound
	}
	return booking, err
}

// CancelBooking sets the booking to cancelled unless it is already cancelled
// or completed. Bookings have no waitlist, so nothing is promoted.
func (r *VenueRepo) CancelBooking(ctx context.Context, bookingID int) (models.VenueBooking, error) {
	booking, err := r.GetBooking(ctx, bookingID)
	if err != nil {
		return models.VenueBooking{}, err
	}
	if booking.Status == models.BookingCancelled || booking.Status == models.BookingCompleted {
		return models.VenueBooking{}, ErrBookingNotCancellable
	}

	err = r.db.QueryRowxContext(ctx, `UPDATE venue_bookings SET status=$2 WHERE id=$1
        RETURNING id, venue_id, booker_id, booking_date, start_time, end_time, total_price, status, created_at`,
		bookingID, models.BookingCancelled).StructScan(&booking)
	return booking, err
}

// ListBookings returns all bookings of a venue, newest date first.
func (r *VenueRepo) ListBookings(ctx context.Context, venueID int) ([]models.VenueBooking, error) {
	var bookings []models.VenueBooking
	err := r.db.SelectContext(ctx, &bookings, `SELECT id, venue_id, booker_id, booking_date, start_time, end_time, total_price, status, created_at
        FROM venue_bookings WHERE venue_id=$1 ORDER BY booking_date DESC, start_time ASC`, venueID)
	return bookings, err
}

// CreateReview inserts a review; one per (venue, user).
func (r *VenueRepo) CreateReview(ctx context.Context, review models.VenueReview) (models.VenueReview, error) {
	var created models.VenueReview
	err := r.db.QueryRowxContext(ctx, `INSERT INTO venue_reviews (venue_id, user_id, rating, comment)
        VALUES ($1, $2, $3, $4)
        RETURNING id, venue_id, user_id, rating, comment, created_at`,
		review.VenueID, review.UserID, review.Rating, review.Comment).StructScan(&created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.VenueReview{}, ErrAlreadyReviewed
		}
		return models.VenueReview{}, err
	}
	return created, nil
}
