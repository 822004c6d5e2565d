package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"upnext-service/internal/models"
)

var ErrEventNotFound = errors.New("event not found")
var ErrAlreadyRegistered = errors.New("already registered for this event")
var ErrNotRegistered = errors.New("not registered for this event")

// EventRepository abstracts event and attendance persistence. Attend and
// CancelAttendance serialize against concurrent mutations of the same
// event's attendee set.
type EventRepository interface {
	CreateEvent(ctx context.Context, event models.Event) (models.Event, error)
	GetEvent(ctx context.Context, eventID int) (models.Event, error)
	Attend(ctx context.Context, eventID, userID int) (models.EventAttendee, bool, error)
	CancelAttendance(ctx context.Context, eventID, userID int) (*models.EventAttendee, error)
	ListAttendees(ctx context.Context, eventID int) ([]models.EventAttendee, error)
}

// EventRepo is a sqlx implementation of EventRepository.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo constructs an EventRepo.
func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

// CreateEvent inserts a new event.
func (r *EventRepo) CreateEvent(ctx context.Context, event models.Event) (models.Event, error) {
	var created models.Event
	err := r.db.QueryRowxContext(ctx, `INSERT INTO events (title, description, organizer_id, starts_at, ends_at, capacity)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, title, description, organizer_id, starts_at, ends_at, capacity, created_at`,
		event.Title, event.Description, event.OrganizerID, event.StartsAt, event.EndsAt, event.Capacity).
		StructScan(&created)
	return created, err
}

// GetEvent fetches an event by id.
func (r *EventRepo) GetEvent(ctx context.Context, eventID int) (models.Event, error) {
	var event models.Event
	err := r.db.GetContext(ctx, &event,
		`SELECT id, title, description, organizer_id, starts_at, ends_at, capacity, created_at FROM events WHERE id=$1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrEventNotFound
	}
	return event, err
}

// lockEvent takes a row lock on the event so count-then-write sequences on
// its attendee set run one at a time.
func lockEvent(ctx context.Context, tx *sqlx.Tx, eventID int) (*int, error) {
	var capacity *int
	err := tx.QueryRowxContext(ctx, `SELECT capacity FROM events WHERE id=$1 FOR UPDATE`, eventID).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return capacity, err
}

// Attend registers the user for the event. The bool reports a renewal of a
// previously cancelled registration. When the event has a capacity and the
// registered count has reached it, the attendee is created waitlisted.
func (r *EventRepo) Attend(ctx context.Context, eventID, userID int) (models.EventAttendee, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.EventAttendee{}, false, err
	}
	defer tx.Rollback()

	capacity, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return models.EventAttendee{}, false, err
	}

	var existing models.EventAttendee
	err = tx.GetContext(ctx, &existing, `SELECT id, event_id, user_id, status, registration_date
        FROM event_attendees WHERE event_id=$1 AND user_id=$2`, eventID, userID)
	switch {
	case err == nil:
		if existing.Status != models.AttendeeCancelled {
			return models.EventAttendee{}, false, ErrAlreadyRegistered
		}
		// Renewal reuses the row instead of creating a duplicate.
		if err := tx.QueryRowxContext(ctx, `UPDATE event_attendees SET status=$3, registration_date=$4
            WHERE id=$1 AND event_id=$2
            RETURNING id, event_id, user_id, status, registration_date`,
			existing.ID, eventID, models.AttendeeRegistered, time.Now().UTC()).StructScan(&existing); err != nil {
			return models.EventAttendee{}, false, err
		}
		if err := tx.Commit(); err != nil {
			return models.EventAttendee{}, false, err
		}
		return existing, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return models.EventAttendee{}, false, err
	}

	status := models.AttendeeRegistered
	if capacity != nil {
		var registered int
		if err := tx.GetContext(ctx, &registered,
			`SELECT COUNT(*) FROM event_attendees WHERE event_id=$1 AND status=$2`,
			eventID, models.AttendeeRegistered); err != nil {
			return models.EventAttendee{}, false, err
		}
		if registered >= *capacity {
			status = models.AttendeeWaitlisted
		}
	}

	var attendee models.EventAttendee
	if err := tx.QueryRowxContext(ctx, `INSERT INTO event_attendees (event_id, user_id, status)
        VALUES ($1, $2, $3)
        RETURNING id, event_id, user_id, status, registration_date`,
		eventID, userID, status).StructScan(&attendee); err != nil {
		return models.EventAttendee{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return models.EventAttendee{}, false, err
	}
	return attendee, false, nil
}

// CancelAttendance cancels the user's registration and, for capacity-bound
// events, promotes the earliest-registered waitlisted attendee. Exactly one
// promotion happens per cancellation; the promoted attendee is returned when
// one exists.
func (r *EventRepo) CancelAttendance(ctx context.Context, eventID, userID int) (*models.EventAttendee, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	capacity, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	var existing models.EventAttendee
	err = tx.GetContext(ctx, &existing, `SELECT id, event_id, user_id, status, registration_date
        FROM event_attendees WHERE event_id=$1 AND user_id=$2`, eventID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	if existing.Status == models.AttendeeCancelled {
		return nil, ErrNotRegistered
	}

	if _, err := tx.ExecContext(ctx, `UPDATE event_attendees SET status=$2 WHERE id=$1`,
		existing.ID, models.AttendeeCancelled); err != nil {
		return nil, err
	}

	// A waitlisted attendee cancelling frees no registered spot, so nobody
	// gets promoted in that case.
	var promoted *models.EventAttendee
	if capacity != nil && existing.Status == models.AttendeeRegistered {
		var next models.EventAttendee
		err := tx.QueryRowxContext(ctx, `UPDATE event_attendees SET status=$2
            WHERE id = (SELECT id FROM event_attendees WHERE event_id=$1 AND status=$3
                        ORDER BY registration_date ASC, id ASC LIMIT 1)
            RETURNING id, event_id, user_id, status, registration_date`,
			eventID, models.AttendeeRegistered, models.AttendeeWaitlisted).StructScan(&next)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			promoted = &next
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return promoted, nil
}

// ListAttendees returns attendees of an event in registration order.
func (r *EventRepo) ListAttendees(ctx context.Context, eventID int) ([]models.EventAttendee, error) {
	var attendees []models.EventAttendee
	err := r.db.SelectContext(ctx, &attendees, `SELECT id, event_id, user_id, status, registration_date
        FROM event_attendees WHERE event_id=$1 ORDER BY registration_date ASC, id ASC`, eventID)
	return attendees, err
}
