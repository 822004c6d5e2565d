package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"upnext-service/internal/models"
	"upnext-service/internal/observability"
	"upnext-service/internal/repositories"
	"upnext-service/internal/telemetry"
)

// EventHandler serves event creation and the attendance lifecycle. The
// capacity and waitlist decisions live in the repository, under the event
// row lock; this layer maps outcomes to responses.
type EventHandler struct {
	events repositories.EventRepository
	audit  *telemetry.AuditEmitter
}

// NewEventHandler builds an EventHandler.
func NewEventHandler(events repositories.EventRepository, audit *telemetry.AuditEmitter) *EventHandler {
	return &EventHandler{events: events, audit: audit}
}

// CreateEvent registers a new event organized by the caller.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req struct {
		Title       string    `json:"title" binding:"required"`
		Description string    `json:"description"`
		StartsAt    time.Time `json:"starts_at" binding:"required"`
		EndsAt      time.Time `json:"ends_at" binding:"required"`
		Capacity    *int      `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event must end after it starts"})
		return
	}
	if req.Capacity != nil && *req.Capacity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must be at least 1"})
		return
	}

	event, err := h.events.CreateEvent(c.Request.Context(), models.Event{
		Title:       req.Title,
		Description: req.Description,
		OrganizerID: c.GetInt("userID"),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "event creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create event"})
		return
	}

	h.emitAudit(c, "INFO", "Event created")
	c.JSON(http.StatusCreated, event)
}

// GetEvent returns a single event.
func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	event, err := h.events.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event"})
		return
	}

	c.JSON(http.StatusOK, event)
}

// Attend registers the caller for an event. A full event yields a waitlisted
// registration instead of a rejection; a previously cancelled registration
// is renewed in place.
func (h *EventHandler) Attend(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	attendee, renewed, err := h.events.Attend(c.Request.Context(), eventID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, repositories.ErrAlreadyRegistered):
			c.JSON(http.StatusBadRequest, gin.H{"error": "you are already registered for this event"})
		default:
			h.emitAudit(c, "ERROR", "event registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		}
		return
	}

	message := "successfully registered"
	if attendee.Status == models.AttendeeWaitlisted {
		message = "event is full, you have been added to the waitlist"
	}
	if renewed {
		// Renewals go straight back to registered, never to the waitlist.
		message = "your registration has been renewed"
	}

	h.emitAudit(c, "INFO", "Event registration saved")
	c.JSON(http.StatusCreated, gin.H{
		"message":  message,
		"attendee": attendee,
	})
}

// CancelAttendance cancels the caller's registration. When a registered spot
// frees up, the earliest waitlisted attendee is promoted in the same
// transaction.
func (h *EventHandler) CancelAttendance(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	promoted, err := h.events.CancelAttendance(c.Request.Context(), eventID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, repositories.ErrNotRegistered):
			c.JSON(http.StatusBadRequest, gin.H{"error": "you are not registered for this event"})
		default:
			h.emitAudit(c, "ERROR", "cancel attendance failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel registration"})
		}
		return
	}

	resp := gin.H{"message": "registration cancelled"}
	if promoted != nil {
		observability.IncWaitlistPromotion()
		h.emitAudit(c, "INFO", "Waitlisted attendee promoted")
		resp["promoted"] = promoted
	}

	c.JSON(http.StatusOK, resp)
}

// ListAttendees returns every attendance row for an event, waitlist included.
func (h *EventHandler) ListAttendees(c *gin.Context) {
	eventID, ok := parseEventID(c)
	if !ok {
		return
	}

	if _, err := h.events.GetEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event"})
		return
	}

	attendees, err := h.events.ListAttendees(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load attendees"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendees": attendees})
}

func (h *EventHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseEventID(c *gin.Context) (int, bool) {
	eventID, err := strconv.Atoi(c.Param("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return 0, false
	}
	return eventID, true
}
