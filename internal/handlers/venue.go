package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"upnext-service/internal/models"
	"upnext-service/internal/observability"
	"upnext-service/internal/repositories"
	"upnext-service/internal/telemetry"
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// VenueHandler serves venue management, availability windows, bookings and
// reviews. Overlap and opening-hours validation happens in the repository
// under the venue row lock.
type VenueHandler struct {
	venues repositories.VenueRepository
	audit  *telemetry.AuditEmitter
}

// NewVenueHandler builds a VenueHandler.
func NewVenueHandler(venues repositories.VenueRepository, audit *telemetry.AuditEmitter) *VenueHandler {
	return &VenueHandler{venues: venues, audit: audit}
}

// CreateVenue registers a venue owned by the caller.
func (h *VenueHandler) CreateVenue(c *gin.Context) {
	var req struct {
		Name            string          `json:"name" binding:"required"`
		Description     string          `json:"description"`
		City            string          `json:"city" binding:"required"`
		Capacity        int             `json:"capacity" binding:"required,min=1"`
		HourlyRate      decimal.Decimal `json:"hourly_rate"`
		MinBookingHours int             `json:"min_booking_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.HourlyRate.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hourly rate cannot be negative"})
		return
	}
	if req.MinBookingHours < 1 {
		req.MinBookingHours = 1
	}

	venue, err := h.venues.CreateVenue(c.Request.Context(), models.Venue{
		Name:            req.Name,
		Description:     req.Description,
		OwnerID:         c.GetInt("userID"),
		City:            req.City,
		Capacity:        req.Capacity,
		HourlyRate:      req.HourlyRate,
		MinBookingHours: req.MinBookingHours,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "venue creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create venue"})
		return
	}

	h.emitAudit(c, "INFO", "Venue created")
	c.JSON(http.StatusCreated, venue)
}

// GetVenue returns a single venue.
func (h *VenueHandler) GetVenue(c *gin.Context) {
	venueID, ok := parseVenueID(c)
	if !ok {
		return
	}

	venue, err := h.venues.GetVenue(c.Request.Context(), venueID)
	if err != nil {
		if errors.Is(err, repositories.ErrVenueNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load venue"})
		return
	}

	c.JSON(http.StatusOK, venue)
}

// AddAvailability adds a weekly opening window. Owner only.
func (h *VenueHandler) AddAvailability(c *gin.Context) {
	venueID, ok := parseVenueID(c)
	if !ok {
		return
	}

	venue, err := h.venues.GetVenue(c.Request.Context(), venueID)
	if err != nil {
		if errors.Is(err, repositories.ErrVenueNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load venue"})
		return
	}
	if venue.OwnerID != c.GetInt("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the venue owner can manage availability"})
		return
	}

	var req struct {
		DayOfWeek   *int   `json:"day_of_week" binding:"required"`
		OpeningTime string `json:"opening_time" binding:"required"`
		ClosingTime string `json:"closing_time" binding:"required"`
		IsAvailable *bool  `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day_of_week must be between 0 (Monday) and 6 (Sunday)"})
		return
	}
	if !clockPattern.MatchString(req.OpeningTime) || !clockPattern.MatchString(req.ClosingTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "times must use the HH:MM format"})
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	window, err := h.venues.AddAvailability(c.Request.Context(), models.VenueAvailability{
		VenueID:     venueID,
		DayOfWeek:   *req.DayOfWeek,
		OpeningTime: req.OpeningTime,
		ClosingTime: req.ClosingTime,
		IsAvailable: available,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save availability"})
		return
	}

	c.JSON(http.StatusCreated, window)
}

// ListAvailability returns a venue's weekly opening windows.
func (h *VenueHandler) ListAvailability(c *gin.Context) {
	venueID, ok := parseVenueID(c)
	if !ok {
		return
	}

	windows, err := h.venues.ListAvailability(c.Request.Context(), venueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load availability"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"availability": windows})
}

// CreateBooking books a venue for a date and time window. Conflicting and
// out-of-hours requests are rejected, never silently adjusted.
func (h *VenueHandler) CreateBooking(c *gin.Context) {
	venueID, ok := parseVenueID(c)
	if !ok {
		return
	}

	var req struct {
		BookingDate string `json:"booking_date" binding:"required"`
		StartTime   string `json:"start_time" binding:"required"`
		EndTime     string `json:"end_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !datePattern.MatchString(req.BookingDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_date must use the YYYY-MM-DD format"})
		return
	}
	if !clockPattern.MatchString(req.StartTime) || !clockPattern.MatchString(req.EndTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "times must use the HH:MM format"})
		return
	}

	booking, err := h.venues.CreateBooking(c.Request.Context(), venueID, c.GetInt("userID"), req.BookingDate, req.StartTime, req.EndTime)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrVenueNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
		case errors.Is(err, repositories.ErrBelowMinimumHours):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrVenueClosed):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrOutsideOpeningHours):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrSlotTaken):
			observability.IncBookingConflict()
			h.emitAudit(c, "WARN", "Booking rejected: slot already taken")
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.emitAudit(c, "ERROR", "booking creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create booking"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Booking confirmed")
	c.JSON(http.StatusCreated, booking)
}

// CancelBooking cancels a booking. Allowed for the booker or the venue
// owner; completed and already-cancelled bookings stay as they are.
func (h *VenueHandler) CancelBooking(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	booking, err := h.venues.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load booking"})
		return
	}

	userID := c.GetInt("userID")
	if booking.BookerID != userID {
		venue, err := h.venues.GetVenue(c.Request.Context(), booking.VenueID)
		if err != nil || venue.OwnerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the booker or the venue owner can cancel"})
			return
		}
	}

	cancelled, err := h.venues.CancelBooking(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrBookingNotCancellable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not cancel booking"})
		return
	}

	h.emitAudit(c, "INFO", "Booking cancelled")
	c.JSON(http.StatusOK, cancelled)
}

// ListBookings returns all bookings of a venue. Owner only.
func (h *VenueHandler) ListBookings(c *gin.Context) {
	venueID, ok := parseVenueID(c)
	if !ok {
		return
	}

	venue, err := h.venues.GetVenue(c.Request.Context(), venueID)
	if err != nil {
		if errors.Is(err, repositories.ErrVenueNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load venue"})
		return
	}
	if venue.OwnerID != c.GetInt("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the venue owner can list bookings"})
		return
	}

	bookings, err := h.venues.ListBookings(c.Request.Context(), venueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// CreateReview adds the caller's review of a venue, one per user.
func (h *VenueHandler) CreateReview(c *gin.Context) {
	venueID, ok := parseVenueID(c)
	if !ok {
		return
	}

	if _, err := h.venues.GetVenue(c.Request.Context(), venueID); err != nil {
		if errors.Is(err, repositories.ErrVenueNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "venue not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load venue"})
		return
	}

	var req struct {
		Rating  int    `json:"rating" binding:"required,min=1,max=5"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.venues.CreateReview(c.Request.Context(), models.VenueReview{
		VenueID: venueID,
		UserID:  c.GetInt("userID"),
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyReviewed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save review"})
		return
	}

	c.JSON(http.StatusCreated, review)
}

func (h *VenueHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseVenueID(c *gin.Context) (int, bool) {
	venueID, err := strconv.Atoi(c.Param("venue_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue id"})
		return 0, false
	}
	return venueID, true
}
