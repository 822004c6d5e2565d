package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"upnext-service/internal/mocks"
	"upnext-service/internal/models"
	"upnext-service/internal/repositories"
)

func setupVenueRouter(handler *VenueHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/venues", handler.CreateVenue)
	r.GET("/venues/:venue_id", handler.GetVenue)
	r.POST("/venues/:venue_id/availability", handler.AddAvailability)
	r.GET("/venues/:venue_id/availability", handler.ListAvailability)
	r.POST("/venues/:venue_id/bookings", handler.CreateBooking)
	r.GET("/venues/:venue_id/bookings", handler.ListBookings)
	r.DELETE("/bookings/:booking_id", handler.CancelBooking)
	r.POST("/venues/:venue_id/reviews", handler.CreateReview)
	return r
}

func TestCreateVenueSuccess(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("CreateVenue", mock.Anything, mock.AnythingOfType("models.Venue")).Return(models.Venue{ID: 6, Name: "loft"}, nil).Once()

	body := bytes.NewBufferString(`{"name":"loft","city":"Berlin","capacity":80,"hourly_rate":"50.00","min_booking_hours":2}`)
	req := httptest.NewRequest(http.MethodPost, "/venues", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	venueRepo.AssertExpectations(t)
}

func TestCreateBookingSuccess(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	booking := models.VenueBooking{
		ID:         3,
		VenueID:    6,
		BookerID:   1,
		TotalPrice: decimal.RequireFromString("200.00"),
		Status:     models.BookingConfirmed,
	}
	venueRepo.On("CreateBooking", mock.Anything, 6, 1, "2025-06-02", "10:00", "14:00").Return(booking, nil).Once()

	body := bytes.NewBufferString(`{"booking_date":"2025-06-02","start_time":"10:00","end_time":"14:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/bookings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.VenueBooking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.TotalPrice.Equal(decimal.RequireFromString("200.00")))
	assert.Equal(t, models.BookingConfirmed, resp.Status)
	venueRepo.AssertExpectations(t)
}

func TestCreateBookingSlotTaken(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("CreateBooking", mock.Anything, 6, 1, "2025-06-02", "13:00", "15:00").Return(models.VenueBooking{}, repositories.ErrSlotTaken).Once()

	body := bytes.NewBufferString(`{"booking_date":"2025-06-02","start_time":"13:00","end_time":"15:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/bookings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	venueRepo.AssertExpectations(t)
}

func TestCreateBookingVenueClosed(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("CreateBooking", mock.Anything, 6, 1, "2025-06-08", "10:00", "14:00").Return(models.VenueBooking{}, repositories.ErrVenueClosed).Once()

	body := bytes.NewBufferString(`{"booking_date":"2025-06-08","start_time":"10:00","end_time":"14:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/bookings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingBelowMinimumHours(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("CreateBooking", mock.Anything, 6, 1, "2025-06-02", "10:00", "11:00").Return(models.VenueBooking{}, repositories.ErrBelowMinimumHours).Once()

	body := bytes.NewBufferString(`{"booking_date":"2025-06-02","start_time":"10:00","end_time":"11:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/bookings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingRejectsBadTimeFormat(t *testing.T) {
	handler := NewVenueHandler(new(mocks.VenueRepositoryMock), nil)
	router := setupVenueRouter(handler)

	body := bytes.NewBufferString(`{"booking_date":"2025-06-02","start_time":"10am","end_time":"2pm"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/bookings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddAvailabilityOwnerOnly(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6, OwnerID: 2}, nil).Once()

	body := bytes.NewBufferString(`{"day_of_week":0,"opening_time":"09:00","closing_time":"18:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/availability", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddAvailabilitySuccess(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6, OwnerID: 1}, nil).Once()
	venueRepo.On("AddAvailability", mock.Anything, models.VenueAvailability{
		VenueID:     6,
		DayOfWeek:   0,
		OpeningTime: "09:00",
		ClosingTime: "18:00",
		IsAvailable: true,
	}).Return(models.VenueAvailability{ID: 2, VenueID: 6}, nil).Once()

	body := bytes.NewBufferString(`{"day_of_week":0,"opening_time":"09:00","closing_time":"18:00"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/availability", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	venueRepo.AssertExpectations(t)
}

func TestListBookingsOwnerOnly(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6, OwnerID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/venues/6/bookings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelBookingByStrangerRejected(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetBooking", mock.Anything, 3).Return(models.VenueBooking{ID: 3, VenueID: 6, BookerID: 2}, nil).Once()
	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6, OwnerID: 4}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/bookings/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelBookingByVenueOwner(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetBooking", mock.Anything, 3).Return(models.VenueBooking{ID: 3, VenueID: 6, BookerID: 2}, nil).Once()
	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6, OwnerID: 1}, nil).Once()
	venueRepo.On("CancelBooking", mock.Anything, 3).Return(models.VenueBooking{ID: 3, Status: models.BookingCancelled}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/bookings/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	venueRepo.AssertExpectations(t)
}

func TestCancelCompletedBookingRejected(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetBooking", mock.Anything, 3).Return(models.VenueBooking{ID: 3, VenueID: 6, BookerID: 1}, nil).Once()
	venueRepo.On("CancelBooking", mock.Anything, 3).Return(models.VenueBooking{}, repositories.ErrBookingNotCancellable).Once()

	req := httptest.NewRequest(http.MethodDelete, "/bookings/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReviewDuplicateRejected(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6}, nil).Once()
	venueRepo.On("CreateReview", mock.Anything, mock.AnythingOfType("models.VenueReview")).Return(models.VenueReview{}, repositories.ErrAlreadyReviewed).Once()

	body := bytes.NewBufferString(`{"rating":5,"comment":"great"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/reviews", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	venueRepo.AssertExpectations(t)
}

func TestCreateReviewSuccess(t *testing.T) {
	venueRepo := new(mocks.VenueRepositoryMock)
	handler := NewVenueHandler(venueRepo, nil)
	router := setupVenueRouter(handler)

	venueRepo.On("GetVenue", mock.Anything, 6).Return(models.Venue{ID: 6}, nil).Once()
	venueRepo.On("CreateReview", mock.Anything, models.VenueReview{VenueID: 6, UserID: 1, Rating: 4, Comment: "nice"}).Return(models.VenueReview{ID: 1, Rating: 4}, nil).Once()

	body := bytes.NewBufferString(`{"rating":4,"comment":"nice"}`)
	req := httptest.NewRequest(http.MethodPost, "/venues/6/reviews", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	venueRepo.AssertExpectations(t)
}
