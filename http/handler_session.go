package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"coursebook/entity"
)

type postSessionRequest struct {
	CourseID        string    `json:"course_id"`
	CourseName      string    `json:"course_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Venue           string    `json:"venue"`
	MaxParticipants int       `json:"max_participants"`
	PriceAmount     int64     `json:"price_amount"`
	PriceCurrency   string    `json:"price_currency"`
}

func (s Server) PostSessions(c echo.Context) error {
	var request postSessionRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if request.MaxParticipants <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "max_participants must be positive")
	}
	if !request.EndTime.After(request.StartTime) {
		return echo.NewHTTPError(http.StatusBadRequest, "end_time must be after start_time")
	}
	if request.PriceAmount < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price_amount must not be negative")
	}

	session := entity.CourseSession{
		SessionID:       uuid.NewString(),
		CourseID:        request.CourseID,
		CourseName:      request.CourseName,
		StartTime:       request.StartTime,
		EndTime:         request.EndTime,
		Venue:           request.Venue,
		MaxParticipants: request.MaxParticipants,
		PriceAmount:     request.PriceAmount,
		PriceCurrency:   request.PriceCurrency,
		Status:          entity.SessionScheduled,
	}

	if err := s.sessionsRepo.Store(c.Request().Context(), session); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, session)
}

func (s Server) GetSession(c echo.Context) error {
	session, err := s.sessionsRepo.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, session)
}

type completeSessionResponse struct {
	SessionID         string `json:"session_id"`
	CompletedBookings int    `json:"completed_bookings"`
}

func (s Server) PostSessionComplete(c echo.Context) error {
	completed, err := s.bookingsRepo.CompleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, completeSessionResponse{
		SessionID:         c.Param("id"),
		CompletedBookings: len(completed),
	})
}

// PostBookingAttended records attendance, paid -> attended. The acting staff
// member comes from the X-Actor-Id header the auth proxy sets.
func (s Server) PostBookingAttended(c echo.Context) error {
	actorID := c.Request().Header.Get("X-Actor-Id")
	if actorID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "X-Actor-Id header is required")
	}

	ctx := c.Request().Context()
	bookingID := c.Param("id")

	if err := s.bookingsRepo.Transition(ctx, bookingID, entity.BookingPaid, entity.BookingAttended); err != nil {
		return httpError(err)
	}

	err := s.eventBus.Publish(ctx, entity.CourseBookingAttended{
		Header:    entity.NewEventHeader(),
		BookingID: bookingID,
		ActorID:   actorID,
	})
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
