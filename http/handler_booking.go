package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"coursebook/entity"
	"coursebook/metrics"
)

type postBookingRequest struct {
	SessionID            string               `json:"session_id"`
	Participants         []entity.Participant `json:"participants"`
	NumberOfParticipants int                  `json:"number_of_participants"`
	CustomerEmail        string               `json:"customer_email"`
	DiscountAmount       int64                `json:"discount_amount"`
}

type postBookingResponse struct {
	BookingID        string    `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	FinalAmount      int64     `json:"final_amount"`
	Currency         string    `json:"currency"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func (s Server) PostBookings(c echo.Context) error {
	var request postBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if len(request.Participants) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one participant is required")
	}
	if request.NumberOfParticipants != 0 && request.NumberOfParticipants != len(request.Participants) {
		return echo.NewHTTPError(http.StatusBadRequest, "number_of_participants does not match the participant list")
	}
	for _, participant := range request.Participants {
		if participant.Name == "" || participant.Email == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "each participant needs a name and an email")
		}
	}
	if request.CustomerEmail == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_email is required")
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()

	session, err := s.sessionsRepo.Get(ctx, request.SessionID)
	if err != nil {
		return httpError(err)
	}
	if !session.Bookable(now) {
		return echo.NewHTTPError(http.StatusConflict, "session is not open for booking")
	}

	booking, err := entity.NewBooking(
		session,
		request.Participants,
		request.CustomerEmail,
		request.DiscountAmount,
		now,
		s.config.PaymentWindow,
	)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.bookingsRepo.Store(ctx, booking); err != nil {
		return httpError(err)
	}

	metrics.BookingsCreated.Inc()

	return c.JSON(http.StatusCreated, postBookingResponse{
		BookingID:        booking.BookingID,
		BookingReference: booking.BookingReference,
		FinalAmount:      booking.FinalAmount,
		Currency:         booking.Currency,
		ExpiresAt:        booking.ExpiresAt,
	})
}

func (s Server) GetBooking(c echo.Context) error {
	booking, err := s.bookingsRepo.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, booking)
}
