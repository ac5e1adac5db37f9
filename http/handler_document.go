package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"coursebook/doccache"
)

func (s Server) GetBookingDocument(c echo.Context) error {
	ctx := c.Request().Context()

	booking, err := s.bookingsRepo.Get(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	document, err := s.documentCache.GetOrGenerate(ctx, booking.BookingID, booking.Version,
		func(ctx context.Context) (doccache.Document, error) {
			session, err := s.sessionsRepo.Get(ctx, booking.SessionID)
			if err != nil {
				return doccache.Document{}, err
			}

			return doccache.Render(booking, session, time.Now().UTC()), nil
		},
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, document)
}
