package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s Server) GetReconciliationReviews(c echo.Context) error {
	reviews, err := s.ledger.ListReviews(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, reviews)
}
