package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"coursebook/gateway"
	"coursebook/metrics"
)

// PostPaymentWebhook receives gateway notifications. 200 means the event is
// durably recorded (applied, duplicate or queued for review alike); the
// gateway must redeliver only on 5xx.
func (s Server) PostPaymentWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	signature := c.Request().Header.Get(gateway.SignatureHeader)
	if err := s.verifier.Verify(payload, signature); err != nil {
		logrus.WithError(err).Warn("Dropping webhook with invalid signature")
		metrics.WebhooksReceived.WithLabelValues("invalid_signature").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := s.ledger.Apply(c.Request().Context(), event)
	if err != nil {
		logrus.WithError(err).WithField("external_id", event.ExternalID).
			Error("Could not record webhook event")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event not recorded, retry")
	}

	metrics.WebhooksReceived.WithLabelValues(string(result)).Inc()

	return c.JSON(http.StatusOK, map[string]string{"result": string(result)})
}
