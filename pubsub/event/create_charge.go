package event

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"coursebook/entity"
	"coursebook/gateway"
)

func (h Handler) CreateChargeHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"CreateChargeHandler",
		func(ctx context.Context, event *entity.BookingMade) error {
			logrus.WithField("booking_id", event.BookingID).Info("Creating charge at the payment gateway")

			response, err := h.paymentsService.CreateCharge(ctx, gateway.CreateChargeRequest{
				BookingReference: event.BookingReference,
				Attempt:          1,
				Amount:           event.FinalAmount,
				Currency:         event.Currency,
				CustomerEmail:    event.CustomerEmail,
			})
			if err != nil {
				return fmt.Errorf("could not create charge: %w", err)
			}

			// insert-once per booking, so a redelivered BookingMade cannot
			// attach a second charge
			return h.paymentsRepo.Store(ctx, entity.PaymentRecord{
				PaymentID:        uuid.NewString(),
				BookingID:        event.BookingID,
				GatewayReference: response.GatewayReference,
				Amount:           event.FinalAmount,
				Currency:         event.Currency,
				Status:           entity.PaymentCreated,
				CreatedAt:        time.Now().UTC(),
			})
		},
	)
}
