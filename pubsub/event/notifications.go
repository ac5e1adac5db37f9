package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/sirupsen/logrus"

	"coursebook/entity"
)

func (h Handler) SendBookingConfirmationHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"SendBookingConfirmationHandler",
		func(ctx context.Context, event *entity.BookingMade) error {
			logrus.WithField("booking_id", event.BookingID).Info("Sending booking confirmation")
			return h.notificationsService.Send(ctx, event.BookingID, "booking_confirmation_pending")
		},
	)
}

func (h Handler) SendPaymentReceivedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"SendPaymentReceivedHandler",
		func(ctx context.Context, event *entity.PaymentCaptured) error {
			logrus.WithField("booking_id", event.BookingID).Info("Sending payment confirmation")
			return h.notificationsService.Send(ctx, event.BookingID, "booking_paid")
		},
	)
}

func (h Handler) SendCancellationHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"SendCancellationHandler",
		func(ctx context.Context, event *entity.CourseBookingCancelled) error {
			logrus.WithField("booking_id", event.BookingID).Info("Sending cancellation notice")
			return h.notificationsService.Send(ctx, event.BookingID, "booking_cancelled")
		},
	)
}
