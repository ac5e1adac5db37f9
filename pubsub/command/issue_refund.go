package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/sirupsen/logrus"

	"coursebook/entity"
	"coursebook/gateway"
)

// IssueRefundHandler executes an already-approved refund at the gateway. The
// refund id doubles as the idempotency key, so redelivering the command can
// not pay out twice. A permanent gateway rejection marks the record rejected
// and is not retried; transient trouble bubbles up for redelivery.
func (h Handler) IssueRefundHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"IssueRefundHandler",
		func(ctx context.Context, command *entity.IssueRefund) error {
			logrus.WithFields(logrus.Fields{
				"booking_id": command.BookingID,
				"refund_id":  command.RefundID,
			}).Info("Issuing refund at the payment gateway")

			response, err := h.paymentsService.IssueRefund(ctx, gateway.IssueRefundRequest{
				GatewayReference: command.GatewayReference,
				Amount:           command.Amount,
				Currency:         command.Currency,
				IdempotencyKey:   command.RefundID,
			})

			var permanent gateway.PermanentError
			if errors.As(err, &permanent) {
				logrus.WithField("refund_id", command.RefundID).
					WithError(err).
					Error("Gateway rejected refund")
				return h.refundsRepo.SetRefundStatus(ctx, command.RefundID, entity.RefundRejected, "")
			}
			if err != nil {
				return fmt.Errorf("could not issue refund: %w", err)
			}

			return h.refundsRepo.SetRefundStatus(ctx, command.RefundID, entity.RefundApproved, response.GatewayRefundID)
		},
	)
}
