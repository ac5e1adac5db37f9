package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"coursebook/entity"
	"coursebook/metrics"
	"coursebook/refund"
)

type cancelBookingResponse struct {
	BookingID    string               `json:"booking_id"`
	Status       entity.BookingStatus `json:"status"`
	RefundAmount int64                `json:"refund_amount"`
	FeeRetained  int64                `json:"fee_retained"`
	Reason       refund.ReasonCode    `json:"reason,omitempty"`
}

// PostBookingCancel cancels a booking. Calling it for an already cancelled
// booking returns the current state, so clients may retry freely.
func (s Server) PostBookingCancel(c echo.Context) error {
	ctx := c.Request().Context()
	now := time.Now().UTC()

	booking, err := s.bookingsRepo.Get(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	if booking.Status == entity.BookingCancelled {
		return c.JSON(http.StatusOK, cancelBookingResponse{
			BookingID: booking.BookingID,
			Status:    booking.Status,
		})
	}
	if !entity.CanTransition(booking.Status, entity.BookingCancelled) {
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("booking in status %s cannot be cancelled", booking.Status))
	}

	session, err := s.sessionsRepo.Get(ctx, booking.SessionID)
	if err != nil {
		return httpError(err)
	}

	computation, payment, err := s.cancellationRefund(ctx, booking, session, now)
	if err != nil {
		return httpError(err)
	}

	err = s.bookingsRepo.Cancel(ctx, booking, "customer_request", computation.EligibleAmount)
	if errors.Is(err, entity.ErrConcurrentModification) {
		// one concurrent status change is re-read and retried; a second
		// loss surfaces the conflict
		booking, err = s.bookingsRepo.Get(ctx, booking.BookingID)
		if err != nil {
			return httpError(err)
		}
		if booking.Status == entity.BookingCancelled {
			return c.JSON(http.StatusOK, cancelBookingResponse{
				BookingID: booking.BookingID,
				Status:    booking.Status,
			})
		}

		// the lost race may have been the payment capture; the refund is
		// owed against the booking's current state, not the first read
		computation, payment, err = s.cancellationRefund(ctx, booking, session, now)
		if err != nil {
			return httpError(err)
		}

		err = s.bookingsRepo.Cancel(ctx, booking, "customer_request", computation.EligibleAmount)
	}
	if err != nil {
		return httpError(err)
	}

	if computation.EligibleAmount > 0 {
		refundRecord := entity.RefundRecord{
			RefundID:  uuid.NewString(),
			PaymentID: payment.PaymentID,
			Amount:    computation.EligibleAmount,
			Currency:  payment.Currency,
			Reason:    string(computation.Reason),
			Status:    entity.RefundRequested,
			CreatedAt: now,
		}
		if err := s.paymentsRepo.StoreRefund(ctx, refundRecord); err != nil {
			return err
		}

		err = s.commandBus.Send(ctx, entity.IssueRefund{
			Header:           entity.NewEventHeaderWithIdempotencyKey(refundRecord.RefundID),
			BookingID:        booking.BookingID,
			PaymentID:        payment.PaymentID,
			RefundID:         refundRecord.RefundID,
			GatewayReference: payment.GatewayReference,
			Amount:           refundRecord.Amount,
			Currency:         refundRecord.Currency,
		})
		if err != nil {
			return fmt.Errorf("could not send refund command: %w", err)
		}

		metrics.RefundsIssued.Inc()
	}

	return c.JSON(http.StatusOK, cancelBookingResponse{
		BookingID:    booking.BookingID,
		Status:       entity.BookingCancelled,
		RefundAmount: computation.EligibleAmount,
		FeeRetained:  computation.FeeRetained,
		Reason:       computation.Reason,
	})
}

// cancellationRefund computes what a cancellation owes the customer. Only a
// paid booking is refundable; everything else cancels for free.
func (s Server) cancellationRefund(
	ctx context.Context,
	booking entity.Booking,
	session entity.CourseSession,
	now time.Time,
) (refund.Computation, entity.PaymentRecord, error) {
	if booking.Status != entity.BookingPaid {
		return refund.Computation{}, entity.PaymentRecord{}, nil
	}

	payment, err := s.paymentsRepo.GetByBooking(ctx, booking.BookingID)
	if err != nil {
		return refund.Computation{}, entity.PaymentRecord{}, err
	}

	return refund.Compute(s.config.RefundPolicy, payment.Amount, session.StartTime, now), payment, nil
}
