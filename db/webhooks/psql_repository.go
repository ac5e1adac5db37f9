// Package webhooks is the reconciliation ledger: an append-only record of
// payment-gateway events, each applied to booking state at most once.
package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"coursebook/db/bookings"
	"coursebook/db/payments"
	"coursebook/db/sessions"
	"coursebook/entity"
	"coursebook/pubsub/bus"
	"coursebook/pubsub/outbox"
)

type ApplyResult string

const (
	// Applied: first delivery, booking state updated.
	Applied ApplyResult = "applied"
	// AlreadyApplied: redelivery of a recorded event, no side effects.
	AlreadyApplied ApplyResult = "already_applied"
	// Rejected: event recorded but it could not be matched to a valid
	// transition; queued for manual review instead of being dropped.
	Rejected ApplyResult = "rejected"
)

type Ledger struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewLedger(db *sqlx.DB, logger watermill.LoggerAdapter) *Ledger {
	if db == nil {
		panic("db is nil")
	}

	return &Ledger{db: db, logger: logger}
}

// Apply records the event and performs the matching booking transition as
// one transaction. The external event id is the idempotency key: a conflict
// on insert means the event was seen before and nothing further happens.
// Business-invalid events (e.g. a capture for a cancelled booking) are still
// committed as applied, with a review row, so the gateway stops redelivering
// them. Storage errors roll the whole unit back to trigger redelivery.
func (l *Ledger) Apply(ctx context.Context, event entity.GatewayEvent) (result ApplyResult, err error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_events (external_id, event_type, payload, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (external_id) DO NOTHING
	`, event.ExternalID, string(event.Type), event.RawPayload, now)
	if err != nil {
		return "", fmt.Errorf("could not record webhook event: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return AlreadyApplied, nil
	}

	// the business application runs inside a savepoint so a rejected event
	// leaves no partial mutations behind while the ledger entry itself
	// still commits
	if _, err = tx.ExecContext(ctx, `SAVEPOINT apply_event`); err != nil {
		return "", fmt.Errorf("could not create savepoint: %w", err)
	}

	applyErr := l.applyEvent(ctx, tx, event)
	if applyErr == nil {
		return Applied, nil
	}

	if isBusinessRejection(applyErr) {
		if _, err = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT apply_event`); err != nil {
			return "", fmt.Errorf("could not roll back savepoint: %w", err)
		}
		if err := l.recordReview(ctx, tx, event, applyErr); err != nil {
			return "", err
		}
		return Rejected, nil
	}

	// transient failure: roll back so the gateway redelivers
	err = applyErr
	return "", err
}

func (l *Ledger) applyEvent(ctx context.Context, tx *sqlx.Tx, event entity.GatewayEvent) error {
	switch event.Type {
	case entity.GatewayEventChargeAuthorized:
		return l.applyChargeAuthorized(ctx, tx, event)
	case entity.GatewayEventChargeCaptured:
		return l.applyChargeCaptured(ctx, tx, event)
	case entity.GatewayEventChargeFailed:
		return l.applyChargeFailed(ctx, tx, event)
	case entity.GatewayEventRefundProcessed:
		return l.applyRefundProcessed(ctx, tx, event)
	default:
		logrus.WithField("external_id", event.ExternalID).
			Warn("Recorded gateway event of unknown type")
		return nil
	}
}

func (l *Ledger) applyChargeAuthorized(ctx context.Context, tx *sqlx.Tx, event entity.GatewayEvent) error {
	if err := bookings.TransitionStatus(ctx, tx, event.BookingID, entity.BookingPending, entity.BookingConfirmed); err != nil {
		return err
	}

	payment, err := payments.GetByBooking(ctx, tx, event.BookingID)
	if err != nil {
		return err
	}
	if err := payments.SetStatus(ctx, tx, payment.PaymentID, entity.PaymentAuthorizedStatus); err != nil {
		return err
	}

	return l.publish(ctx, tx, event, entity.PaymentAuthorized{
		Header:           entity.NewEventHeaderWithIdempotencyKey(event.ExternalID),
		BookingID:        event.BookingID,
		GatewayReference: event.GatewayReference,
	})
}

func (l *Ledger) applyChargeCaptured(ctx context.Context, tx *sqlx.Tx, event entity.GatewayEvent) error {
	booking, err := bookings.GetForUpdate(ctx, tx, event.BookingID)
	if err != nil {
		return err
	}

	// seats of a payment-failed booking were already handed back; a late
	// capture cannot reclaim them, so the event goes to manual review
	if booking.PaymentFailed {
		return fmt.Errorf("charge captured for booking %s after a failed charge released its seats: %w",
			booking.BookingID, entity.ErrSessionFull)
	}

	// the gateway may deliver capture before authorization; a capture
	// implies authorization, so both legs are applied here
	if booking.Status == entity.BookingPending {
		if err := bookings.TransitionStatus(ctx, tx, booking.BookingID, entity.BookingPending, entity.BookingConfirmed); err != nil {
			return err
		}
		booking.Status = entity.BookingConfirmed
	}

	if err := bookings.TransitionStatus(ctx, tx, booking.BookingID, booking.Status, entity.BookingPaid); err != nil {
		return err
	}

	if err := sessions.CommitSeats(ctx, tx, booking.SessionID, booking.NumberOfParticipants); err != nil {
		return err
	}

	payment, err := payments.GetByBooking(ctx, tx, booking.BookingID)
	if err != nil {
		return err
	}
	if err := payments.SetStatus(ctx, tx, payment.PaymentID, entity.PaymentCapturedStatus); err != nil {
		return err
	}

	return l.publish(ctx, tx, event, entity.PaymentCaptured{
		Header:           entity.NewEventHeaderWithIdempotencyKey(event.ExternalID),
		BookingID:        booking.BookingID,
		GatewayReference: event.GatewayReference,
		Amount:           event.Amount,
		Currency:         event.Currency,
	})
}

func (l *Ledger) applyChargeFailed(ctx context.Context, tx *sqlx.Tx, event entity.GatewayEvent) error {
	booking, err := bookings.GetForUpdate(ctx, tx, event.BookingID)
	if err != nil {
		return err
	}

	if booking.Status != entity.BookingPending {
		return fmt.Errorf("charge failed for booking %s in status %s: %w",
			booking.BookingID, booking.Status, entity.ErrInvalidTransition)
	}

	// seats are released once even if further attempts fail
	if !booking.PaymentFailed {
		if err := sessions.ReleaseSeats(ctx, tx, booking.SessionID, booking.NumberOfParticipants, false); err != nil {
			return err
		}
	}

	if err := bookings.MarkPaymentFailed(ctx, tx, booking.BookingID); err != nil {
		return err
	}

	payment, err := payments.GetByBooking(ctx, tx, booking.BookingID)
	if err != nil {
		return err
	}
	if err := payments.SetStatus(ctx, tx, payment.PaymentID, entity.PaymentFailedStatus); err != nil {
		return err
	}

	return l.publish(ctx, tx, event, entity.PaymentFailed{
		Header:    entity.NewEventHeaderWithIdempotencyKey(event.ExternalID),
		BookingID: booking.BookingID,
		Reason:    event.FailureReason,
	})
}

func (l *Ledger) applyRefundProcessed(ctx context.Context, tx *sqlx.Tx, event entity.GatewayEvent) error {
	refund, err := payments.MarkRefundProcessed(ctx, tx, event.GatewayRefundID)
	if err != nil {
		return err
	}

	if err := payments.RegisterRefund(ctx, tx, refund.PaymentID, refund.Amount); err != nil {
		return err
	}

	return l.publish(ctx, tx, event, entity.RefundProcessed{
		Header:    entity.NewEventHeaderWithIdempotencyKey(event.ExternalID),
		BookingID: event.BookingID,
		PaymentID: refund.PaymentID,
		RefundID:  refund.RefundID,
		Amount:    refund.Amount,
		Currency:  refund.Currency,
	})
}

func (l *Ledger) publish(ctx context.Context, tx *sqlx.Tx, gatewayEvent entity.GatewayEvent, domainEvent any) error {
	outboxPublisher, err := outbox.NewPublisherForTx(tx, l.logger)
	if err != nil {
		return fmt.Errorf("could not create outbox publisher: %w", err)
	}

	eventBus, err := bus.NewEventBus(outboxPublisher)
	if err != nil {
		return err
	}

	if err := eventBus.Publish(ctx, domainEvent); err != nil {
		return fmt.Errorf("could not publish follow-up for %s: %w", gatewayEvent.ExternalID, err)
	}

	return nil
}

func (l *Ledger) recordReview(ctx context.Context, tx *sqlx.Tx, event entity.GatewayEvent, cause error) error {
	logrus.WithFields(logrus.Fields{
		"external_id": event.ExternalID,
		"booking_id":  event.BookingID,
	}).WithError(cause).Error("Gateway event could not be applied, queued for review")

	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliation_reviews (review_id, external_id, booking_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), event.ExternalID, event.BookingID, cause.Error(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("could not record reconciliation review: %w", err)
	}

	return nil
}

// ListReviews returns the manual-review queue, newest first.
func (l *Ledger) ListReviews(ctx context.Context) ([]entity.ReconciliationReview, error) {
	var reviews []entity.ReconciliationReview
	err := l.db.SelectContext(ctx, &reviews, `
		SELECT review_id, external_id, booking_id, reason, created_at
		FROM reconciliation_reviews
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("could not list reviews: %w", err)
	}

	return reviews, nil
}

// isBusinessRejection separates "this event can never apply" from transient
// storage trouble. Only the former is committed with a review entry.
func isBusinessRejection(err error) bool {
	return errors.Is(err, entity.ErrInvalidTransition) ||
		errors.Is(err, entity.ErrNotFound) ||
		errors.Is(err, entity.ErrSessionFull) ||
		errors.Is(err, entity.ErrRefundExceedsCaptured)
}
