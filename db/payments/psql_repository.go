package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"coursebook/entity"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Store records the charge opened at the gateway. A booking has at most one
// payment record; a redelivered BookingMade event hits the conflict clause
// and changes nothing.
func (r *PostgresRepository) Store(ctx context.Context, payment entity.PaymentRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO payments
			(payment_id, booking_id, gateway_reference, amount, currency, status, refunded_amount, created_at)
		VALUES
			(:payment_id, :booking_id, :gateway_reference, :amount, :currency, :status, :refunded_amount, :created_at)
		ON CONFLICT (booking_id) DO NOTHING
	`, payment)
	if err != nil {
		return fmt.Errorf("could not store payment: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByBooking(ctx context.Context, bookingID string) (entity.PaymentRecord, error) {
	return GetByBooking(ctx, r.db, bookingID)
}

func (r *PostgresRepository) StoreRefund(ctx context.Context, refund entity.RefundRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO refunds
			(refund_id, payment_id, amount, currency, reason, status, gateway_refund_id, created_at)
		VALUES
			(:refund_id, :payment_id, :amount, :currency, :reason, :status, :gateway_refund_id, :created_at)
		ON CONFLICT DO NOTHING
	`, refund)
	if err != nil {
		return fmt.Errorf("could not store refund: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetRefundStatus(ctx context.Context, refundID string, status entity.RefundStatus, gatewayRefundID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refunds SET status = $2, gateway_refund_id = COALESCE(NULLIF($3, ''), gateway_refund_id)
		WHERE refund_id = $1
	`, refundID, status, gatewayRefundID)
	if err != nil {
		return fmt.Errorf("could not update refund: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("refund %s: %w", refundID, entity.ErrNotFound)
	}

	return nil
}

func (r *PostgresRepository) ListRefunds(ctx context.Context, paymentID string) ([]entity.RefundRecord, error) {
	var refunds []entity.RefundRecord
	err := r.db.SelectContext(ctx, &refunds, `
		SELECT refund_id, payment_id, amount, currency, reason, status, gateway_refund_id, created_at
		FROM refunds
		WHERE payment_id = $1
		ORDER BY created_at
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("could not list refunds: %w", err)
	}

	return refunds, nil
}

func GetByBooking(ctx context.Context, ex sqlx.ExtContext, bookingID string) (entity.PaymentRecord, error) {
	var payment entity.PaymentRecord
	err := sqlx.GetContext(ctx, ex, &payment, `
		SELECT payment_id, booking_id, gateway_reference, amount, currency, status, refunded_amount, created_at
		FROM payments
		WHERE booking_id = $1
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.PaymentRecord{}, fmt.Errorf("payment for booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.PaymentRecord{}, fmt.Errorf("could not get payment: %w", err)
	}

	return payment, nil
}

func SetStatus(ctx context.Context, ex sqlx.ExtContext, paymentID string, status entity.PaymentStatus) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE payments SET status = $2 WHERE payment_id = $1
	`, paymentID, status)
	if err != nil {
		return fmt.Errorf("could not update payment status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("payment %s: %w", paymentID, entity.ErrNotFound)
	}

	return nil
}

// RegisterRefund adds a processed refund to the payment's running total. The
// cumulative bound check and the increment are one conditional update, so the
// sum of processed refunds can never exceed the captured amount.
func RegisterRefund(ctx context.Context, ex sqlx.ExtContext, paymentID string, amount int64) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE payments
		SET refunded_amount = refunded_amount + $2,
		    status = CASE WHEN refunded_amount + $2 >= amount THEN 'refunded' ELSE 'partially_refunded' END
		WHERE payment_id = $1
		  AND refunded_amount + $2 <= amount
	`, paymentID, amount)
	if err != nil {
		return fmt.Errorf("could not register refund: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("payment %s: refund of %d: %w", paymentID, amount, entity.ErrRefundExceedsCaptured)
	}

	return nil
}

// MarkRefundProcessed finalizes the refund record matching a gateway refund
// id and returns it.
func MarkRefundProcessed(ctx context.Context, ex sqlx.ExtContext, gatewayRefundID string) (entity.RefundRecord, error) {
	var refund entity.RefundRecord
	err := sqlx.GetContext(ctx, ex, &refund, `
		UPDATE refunds SET status = $2
		WHERE gateway_refund_id = $1
		RETURNING refund_id, payment_id, amount, currency, reason, status, gateway_refund_id, created_at
	`, gatewayRefundID, entity.RefundProcessedStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.RefundRecord{}, fmt.Errorf("refund with gateway id %s: %w", gatewayRefundID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.RefundRecord{}, fmt.Errorf("could not finalize refund: %w", err)
	}

	return refund, nil
}
