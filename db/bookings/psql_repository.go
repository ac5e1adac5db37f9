package bookings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"coursebook/db/sessions"
	"coursebook/entity"
	"coursebook/pubsub/bus"
	"coursebook/pubsub/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
)

type PostgresRepository struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewPostgresRepository(db *sqlx.DB, logger watermill.LoggerAdapter) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// Store reserves seats and creates the pending booking as one transaction:
// either the seats are held and BookingMade is in the outbox, or nothing
// happened. The capacity check itself is the ledger's conditional update.
func (r *PostgresRepository) Store(ctx context.Context, booking entity.Booking) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
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

	if err := sessions.ReserveSeats(ctx, tx, booking.SessionID, booking.NumberOfParticipants); err != nil {
		return err
	}

	row, err := toRow(booking)
	if err != nil {
		return err
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO bookings
			(booking_id, booking_reference, session_id, participants, number_of_participants,
			 customer_email, total_amount, discount_amount, final_amount, currency, status,
			 cancellation_reason, payment_failed, version, created_at, expires_at)
		VALUES
			(:booking_id, :booking_reference, :session_id, :participants, :number_of_participants,
			 :customer_email, :total_amount, :discount_amount, :final_amount, :currency, :status,
			 :cancellation_reason, :payment_failed, :version, :created_at, :expires_at)
	`, row)
	if err != nil {
		return fmt.Errorf("could not add booking: %w", err)
	}

	eventBus, err := outboxEventBus(tx, r.logger)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.BookingMade{
		Header:               entity.NewEventHeader(),
		BookingID:            booking.BookingID,
		BookingReference:     booking.BookingReference,
		SessionID:            booking.SessionID,
		NumberOfParticipants: booking.NumberOfParticipants,
		CustomerEmail:        booking.CustomerEmail,
		FinalAmount:          booking.FinalAmount,
		Currency:             booking.Currency,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	return getBooking(ctx, r.db, bookingID)
}

// Transition performs one optimistic status check-and-set. Exactly one of
// two concurrent attempts from the same prior status can succeed.
func (r *PostgresRepository) Transition(ctx context.Context, bookingID string, from, to entity.BookingStatus) error {
	return TransitionStatus(ctx, r.db, bookingID, from, to)
}

// Cancel transitions the booking to cancelled, records the reason and
// returns the seats to the pool, all in one transaction. Seats of a paid
// booking were already committed, so both ledger counters move.
func (r *PostgresRepository) Cancel(ctx context.Context, booking entity.Booking, reason string, refundAmount int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
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

	if err := TransitionStatus(ctx, tx, booking.BookingID, booking.Status, entity.BookingCancelled); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET cancellation_reason = $2 WHERE booking_id = $1
	`, booking.BookingID, reason)
	if err != nil {
		return fmt.Errorf("could not record cancellation reason: %w", err)
	}

	// a pending booking whose charge failed has no seats left to return,
	// the failure handler already released them
	holdsSeats := !(booking.Status == entity.BookingPending && booking.PaymentFailed)
	if holdsSeats {
		releaseCommitted := booking.Status == entity.BookingPaid
		if err := sessions.ReleaseSeats(ctx, tx, booking.SessionID, booking.NumberOfParticipants, releaseCommitted); err != nil {
			return err
		}
	}

	eventBus, err := outboxEventBus(tx, r.logger)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.CourseBookingCancelled{
		Header:       entity.NewEventHeader(),
		BookingID:    booking.BookingID,
		SessionID:    booking.SessionID,
		Reason:       reason,
		RefundAmount: refundAmount,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

// FindExpired returns pending bookings whose payment window has lapsed.
func (r *PostgresRepository) FindExpired(ctx context.Context, now time.Time) ([]entity.Booking, error) {
	var rows []bookingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT booking_id, booking_reference, session_id, participants, number_of_participants,
		       customer_email, total_amount, discount_amount, final_amount, currency, status,
		       cancellation_reason, payment_failed, version, created_at, expires_at
		FROM bookings
		WHERE status = $1 AND expires_at < $2
		LIMIT 100
	`, entity.BookingPending, now)
	if err != nil {
		return nil, fmt.Errorf("could not find expired bookings: %w", err)
	}

	bookings := make([]entity.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

// Expire cancels an abandoned pending booking and frees its seats. If the
// booking moved on in the meantime (payment confirmed during the sweep),
// the check-and-set loses and the booking is left alone.
func (r *PostgresRepository) Expire(ctx context.Context, booking entity.Booking) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
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

	if err := TransitionStatus(ctx, tx, booking.BookingID, entity.BookingPending, entity.BookingCancelled); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET cancellation_reason = 'expired' WHERE booking_id = $1
	`, booking.BookingID)
	if err != nil {
		return fmt.Errorf("could not record expiry reason: %w", err)
	}

	if !booking.PaymentFailed {
		if err := sessions.ReleaseSeats(ctx, tx, booking.SessionID, booking.NumberOfParticipants, false); err != nil {
			return err
		}
	}

	eventBus, err := outboxEventBus(tx, r.logger)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.BookingExpired{
		Header:               entity.NewEventHeader(),
		BookingID:            booking.BookingID,
		SessionID:            booking.SessionID,
		NumberOfParticipants: booking.NumberOfParticipants,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

// CompleteSession marks the session delivered: attended bookings become
// completed (certificate eligible), confirmed or paid bookings that never
// showed up become no-shows. Seat counters are left untouched.
func (r *PostgresRepository) CompleteSession(ctx context.Context, sessionID string) (completed []entity.Booking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
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

	res, err := tx.ExecContext(ctx, `
		UPDATE course_sessions SET status = $2
		WHERE session_id = $1 AND status NOT IN ($3, $2)
	`, sessionID, entity.SessionCompleted, entity.SessionCancelled)
	if err != nil {
		return nil, fmt.Errorf("could not complete session: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("session %s is not completable: %w", sessionID, entity.ErrInvalidTransition)
	}

	var rows []bookingRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT booking_id, booking_reference, session_id, participants, number_of_participants,
		       customer_email, total_amount, discount_amount, final_amount, currency, status,
		       cancellation_reason, payment_failed, version, created_at, expires_at
		FROM bookings
		WHERE session_id = $1 AND status IN ($2, $3, $4)
	`, sessionID, entity.BookingAttended, entity.BookingConfirmed, entity.BookingPaid)
	if err != nil {
		return nil, fmt.Errorf("could not list session bookings: %w", err)
	}

	eventBus, err := outboxEventBus(tx, r.logger)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		booking, err := fromRow(row)
		if err != nil {
			return nil, err
		}

		switch booking.Status {
		case entity.BookingAttended:
			if err := TransitionStatus(ctx, tx, booking.BookingID, entity.BookingAttended, entity.BookingCompleted); err != nil {
				return nil, err
			}
			err = eventBus.Publish(ctx, entity.CourseBookingCompleted{
				Header:    entity.NewEventHeader(),
				BookingID: booking.BookingID,
				SessionID: sessionID,
			})
			if err != nil {
				return nil, fmt.Errorf("could not publish event: %w", err)
			}
			booking.Status = entity.BookingCompleted
			completed = append(completed, booking)
		default:
			if err := TransitionStatus(ctx, tx, booking.BookingID, booking.Status, entity.BookingNoShow); err != nil {
				return nil, err
			}
		}
	}

	return completed, nil
}

// TransitionStatus is the tx-composable optimistic check-and-set. A lost
// race surfaces ErrConcurrentModification; a target the table does not allow
// surfaces ErrInvalidTransition; an already-reached target is a no-op.
func TransitionStatus(ctx context.Context, ex sqlx.ExtContext, bookingID string, from, to entity.BookingStatus) error {
	if !entity.CanTransition(from, to) {
		return fmt.Errorf("booking %s: %s -> %s: %w", bookingID, from, to, entity.ErrInvalidTransition)
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE bookings SET status = $3, version = version + 1
		WHERE booking_id = $1 AND status = $2
	`, bookingID, from, to)
	if err != nil {
		return fmt.Errorf("could not update booking status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var current entity.BookingStatus
	err = sqlx.GetContext(ctx, ex, &current, `SELECT status FROM bookings WHERE booking_id = $1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not read booking status: %w", err)
	}

	if current == to {
		return nil
	}
	if entity.CanTransition(current, to) {
		return fmt.Errorf("booking %s: expected %s, found %s: %w", bookingID, from, current, entity.ErrConcurrentModification)
	}

	return fmt.Errorf("booking %s: %s -> %s: %w", bookingID, current, to, entity.ErrInvalidTransition)
}

// MarkPaymentFailed flags a pending booking whose charge failed. The booking
// stays pending so the customer may retry payment; its seats were already
// released.
func MarkPaymentFailed(ctx context.Context, ex sqlx.ExtContext, bookingID string) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE bookings SET payment_failed = TRUE, version = version + 1
		WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return fmt.Errorf("could not flag failed payment: %w", err)
	}
	return nil
}

// GetForUpdate loads a booking through the given executor.
func GetForUpdate(ctx context.Context, ex sqlx.ExtContext, bookingID string) (entity.Booking, error) {
	return getBooking(ctx, ex, bookingID)
}

func getBooking(ctx context.Context, ex sqlx.ExtContext, bookingID string) (entity.Booking, error) {
	var row bookingRow
	err := sqlx.GetContext(ctx, ex, &row, `
		SELECT booking_id, booking_reference, session_id, participants, number_of_participants,
		       customer_email, total_amount, discount_amount, final_amount, currency, status,
		       cancellation_reason, payment_failed, version, created_at, expires_at
		FROM bookings
		WHERE booking_id = $1
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking: %w", err)
	}

	return fromRow(row)
}

func outboxEventBus(tx *sqlx.Tx, logger watermill.LoggerAdapter) (*cqrs.EventBus, error) {
	outboxPublisher, err := outbox.NewPublisherForTx(tx, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create outbox publisher: %w", err)
	}

	return bus.NewEventBus(outboxPublisher)
}

type bookingRow struct {
	BookingID            string               `db:"booking_id"`
	BookingReference     string               `db:"booking_reference"`
	SessionID            string               `db:"session_id"`
	Participants         []byte               `db:"participants"`
	NumberOfParticipants int                  `db:"number_of_participants"`
	CustomerEmail        string               `db:"customer_email"`
	TotalAmount          int64                `db:"total_amount"`
	DiscountAmount       int64                `db:"discount_amount"`
	FinalAmount          int64                `db:"final_amount"`
	Currency             string               `db:"currency"`
	Status               entity.BookingStatus `db:"status"`
	CancellationReason   string               `db:"cancellation_reason"`
	PaymentFailed        bool                 `db:"payment_failed"`
	Version              int                  `db:"version"`
	CreatedAt            time.Time            `db:"created_at"`
	ExpiresAt            time.Time            `db:"expires_at"`
}

func toRow(booking entity.Booking) (bookingRow, error) {
	participants, err := json.Marshal(booking.Participants)
	if err != nil {
		return bookingRow{}, fmt.Errorf("could not marshal participants: %w", err)
	}

	return bookingRow{
		BookingID:            booking.BookingID,
		BookingReference:     booking.BookingReference,
		SessionID:            booking.SessionID,
		Participants:         participants,
		NumberOfParticipants: booking.NumberOfParticipants,
		CustomerEmail:        booking.CustomerEmail,
		TotalAmount:          booking.TotalAmount,
		DiscountAmount:       booking.DiscountAmount,
		FinalAmount:          booking.FinalAmount,
		Currency:             booking.Currency,
		Status:               booking.Status,
		CancellationReason:   booking.CancellationReason,
		PaymentFailed:        booking.PaymentFailed,
		Version:              booking.Version,
		CreatedAt:            booking.CreatedAt,
		ExpiresAt:            booking.ExpiresAt,
	}, nil
}

func fromRow(row bookingRow) (entity.Booking, error) {
	var participants []entity.Participant
	if err := json.Unmarshal(row.Participants, &participants); err != nil {
		return entity.Booking{}, fmt.Errorf("could not unmarshal participants: %w", err)
	}

	return entity.Booking{
		BookingID:            row.BookingID,
		BookingReference:     row.BookingReference,
		SessionID:            row.SessionID,
		Participants:         participants,
		NumberOfParticipants: row.NumberOfParticipants,
		CustomerEmail:        row.CustomerEmail,
		TotalAmount:          row.TotalAmount,
		DiscountAmount:       row.DiscountAmount,
		FinalAmount:          row.FinalAmount,
		Currency:             row.Currency,
		Status:               row.Status,
		CancellationReason:   row.CancellationReason,
		PaymentFailed:        row.PaymentFailed,
		Version:              row.Version,
		CreatedAt:            row.CreatedAt,
		ExpiresAt:            row.ExpiresAt,
	}, nil
}
