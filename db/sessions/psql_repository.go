// Package sessions is the capacity ledger: the authoritative count of
// reserved vs. available seats per course session. seats_reserved counts
// provisional plus committed seats; nothing else in the service mutates the
// counters.
package sessions

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

func (r *PostgresRepository) Store(ctx context.Context, session entity.CourseSession) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO course_sessions
			(session_id, course_id, course_name, start_time, end_time, venue,
			 max_participants, seats_reserved, seats_committed, price_amount, price_currency, status)
		VALUES
			(:session_id, :course_id, :course_name, :start_time, :end_time, :venue,
			 :max_participants, :seats_reserved, :seats_committed, :price_amount, :price_currency, :status)
		ON CONFLICT DO NOTHING -- ignore if already exists
	`, session)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, sessionID string) (entity.CourseSession, error) {
	var session entity.CourseSession
	err := r.db.GetContext(ctx, &session, `
		SELECT session_id, course_id, course_name, start_time, end_time, venue,
		       max_participants, seats_reserved, seats_committed, price_amount, price_currency, status
		FROM course_sessions
		WHERE session_id = $1
	`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.CourseSession{}, fmt.Errorf("session %s: %w", sessionID, entity.ErrNotFound)
	}

	return session, err
}

// Reserve provisionally holds seats. The capacity check and the increment
// are one conditional UPDATE, so two reservations that would jointly
// overflow the session can never both succeed.
func (r *PostgresRepository) Reserve(ctx context.Context, sessionID string, seats int) (entity.ReservationToken, error) {
	if err := ReserveSeats(ctx, r.db, sessionID, seats); err != nil {
		return entity.ReservationToken{}, err
	}

	return entity.ReservationToken{SessionID: sessionID, Seats: seats}, nil
}

// Commit makes a provisional reservation permanent once payment is captured.
func (r *PostgresRepository) Commit(ctx context.Context, token entity.ReservationToken) error {
	return CommitSeats(ctx, r.db, token.SessionID, token.Seats)
}

// Release returns provisional seats to the pool. The decrement is visible to
// the next Reserve immediately.
func (r *PostgresRepository) Release(ctx context.Context, token entity.ReservationToken) error {
	return ReleaseSeats(ctx, r.db, token.SessionID, token.Seats, false)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, sessionID string, status entity.SessionStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE course_sessions SET status = $2 WHERE session_id = $1
	`, sessionID, status)
	if err != nil {
		return fmt.Errorf("could not update session status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("session %s: %w", sessionID, entity.ErrNotFound)
	}

	return nil
}

// ReserveSeats is the tx-composable core of Reserve.
func ReserveSeats(ctx context.Context, ex sqlx.ExtContext, sessionID string, seats int) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE course_sessions
		SET seats_reserved = seats_reserved + $2
		WHERE session_id = $1
		  AND seats_reserved + $2 <= max_participants
	`, sessionID, seats)
	if err != nil {
		return fmt.Errorf("could not reserve seats: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := sqlx.GetContext(ctx, ex, &exists,
			`SELECT EXISTS (SELECT 1 FROM course_sessions WHERE session_id = $1)`, sessionID); err != nil {
			return fmt.Errorf("could not check session existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("session %s: %w", sessionID, entity.ErrNotFound)
		}
		return entity.ErrSessionFull
	}

	return nil
}

func CommitSeats(ctx context.Context, ex sqlx.ExtContext, sessionID string, seats int) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE course_sessions
		SET seats_committed = seats_committed + $2
		WHERE session_id = $1
		  AND seats_committed + $2 <= seats_reserved
	`, sessionID, seats)
	if err != nil {
		return fmt.Errorf("could not commit seats: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("could not commit %d seats for session %s, no matching reservation: %w",
			seats, sessionID, entity.ErrSessionFull)
	}

	return nil
}

// ReleaseSeats returns seats to the pool. releaseCommitted is set when the
// seats were already committed (paid booking being cancelled), so both
// counters move together.
func ReleaseSeats(ctx context.Context, ex sqlx.ExtContext, sessionID string, seats int, releaseCommitted bool) error {
	var (
		res sql.Result
		err error
	)
	if releaseCommitted {
		res, err = ex.ExecContext(ctx, `
			UPDATE course_sessions
			SET seats_reserved = seats_reserved - $2,
			    seats_committed = seats_committed - $2
			WHERE session_id = $1
			  AND seats_committed >= $2
		`, sessionID, seats)
	} else {
		res, err = ex.ExecContext(ctx, `
			UPDATE course_sessions
			SET seats_reserved = seats_reserved - $2
			WHERE session_id = $1
			  AND seats_reserved - $2 >= seats_committed
		`, sessionID, seats)
	}
	if err != nil {
		return fmt.Errorf("could not release seats: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("could not release %d seats for session %s: counters out of sync", seats, sessionID)
	}

	return nil
}
