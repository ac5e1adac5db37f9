package certificates

import (
	"context"
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

// Store is idempotent per booking and participant, so a redelivered
// BookingCompleted event never issues a second certificate. Returns whether
// a new certificate was created.
func (r *PostgresRepository) Store(ctx context.Context, certificate entity.Certificate) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO certificates
			(certificate_id, booking_id, participant_name, participant_email,
			 certificate_number, issued_at, valid_until)
		VALUES
			(:certificate_id, :booking_id, :participant_name, :participant_email,
			 :certificate_number, :issued_at, :valid_until)
		ON CONFLICT (booking_id, participant_email) DO NOTHING
	`, certificate)
	if err != nil {
		return false, fmt.Errorf("could not store certificate: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *PostgresRepository) FindByBooking(ctx context.Context, bookingID string) ([]entity.Certificate, error) {
	var certificates []entity.Certificate
	err := r.db.SelectContext(ctx, &certificates, `
		SELECT certificate_id, booking_id, participant_name, participant_email,
		       certificate_number, issued_at, valid_until
		FROM certificates
		WHERE booking_id = $1
		ORDER BY participant_email
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("could not list certificates: %w", err)
	}

	return certificates, nil
}
