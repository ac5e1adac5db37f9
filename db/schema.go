package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"coursebook/pubsub/outbox"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS course_sessions (
			session_id UUID PRIMARY KEY,
			course_id UUID NOT NULL,
			course_name TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			venue TEXT NOT NULL,
			max_participants INT NOT NULL CHECK (max_participants > 0),
			seats_reserved INT NOT NULL DEFAULT 0 CHECK (seats_reserved >= 0),
			seats_committed INT NOT NULL DEFAULT 0 CHECK (seats_committed >= 0),
			price_amount BIGINT NOT NULL,
			price_currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			CHECK (seats_reserved <= max_participants),
			CHECK (seats_committed <= seats_reserved)
		);

		CREATE TABLE IF NOT EXISTS bookings (
			booking_id UUID PRIMARY KEY,
			booking_reference TEXT NOT NULL UNIQUE,
			session_id UUID NOT NULL REFERENCES course_sessions (session_id),
			participants JSONB NOT NULL,
			number_of_participants INT NOT NULL CHECK (number_of_participants > 0),
			customer_email TEXT NOT NULL,
			total_amount BIGINT NOT NULL,
			discount_amount BIGINT NOT NULL DEFAULT 0,
			final_amount BIGINT NOT NULL CHECK (final_amount >= 0),
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			cancellation_reason TEXT NOT NULL DEFAULT '',
			payment_failed BOOLEAN NOT NULL DEFAULT FALSE,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			CHECK (final_amount = total_amount - discount_amount)
		);

		CREATE INDEX IF NOT EXISTS bookings_session_id_idx ON bookings (session_id);
		CREATE INDEX IF NOT EXISTS bookings_expiry_idx ON bookings (status, expires_at);

		CREATE TABLE IF NOT EXISTS payments (
			payment_id UUID PRIMARY KEY,
			booking_id UUID NOT NULL UNIQUE REFERENCES bookings (booking_id),
			gateway_reference TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			refunded_amount BIGINT NOT NULL DEFAULT 0 CHECK (refunded_amount <= amount),
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS refunds (
			refund_id UUID PRIMARY KEY,
			payment_id UUID NOT NULL REFERENCES payments (payment_id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			currency TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL,
			gateway_refund_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS webhook_events (
			external_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS reconciliation_reviews (
			review_id UUID PRIMARY KEY,
			external_id TEXT NOT NULL REFERENCES webhook_events (external_id),
			booking_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS certificates (
			certificate_id UUID PRIMARY KEY,
			booking_id UUID NOT NULL REFERENCES bookings (booking_id),
			participant_name TEXT NOT NULL,
			participant_email TEXT NOT NULL,
			certificate_number TEXT NOT NULL UNIQUE,
			issued_at TIMESTAMPTZ NOT NULL,
			valid_until TIMESTAMPTZ NOT NULL,
			UNIQUE (booking_id, participant_email)
		);

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMPTZ NOT NULL,
			event_name TEXT NOT NULL,
			event_payload JSONB NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}

	if err := outbox.InitializeSchema(db); err != nil {
		return fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	return nil
}
