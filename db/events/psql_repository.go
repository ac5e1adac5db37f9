// Package events keeps the append-only archive of every published domain
// event, for audit and replay.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"coursebook/entity"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return PostgresRepository{db: db}
}

func (r PostgresRepository) StoreEvent(ctx context.Context, event entity.ArchivedEvent) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`
			INSERT INTO
			    events (event_id, published_at, event_name, event_payload)
			VALUES
			    (:event_id, :published_at, :event_name, :event_payload)`,
		event,
	)
	var postgresError *pq.Error
	if errors.As(err, &postgresError) && postgresError.Code.Name() == "unique_violation" {
		// handling re-delivery
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not archive %s event: %w", event.ID, err)
	}

	return nil
}
