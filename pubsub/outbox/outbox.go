// Package outbox routes domain events through a Postgres outbox table, so an
// event is published if and only if the transaction that produced it commits.
// A forwarder moves committed events from Postgres to Redis streams.
package outbox

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
)

const Topic = "events_to_forward"

// NewPublisherForTx returns a publisher bound to tx. Messages it publishes
// are wrapped in forwarder envelopes and land in the outbox table inside the
// same transaction as the caller's writes.
func NewPublisherForTx(tx *sqlx.Tx, logger watermill.LoggerAdapter) (message.Publisher, error) {
	// no AutoInitializeSchema here: watermill-sql rejects it on a tx handle,
	// InitializeSchema creates the tables up front instead
	sqlPublisher, err := sql.NewPublisher(
		tx,
		sql.PublisherConfig{
			SchemaAdapter: sql.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return forwarder.NewPublisher(sqlPublisher, forwarder.PublisherConfig{
		ForwarderTopic: Topic,
	}), nil
}

// InitializeSchema creates the outbox tables, so transaction-bound
// publishers can write before the forwarder has ever subscribed.
func InitializeSchema(db *sqlx.DB) error {
	subscriber, err := sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, watermill.NopLogger{})
	if err != nil {
		return err
	}
	defer subscriber.Close()

	return subscriber.SubscribeInitialize(Topic)
}

func NewPostgresSubscriber(db *sqlx.DB, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, logger)
}

// RunForwarder pumps committed outbox messages to the Redis publisher. Blocks
// until ctx is cancelled.
func RunForwarder(
	ctx context.Context,
	postgresSubscriber message.Subscriber,
	redisPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) error {
	fwd, err := forwarder.NewForwarder(postgresSubscriber, redisPublisher, logger, forwarder.Config{
		ForwarderTopic: Topic,
	})
	if err != nil {
		return err
	}

	return fwd.Run(ctx)
}
