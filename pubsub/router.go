package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"coursebook/entity"
	"coursebook/pubsub/command"
	"coursebook/pubsub/event"
)

type EventsArchive interface {
	StoreEvent(ctx context.Context, event entity.ArchivedEvent) error
}

// NewWatermillRouter hosts all asynchronous processing: the event and
// command processors, the splitter that fans the shared "events" stream out
// into per-event topics, and the archive writer.
func NewWatermillRouter(
	redisClient *redis.Client,
	redisPublisher message.Publisher,
	eventProcessorConfig cqrs.EventProcessorConfig,
	eventsHandler event.Handler,
	commandProcessorConfig cqrs.CommandProcessorConfig,
	commandsHandler command.Handler,
	eventsArchive EventsArchive,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router, watermillLogger)

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}

	err = eventProcessor.AddHandlers(
		eventsHandler.CreateChargeHandler(),
		eventsHandler.SendBookingConfirmationHandler(),
		eventsHandler.SendPaymentReceivedHandler(),
		eventsHandler.SendCancellationHandler(),
		eventsHandler.IssueCertificatesHandler(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
	}

	commandProcessor, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create command processor: %w", err)
	}

	err = commandProcessor.AddHandlers(
		commandsHandler.IssueRefundHandler(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not add handlers to command processor: %w", err)
	}

	// each "events" consumer gets its own group so the splitter and the
	// archive writer both see every event
	router.AddNoPublisherHandler(
		"events_splitter",
		"events",
		NewRedisSubscriber(redisClient, "svc-coursebook.events_splitter", watermillLogger),
		func(msg *message.Message) error {
			eventName := eventProcessorConfig.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			return redisPublisher.Publish("events."+eventName, msg)
		},
	)

	router.AddNoPublisherHandler(
		"store_to_archive",
		"events",
		NewRedisSubscriber(redisClient, "svc-coursebook.store_to_archive", watermillLogger),
		func(msg *message.Message) error {
			eventName := eventProcessorConfig.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			// only the header is unmarshalled, the payload is archived as is
			type archivedEvent struct {
				Header entity.EventHeader `json:"header"`
			}

			var event archivedEvent
			if err := eventProcessorConfig.Marshaler.Unmarshal(msg, &event); err != nil {
				return fmt.Errorf("could not unmarshal event: %w", err)
			}

			return eventsArchive.StoreEvent(
				msg.Context(),
				entity.ArchivedEvent{
					ID:          event.Header.ID,
					PublishedAt: event.Header.PublishedAt,
					Name:        eventName,
					Payload:     msg.Payload,
				},
			)
		},
	)

	return router, nil
}
