package command

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"coursebook/entity"
	"coursebook/gateway"
	"coursebook/pubsub/bus"
)

type PaymentsService interface {
	IssueRefund(ctx context.Context, request gateway.IssueRefundRequest) (gateway.IssueRefundResponse, error)
}

type RefundsRepository interface {
	SetRefundStatus(ctx context.Context, refundID string, status entity.RefundStatus, gatewayRefundID string) error
}

type Handler struct {
	eventBus        *cqrs.EventBus
	paymentsService PaymentsService
	refundsRepo     RefundsRepository
}

func NewHandler(
	eventBus *cqrs.EventBus,
	paymentsService PaymentsService,
	refundsRepo RefundsRepository,
) Handler {
	if eventBus == nil {
		panic("missing eventBus")
	}
	if paymentsService == nil {
		panic("missing paymentsService")
	}
	if refundsRepo == nil {
		panic("missing refundsRepo")
	}

	return Handler{
		eventBus:        eventBus,
		paymentsService: paymentsService,
		refundsRepo:     refundsRepo,
	}
}

func NewProcessorConfig(rdb *redis.Client, logger watermill.LoggerAdapter) cqrs.CommandProcessorConfig {
	return cqrs.CommandProcessorConfig{
		SubscriberConstructor: func(params cqrs.CommandProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        rdb,
				ConsumerGroup: "svc-coursebook." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.CommandProcessorGenerateSubscribeTopicParams) (string, error) {
			return bus.CommandTopic(params.CommandName), nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	}
}
