package event

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"coursebook/entity"
	"coursebook/gateway"
)

type PaymentsService interface {
	CreateCharge(ctx context.Context, request gateway.CreateChargeRequest) (gateway.CreateChargeResponse, error)
}

type NotificationsService interface {
	Send(ctx context.Context, bookingID, template string) error
}

type BookingsRepository interface {
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
}

type PaymentsRepository interface {
	Store(ctx context.Context, payment entity.PaymentRecord) error
}

type CertificatesRepository interface {
	Store(ctx context.Context, certificate entity.Certificate) (bool, error)
}

type Handler struct {
	eventBus             *cqrs.EventBus
	paymentsService      PaymentsService
	notificationsService NotificationsService
	bookingsRepo         BookingsRepository
	paymentsRepo         PaymentsRepository
	certificatesRepo     CertificatesRepository
	certificateValidity  time.Duration
}

func NewHandler(
	eventBus *cqrs.EventBus,
	paymentsService PaymentsService,
	notificationsService NotificationsService,
	bookingsRepo BookingsRepository,
	paymentsRepo PaymentsRepository,
	certificatesRepo CertificatesRepository,
	certificateValidity time.Duration,
) Handler {
	if eventBus == nil {
		panic("missing eventBus")
	}
	if paymentsService == nil {
		panic("missing paymentsService")
	}
	if notificationsService == nil {
		panic("missing notificationsService")
	}
	if bookingsRepo == nil {
		panic("missing bookingsRepo")
	}
	if paymentsRepo == nil {
		panic("missing paymentsRepo")
	}
	if certificatesRepo == nil {
		panic("missing certificatesRepo")
	}

	return Handler{
		eventBus:             eventBus,
		paymentsService:      paymentsService,
		notificationsService: notificationsService,
		bookingsRepo:         bookingsRepo,
		paymentsRepo:         paymentsRepo,
		certificatesRepo:     certificatesRepo,
		certificateValidity:  certificateValidity,
	}
}

func NewProcessorConfig(rdb *redis.Client, logger watermill.LoggerAdapter) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        rdb,
				ConsumerGroup: "svc-coursebook." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return "events." + params.EventName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	}
}
