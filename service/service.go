package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"coursebook/db"
	"coursebook/db/bookings"
	"coursebook/db/certificates"
	"coursebook/db/events"
	"coursebook/db/payments"
	"coursebook/db/sessions"
	"coursebook/db/webhooks"
	"coursebook/doccache"
	"coursebook/http"
	"coursebook/pubsub"
	"coursebook/pubsub/bus"
	"coursebook/pubsub/command"
	"coursebook/pubsub/event"
	"coursebook/pubsub/outbox"
	"coursebook/refund"
)

func init() {
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// Config carries the policy knobs. Zero values are replaced with the
// standard terms by New.
type Config struct {
	HTTPAddr string

	// PaymentWindow is how long a pending booking holds its seats before
	// the expiry sweep releases them.
	PaymentWindow time.Duration

	// ExpirySweepInterval is how often the expiry worker scans for lapsed
	// pending bookings.
	ExpirySweepInterval time.Duration

	DocumentTTL         time.Duration
	CertificateValidity time.Duration

	RefundPolicy refund.Policy
}

func (c Config) withDefaults() Config {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.PaymentWindow == 0 {
		c.PaymentWindow = 15 * time.Minute
	}
	if c.ExpirySweepInterval == 0 {
		c.ExpirySweepInterval = time.Minute
	}
	if c.DocumentTTL == 0 {
		c.DocumentTTL = 24 * time.Hour
	}
	if c.CertificateValidity == 0 {
		c.CertificateValidity = 2 * 365 * 24 * time.Hour
	}
	if c.RefundPolicy == (refund.Policy{}) {
		c.RefundPolicy = refund.DefaultPolicy()
	}
	return c
}

type Service struct {
	config          Config
	db              *sqlx.DB
	watermillRouter *message.Router
	httpServer      *http.Server
	forwarderRun    func(ctx context.Context) error
	bookingsRepo    *bookings.PostgresRepository
}

func New(
	config Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	paymentsService event.PaymentsService,
	refundsService command.PaymentsService,
	notificationsService event.NotificationsService,
	webhookVerifier http.SignatureVerifier,
) Service {
	config = config.withDefaults()

	watermillLogger := pubsub.NewLogrusLogger(logrus.NewEntry(logrus.StandardLogger()))

	sessionsRepo := sessions.NewPostgresRepository(db)
	bookingsRepo := bookings.NewPostgresRepository(db, watermillLogger)
	paymentsRepo := payments.NewPostgresRepository(db)
	certificatesRepo := certificates.NewPostgresRepository(db)
	eventsArchive := events.NewPostgresRepository(db)
	ledger := webhooks.NewLedger(db, watermillLogger)

	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	eventBus, err := bus.NewEventBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create event bus: %w", err))
	}

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create command bus: %w", err))
	}

	eventsHandler := event.NewHandler(
		eventBus,
		paymentsService,
		notificationsService,
		bookingsRepo,
		paymentsRepo,
		certificatesRepo,
		config.CertificateValidity,
	)

	commandsHandler := command.NewHandler(
		eventBus,
		refundsService,
		paymentsRepo,
	)

	watermillRouter, err := pubsub.NewWatermillRouter(
		redisClient,
		redisPublisher,
		event.NewProcessorConfig(redisClient, watermillLogger),
		eventsHandler,
		command.NewProcessorConfig(redisClient, watermillLogger),
		commandsHandler,
		eventsArchive,
		watermillLogger,
	)
	if err != nil {
		panic(fmt.Errorf("failed to create watermill router: %w", err))
	}

	postgresSubscriber, err := outbox.NewPostgresSubscriber(db, watermillLogger)
	if err != nil {
		panic(fmt.Errorf("failed to create outbox subscriber: %w", err))
	}

	documentCache := doccache.NewCache(redisClient, config.DocumentTTL)

	httpServer := http.NewServer(
		http.Config{
			Addr:          config.HTTPAddr,
			PaymentWindow: config.PaymentWindow,
			RefundPolicy:  config.RefundPolicy,
		},
		eventBus,
		commandBus,
		bookingsRepo,
		sessionsRepo,
		paymentsRepo,
		ledger,
		webhookVerifier,
		documentCache,
	)

	return Service{
		config:          config,
		db:              db,
		watermillRouter: watermillRouter,
		httpServer:      httpServer,
		forwarderRun: func(ctx context.Context) error {
			return outbox.RunForwarder(ctx, postgresSubscriber, redisPublisher, watermillLogger)
		},
		bookingsRepo: bookingsRepo,
	}
}

func (s Service) Run(ctx context.Context) error {
	if err := db.InitializeDatabaseSchema(s.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		return s.forwarderRun(ctx)
	})

	g.Go(func() error {
		return s.runExpiryWorker(ctx)
	})

	g.Go(func() error {
		// HTTP starts after the router, so the service is not healthy
		// before messages can be handled
		<-s.watermillRouter.Running()

		return s.httpServer.Run(ctx)
	})

	return g.Wait()
}
