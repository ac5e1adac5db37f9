package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"coursebook/db/webhooks"
	"coursebook/doccache"
	"coursebook/entity"
	"coursebook/refund"
)

type BookingsRepository interface {
	Store(ctx context.Context, booking entity.Booking) error
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	Transition(ctx context.Context, bookingID string, from, to entity.BookingStatus) error
	Cancel(ctx context.Context, booking entity.Booking, reason string, refundAmount int64) error
	CompleteSession(ctx context.Context, sessionID string) ([]entity.Booking, error)
}

type SessionsRepository interface {
	Store(ctx context.Context, session entity.CourseSession) error
	Get(ctx context.Context, sessionID string) (entity.CourseSession, error)
}

type PaymentsRepository interface {
	GetByBooking(ctx context.Context, bookingID string) (entity.PaymentRecord, error)
	StoreRefund(ctx context.Context, refund entity.RefundRecord) error
}

type ReconciliationLedger interface {
	Apply(ctx context.Context, event entity.GatewayEvent) (webhooks.ApplyResult, error)
	ListReviews(ctx context.Context) ([]entity.ReconciliationReview, error)
}

type SignatureVerifier interface {
	Verify(payload []byte, header string) error
}

type DocumentCache interface {
	GetOrGenerate(ctx context.Context, bookingID string, version int, generate func(ctx context.Context) (doccache.Document, error)) (doccache.Document, error)
}

// Config carries the booking policy knobs the HTTP surface applies.
type Config struct {
	Addr          string
	PaymentWindow time.Duration
	RefundPolicy  refund.Policy
}

type Server struct {
	config        Config
	e             *echo.Echo
	eventBus      *cqrs.EventBus
	commandBus    *cqrs.CommandBus
	bookingsRepo  BookingsRepository
	sessionsRepo  SessionsRepository
	paymentsRepo  PaymentsRepository
	ledger        ReconciliationLedger
	verifier      SignatureVerifier
	documentCache DocumentCache
}

func NewServer(
	config Config,
	eventBus *cqrs.EventBus,
	commandBus *cqrs.CommandBus,
	bookingsRepo BookingsRepository,
	sessionsRepo SessionsRepository,
	paymentsRepo PaymentsRepository,
	ledger ReconciliationLedger,
	verifier SignatureVerifier,
	documentCache DocumentCache,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	server := &Server{
		config:        config,
		e:             e,
		eventBus:      eventBus,
		commandBus:    commandBus,
		bookingsRepo:  bookingsRepo,
		sessionsRepo:  sessionsRepo,
		paymentsRepo:  paymentsRepo,
		ledger:        ledger,
		verifier:      verifier,
		documentCache: documentCache,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/bookings", server.PostBookings)
	e.GET("/bookings/:id", server.GetBooking)
	e.POST("/bookings/:id/cancel", server.PostBookingCancel)
	e.POST("/bookings/:id/attended", server.PostBookingAttended)
	e.GET("/bookings/:id/document", server.GetBookingDocument)

	e.POST("/sessions", server.PostSessions)
	e.GET("/sessions/:id", server.GetSession)
	e.POST("/sessions/:id/complete", server.PostSessionComplete)

	e.POST("/webhooks/payment", server.PostPaymentWebhook)
	e.GET("/ops/reconciliation", server.GetReconciliationReviews)

	return server
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.e.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to shutdown HTTP server")
		}
	}()

	logrus.WithField("addr", s.config.Addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.config.Addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// httpError maps domain sentinels onto status codes; anything unmapped stays
// a 500 through echo's default handler.
func httpError(err error) error {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entity.ErrSessionFull):
		return echo.NewHTTPError(http.StatusConflict, "session is full")
	case errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}
