package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursebook/entity"
	"coursebook/pubsub/bus"
	"coursebook/refund"
)

type stubPublisher struct {
	topics []string
}

func (p *stubPublisher) Publish(topic string, messages ...*message.Message) error {
	p.topics = append(p.topics, topic)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

type stubBookingsRepo struct {
	booking entity.Booking

	// loseRaceTo, when set, makes the next Cancel lose the optimistic
	// check-and-set against a concurrent move to this status
	loseRaceTo entity.BookingStatus

	cancelledWith []int64
}

func (r *stubBookingsRepo) Store(context.Context, entity.Booking) error { return nil }

func (r *stubBookingsRepo) Get(context.Context, string) (entity.Booking, error) {
	return r.booking, nil
}

func (r *stubBookingsRepo) Transition(context.Context, string, entity.BookingStatus, entity.BookingStatus) error {
	return nil
}

func (r *stubBookingsRepo) Cancel(_ context.Context, _ entity.Booking, _ string, refundAmount int64) error {
	r.cancelledWith = append(r.cancelledWith, refundAmount)

	if r.loseRaceTo != "" {
		r.booking.Status = r.loseRaceTo
		r.loseRaceTo = ""
		return entity.ErrConcurrentModification
	}

	r.booking.Status = entity.BookingCancelled
	return nil
}

func (r *stubBookingsRepo) CompleteSession(context.Context, string) ([]entity.Booking, error) {
	return nil, nil
}

type stubSessionsRepo struct {
	session entity.CourseSession
}

func (r *stubSessionsRepo) Store(context.Context, entity.CourseSession) error { return nil }

func (r *stubSessionsRepo) Get(context.Context, string) (entity.CourseSession, error) {
	return r.session, nil
}

type stubPaymentsRepo struct {
	payment entity.PaymentRecord
	refunds []entity.RefundRecord
}

func (r *stubPaymentsRepo) GetByBooking(context.Context, string) (entity.PaymentRecord, error) {
	return r.payment, nil
}

func (r *stubPaymentsRepo) StoreRefund(_ context.Context, record entity.RefundRecord) error {
	r.refunds = append(r.refunds, record)
	return nil
}

// A cancellation can lose its check-and-set to a concurrent payment capture.
// The retry then cancels a paid booking, so the refund owed must follow the
// re-read state instead of the stale first read.
func TestCancelRecomputesRefundAfterLostRace(t *testing.T) {
	start := time.Now().Add(10 * time.Hour).UTC()
	session := entity.CourseSession{
		SessionID:       "session-1",
		CourseName:      "Fire Safety",
		StartTime:       start,
		EndTime:         start.Add(4 * time.Hour),
		MaxParticipants: 5,
		PriceAmount:     20000,
		PriceCurrency:   "EUR",
		Status:          entity.SessionScheduled,
	}

	booking, err := entity.NewBooking(
		session,
		[]entity.Participant{{Name: "Jo Visitor", Email: "jo@example.com"}},
		"jo@example.com",
		0,
		time.Now().UTC(),
		15*time.Minute,
	)
	require.NoError(t, err)

	bookingsRepo := &stubBookingsRepo{booking: booking, loseRaceTo: entity.BookingPaid}
	paymentsRepo := &stubPaymentsRepo{payment: entity.PaymentRecord{
		PaymentID: "payment-1",
		BookingID: booking.BookingID,
		Amount:    20000,
		Currency:  "EUR",
		Status:    entity.PaymentCapturedStatus,
	}}

	publisher := &stubPublisher{}
	eventBus, err := bus.NewEventBus(publisher)
	require.NoError(t, err)
	commandBus, err := bus.NewCommandBus(publisher)
	require.NoError(t, err)

	server := NewServer(
		Config{Addr: ":0", PaymentWindow: 15 * time.Minute, RefundPolicy: refund.DefaultPolicy()},
		eventBus,
		commandBus,
		bookingsRepo,
		&stubSessionsRepo{session: session},
		paymentsRepo,
		nil,
		nil,
		nil,
	)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/bookings/"+booking.BookingID+"/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(booking.BookingID)

	require.NoError(t, server.PostBookingCancel(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// session starts in 10 hours, inside the 48 hour deadline: half comes back
	var response cancelBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, entity.BookingCancelled, response.Status)
	assert.Equal(t, int64(10000), response.RefundAmount)
	assert.Equal(t, int64(10000), response.FeeRetained)

	// first attempt saw a pending booking and owed nothing; the retry saw
	// the capture and must carry the recomputed amount
	require.Equal(t, []int64{0, 10000}, bookingsRepo.cancelledWith)

	require.Len(t, paymentsRepo.refunds, 1)
	assert.Equal(t, int64(10000), paymentsRepo.refunds[0].Amount)
	assert.Equal(t, "payment-1", paymentsRepo.refunds[0].PaymentID)
	assert.Contains(t, publisher.topics, "commands.IssueRefund")
}
