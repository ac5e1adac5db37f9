package webhooks

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbutils "coursebook/db"
	"coursebook/db/bookings"
	"coursebook/db/payments"
	"coursebook/db/sessions"
	"coursebook/entity"
)

type fixture struct {
	session entity.CourseSession
	booking entity.Booking
	payment entity.PaymentRecord
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx := context.Background()
	db := dbutils.GetDb(t)

	start := time.Now().Add(72 * time.Hour).UTC()
	session := entity.CourseSession{
		SessionID:       uuid.NewString(),
		CourseID:        uuid.NewString(),
		CourseName:      "Fire Safety",
		StartTime:       start,
		EndTime:         start.Add(4 * time.Hour),
		Venue:           "Training Center South",
		MaxParticipants: 10,
		PriceAmount:     12000,
		PriceCurrency:   "EUR",
		Status:          entity.SessionScheduled,
	}
	require.NoError(t, sessions.NewPostgresRepository(db).Store(ctx, session))

	booking, err := entity.NewBooking(
		session,
		[]entity.Participant{{Name: "Participant", Email: uuid.NewString() + "@example.com"}},
		"customer@example.com",
		0,
		time.Now().UTC(),
		15*time.Minute,
	)
	require.NoError(t, err)
	require.NoError(t, bookings.NewPostgresRepository(db, watermill.NopLogger{}).Store(ctx, booking))

	payment := entity.PaymentRecord{
		PaymentID:        uuid.NewString(),
		BookingID:        booking.BookingID,
		GatewayReference: "ch_" + uuid.NewString(),
		Amount:           booking.FinalAmount,
		Currency:         booking.Currency,
		Status:           entity.PaymentCreated,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, payments.NewPostgresRepository(db).Store(ctx, payment))

	return fixture{session: session, booking: booking, payment: payment}
}

func capturedEvent(f fixture) entity.GatewayEvent {
	return entity.GatewayEvent{
		ExternalID:       "evt_" + uuid.NewString(),
		Type:             entity.GatewayEventChargeCaptured,
		BookingID:        f.booking.BookingID,
		GatewayReference: f.payment.GatewayReference,
		Amount:           f.payment.Amount,
		Currency:         f.payment.Currency,
		RawPayload:       []byte(`{}`),
		OccurredAt:       time.Now().UTC(),
	}
}

func TestApplyChargeCaptured(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)

	// capture delivered before authorization still lands the booking on paid
	result, err := ledger.Apply(ctx, capturedEvent(f))
	require.NoError(t, err)
	assert.Equal(t, Applied, result)

	booking, err := bookings.NewPostgresRepository(db, watermill.NopLogger{}).Get(ctx, f.booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingPaid, booking.Status)

	payment, err := payments.NewPostgresRepository(db).GetByBooking(ctx, f.booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentCapturedStatus, payment.Status)

	session, err := sessions.NewPostgresRepository(db).Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.SeatsCommitted)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)

	event := capturedEvent(f)

	result, err := ledger.Apply(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, Applied, result)

	result, err = ledger.Apply(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, AlreadyApplied, result)

	// the redelivery did not double-commit seats
	session, err := sessions.NewPostgresRepository(db).Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.SeatsCommitted)
}

func TestApplyRejectsImpossibleTransition(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)

	bookingsRepo := bookings.NewPostgresRepository(db, watermill.NopLogger{})
	require.NoError(t, bookingsRepo.Cancel(ctx, f.booking, "customer_request", 0))

	result, err := ledger.Apply(ctx, capturedEvent(f))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result)

	// the booking stays cancelled and the ledger left no stray seats behind
	booking, err := bookingsRepo.Get(ctx, f.booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingCancelled, booking.Status)

	session, err := sessions.NewPostgresRepository(db).Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, session.SeatsReserved)
	assert.Equal(t, 0, session.SeatsCommitted)

	reviews, err := ledger.ListReviews(ctx)
	require.NoError(t, err)
	found := false
	for _, review := range reviews {
		if review.BookingID == f.booking.BookingID {
			found = true
		}
	}
	assert.True(t, found, "rejected event should be queued for review")
}

func TestApplyChargeFailedReleasesSeatsOnce(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)

	failed := entity.GatewayEvent{
		ExternalID:       "evt_" + uuid.NewString(),
		Type:             entity.GatewayEventChargeFailed,
		BookingID:        f.booking.BookingID,
		GatewayReference: f.payment.GatewayReference,
		FailureReason:    "card_declined",
		RawPayload:       []byte(`{}`),
		OccurredAt:       time.Now().UTC(),
	}

	result, err := ledger.Apply(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, Applied, result)

	session, err := sessions.NewPostgresRepository(db).Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, session.SeatsReserved)

	booking, err := bookings.NewPostgresRepository(db, watermill.NopLogger{}).Get(ctx, f.booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingPending, booking.Status)
	assert.True(t, booking.PaymentFailed)

	// a second distinct failure event must not release seats again
	failed.ExternalID = "evt_" + uuid.NewString()
	result, err = ledger.Apply(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, Applied, result)

	session, err = sessions.NewPostgresRepository(db).Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, session.SeatsReserved)
}

func TestApplyCaptureAfterFailedChargeGoesToReview(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)

	failed := entity.GatewayEvent{
		ExternalID:       "evt_" + uuid.NewString(),
		Type:             entity.GatewayEventChargeFailed,
		BookingID:        f.booking.BookingID,
		GatewayReference: f.payment.GatewayReference,
		FailureReason:    "card_declined",
		RawPayload:       []byte(`{}`),
		OccurredAt:       time.Now().UTC(),
	}
	result, err := ledger.Apply(ctx, failed)
	require.NoError(t, err)
	require.Equal(t, Applied, result)

	// a late capture cannot pay for seats that were already handed back;
	// it must land in the review queue instead of redelivering forever
	result, err = ledger.Apply(ctx, capturedEvent(f))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result)

	booking, err := bookings.NewPostgresRepository(db, watermill.NopLogger{}).Get(ctx, f.booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingPending, booking.Status)

	session, err := sessions.NewPostgresRepository(db).Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, session.SeatsCommitted)

	reviews, err := ledger.ListReviews(ctx)
	require.NoError(t, err)
	found := false
	for _, review := range reviews {
		if review.BookingID == f.booking.BookingID {
			found = true
		}
	}
	assert.True(t, found, "late capture should be queued for review")
}

func TestExpiryAfterFailedChargeKeepsOtherSeats(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)
	bookingsRepo := bookings.NewPostgresRepository(db, watermill.NopLogger{})
	sessionsRepo := sessions.NewPostgresRepository(db)

	failed := entity.GatewayEvent{
		ExternalID:       "evt_" + uuid.NewString(),
		Type:             entity.GatewayEventChargeFailed,
		BookingID:        f.booking.BookingID,
		GatewayReference: f.payment.GatewayReference,
		FailureReason:    "card_declined",
		RawPayload:       []byte(`{}`),
		OccurredAt:       time.Now().UTC(),
	}
	result, err := ledger.Apply(ctx, failed)
	require.NoError(t, err)
	require.Equal(t, Applied, result)

	// another customer takes every freed seat
	people := make([]entity.Participant, f.session.MaxParticipants)
	for i := range people {
		people[i] = entity.Participant{Name: "Participant", Email: uuid.NewString() + "@example.com"}
	}
	other, err := entity.NewBooking(f.session, people, "other@example.com", 0, time.Now().UTC(), 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, bookingsRepo.Store(ctx, other))

	// expiring the payment-failed booking must not free seats it no
	// longer holds
	lapsed, err := bookingsRepo.Get(ctx, f.booking.BookingID)
	require.NoError(t, err)
	require.True(t, lapsed.PaymentFailed)
	require.NoError(t, bookingsRepo.Expire(ctx, lapsed))

	session, err := sessionsRepo.Get(ctx, f.session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, f.session.MaxParticipants, session.SeatsReserved)

	late, err := entity.NewBooking(f.session,
		[]entity.Participant{{Name: "Late", Email: uuid.NewString() + "@example.com"}},
		"late@example.com", 0, time.Now().UTC(), 15*time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, bookingsRepo.Store(ctx, late), entity.ErrSessionFull)
}

func TestApplyRefundProcessed(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	ledger := NewLedger(db, watermill.NopLogger{})
	f := newFixture(t)

	_, err := ledger.Apply(ctx, capturedEvent(f))
	require.NoError(t, err)

	paymentsRepo := payments.NewPostgresRepository(db)
	refund := entity.RefundRecord{
		RefundID:  uuid.NewString(),
		PaymentID: f.payment.PaymentID,
		Amount:    f.payment.Amount,
		Currency:  f.payment.Currency,
		Reason:    "full_refund",
		Status:    entity.RefundRequested,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, paymentsRepo.StoreRefund(ctx, refund))

	gatewayRefundID := "re_" + uuid.NewString()
	require.NoError(t, paymentsRepo.SetRefundStatus(ctx, refund.RefundID, entity.RefundApproved, gatewayRefundID))

	result, err := ledger.Apply(ctx, entity.GatewayEvent{
		ExternalID:      "evt_" + uuid.NewString(),
		Type:            entity.GatewayEventRefundProcessed,
		BookingID:       f.booking.BookingID,
		GatewayRefundID: gatewayRefundID,
		Amount:          refund.Amount,
		Currency:        refund.Currency,
		RawPayload:      []byte(`{}`),
		OccurredAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, Applied, result)

	payment, err := paymentsRepo.GetByBooking(ctx, f.booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentRefundedStatus, payment.Status)
	assert.Equal(t, refund.Amount, payment.RefundedAmount)
}
