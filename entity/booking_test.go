package entity

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]BookingStatus{
		{BookingPending, BookingConfirmed},
		{BookingPending, BookingCancelled},
		{BookingConfirmed, BookingPaid},
		{BookingConfirmed, BookingCancelled},
		{BookingConfirmed, BookingNoShow},
		{BookingPaid, BookingAttended},
		{BookingPaid, BookingCancelled},
		{BookingPaid, BookingNoShow},
		{BookingAttended, BookingCompleted},
	}

	legalSet := map[[2]BookingStatus]bool{}
	for _, tr := range legal {
		legalSet[tr] = true
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s should be legal", tr[0], tr[1])
	}

	all := []BookingStatus{
		BookingPending, BookingConfirmed, BookingPaid, BookingAttended,
		BookingCompleted, BookingCancelled, BookingNoShow,
	}
	for _, from := range all {
		for _, to := range all {
			if legalSet[[2]BookingStatus{from, to}] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestCanTransitionRejectsSkippingStates(t *testing.T) {
	assert.False(t, CanTransition(BookingPending, BookingAttended))
	assert.False(t, CanTransition(BookingPending, BookingPaid))
	assert.False(t, CanTransition(BookingConfirmed, BookingAttended))
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, BookingCancelled.Terminal())
	assert.True(t, BookingCompleted.Terminal())
	assert.True(t, BookingNoShow.Terminal())
	assert.False(t, BookingPending.Terminal())
	assert.False(t, BookingPaid.Terminal())
}

func TestNewBooking(t *testing.T) {
	session := CourseSession{
		SessionID:       "session-1",
		PriceAmount:     15000,
		PriceCurrency:   "EUR",
		MaxParticipants: 12,
		StartTime:       time.Now().Add(72 * time.Hour),
		Status:          SessionScheduled,
	}
	participants := []Participant{
		{Name: "Ann Smith", Email: "ann@example.com"},
		{Name: "Ben Lee", Email: "ben@example.com"},
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	booking, err := NewBooking(session, participants, "ann@example.com", 5000, now, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, BookingPending, booking.Status)
	assert.Equal(t, 2, booking.NumberOfParticipants)
	assert.Equal(t, int64(30000), booking.TotalAmount)
	assert.Equal(t, int64(25000), booking.FinalAmount)
	assert.Equal(t, booking.TotalAmount-booking.DiscountAmount, booking.FinalAmount)
	assert.Equal(t, now.Add(15*time.Minute), booking.ExpiresAt)
	assert.Regexp(t, regexp.MustCompile(`^CB-2026-[A-Z0-9]{8}$`), booking.BookingReference)
}

func TestNewBookingRejectsOversizedDiscount(t *testing.T) {
	session := CourseSession{SessionID: "session-1", PriceAmount: 100, PriceCurrency: "EUR"}
	participants := []Participant{{Name: "Ann", Email: "ann@example.com"}}

	_, err := NewBooking(session, participants, "ann@example.com", 200, time.Now(), time.Minute)
	assert.Error(t, err)

	_, err = NewBooking(session, participants, "ann@example.com", -1, time.Now(), time.Minute)
	assert.Error(t, err)
}

func TestNewBookingRejectsEmptyParticipants(t *testing.T) {
	session := CourseSession{SessionID: "session-1", PriceAmount: 100}
	_, err := NewBooking(session, nil, "ann@example.com", 0, time.Now(), time.Minute)
	assert.Error(t, err)
}

func TestParseGatewayEventType(t *testing.T) {
	assert.Equal(t, GatewayEventChargeCaptured, ParseGatewayEventType("charge.captured"))
	assert.Equal(t, GatewayEventRefundProcessed, ParseGatewayEventType("refund.processed"))
	assert.Equal(t, GatewayEventUnknown, ParseGatewayEventType("charge.disputed"))
	assert.Equal(t, GatewayEventUnknown, ParseGatewayEventType(""))
}
