package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEventHeader(t *testing.T) {
	a := NewEventHeader()
	b := NewEventHeader()

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.PublishedAt.IsZero())

	h := NewEventHeaderWithIdempotencyKey("refund-1")
	assert.Equal(t, "refund-1", h.IdempotencyKey)
	assert.NotEmpty(t, h.ID)
}

// The lifecycle events carry their own names next to the status constants of
// the same stages; both must stay referable side by side.
func TestLifecycleEventsCarryBookingState(t *testing.T) {
	cancelled := CourseBookingCancelled{
		Header:       NewEventHeader(),
		BookingID:    "b-1",
		SessionID:    "s-1",
		Reason:       "customer_request",
		RefundAmount: 5000,
	}
	assert.True(t, CanTransition(BookingPaid, BookingCancelled))
	assert.Equal(t, int64(5000), cancelled.RefundAmount)

	attended := CourseBookingAttended{Header: NewEventHeader(), BookingID: "b-1", ActorID: "trainer-7"}
	assert.True(t, CanTransition(BookingPaid, BookingAttended))
	assert.Equal(t, "trainer-7", attended.ActorID)

	completed := CourseBookingCompleted{Header: NewEventHeader(), BookingID: "b-1", SessionID: "s-1"}
	assert.True(t, CanTransition(BookingAttended, BookingCompleted))
	assert.Equal(t, "s-1", completed.SessionID)
}
