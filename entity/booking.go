package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingPaid      BookingStatus = "paid"
	BookingAttended  BookingStatus = "attended"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

// bookingTransitions is the complete set of legal status changes. Anything
// not listed here fails with ErrInvalidTransition, including backward moves
// and skipped states.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingPaid, BookingCancelled, BookingNoShow},
	BookingPaid:      {BookingAttended, BookingCancelled, BookingNoShow},
	BookingAttended:  {BookingCompleted},
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a booking can never leave the given status.
func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Booking struct {
	BookingID            string        `json:"booking_id" db:"booking_id"`
	BookingReference     string        `json:"booking_reference" db:"booking_reference"`
	SessionID            string        `json:"session_id" db:"session_id"`
	Participants         []Participant `json:"participants"`
	NumberOfParticipants int           `json:"number_of_participants" db:"number_of_participants"`
	CustomerEmail        string        `json:"customer_email" db:"customer_email"`
	TotalAmount          int64         `json:"total_amount" db:"total_amount"`
	DiscountAmount       int64         `json:"discount_amount" db:"discount_amount"`
	FinalAmount          int64         `json:"final_amount" db:"final_amount"`
	Currency             string        `json:"currency" db:"currency"`
	Status               BookingStatus `json:"status" db:"status"`
	CancellationReason   string        `json:"cancellation_reason" db:"cancellation_reason"`
	PaymentFailed        bool          `json:"payment_failed" db:"payment_failed"`
	Version              int           `json:"version" db:"version"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at" db:"expires_at"`
}

// NewBooking builds a pending booking against a session. It enforces
// finalAmount = totalAmount - discountAmount >= 0 and that the participant
// list matches the declared count.
func NewBooking(
	session CourseSession,
	participants []Participant,
	customerEmail string,
	discountAmount int64,
	now time.Time,
	paymentWindow time.Duration,
) (Booking, error) {
	if len(participants) == 0 {
		return Booking{}, fmt.Errorf("booking needs at least one participant")
	}
	totalAmount := session.PriceAmount * int64(len(participants))
	if discountAmount < 0 || discountAmount > totalAmount {
		return Booking{}, fmt.Errorf("discount %d out of range for total %d", discountAmount, totalAmount)
	}

	return Booking{
		BookingID:            uuid.NewString(),
		BookingReference:     NewBookingReference(now),
		SessionID:            session.SessionID,
		Participants:         participants,
		NumberOfParticipants: len(participants),
		CustomerEmail:        customerEmail,
		TotalAmount:          totalAmount,
		DiscountAmount:       discountAmount,
		FinalAmount:          totalAmount - discountAmount,
		Currency:             session.PriceCurrency,
		Status:               BookingPending,
		Version:              1,
		CreatedAt:            now,
		ExpiresAt:            now.Add(paymentWindow),
	}, nil
}

// NewBookingReference returns a customer-facing reference, e.g. CB-2026-K4J2M8PQ.
func NewBookingReference(now time.Time) string {
	suffix := strings.ToUpper(shortuuid.New())[:8]
	return fmt.Sprintf("CB-%d-%s", now.Year(), suffix)
}
