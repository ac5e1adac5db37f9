package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type BookingMade struct {
	Header               EventHeader `json:"header"`
	BookingID            string      `json:"booking_id"`
	BookingReference     string      `json:"booking_reference"`
	SessionID            string      `json:"session_id"`
	NumberOfParticipants int         `json:"number_of_participants"`
	CustomerEmail        string      `json:"customer_email"`
	FinalAmount          int64       `json:"final_amount"`
	Currency             string      `json:"currency"`
}

type BookingExpired struct {
	Header               EventHeader `json:"header"`
	BookingID            string      `json:"booking_id"`
	SessionID            string      `json:"session_id"`
	NumberOfParticipants int         `json:"number_of_participants"`
}

type PaymentAuthorized struct {
	Header           EventHeader `json:"header"`
	BookingID        string      `json:"booking_id"`
	GatewayReference string      `json:"gateway_reference"`
}

type PaymentCaptured struct {
	Header           EventHeader `json:"header"`
	BookingID        string      `json:"booking_id"`
	GatewayReference string      `json:"gateway_reference"`
	Amount           int64       `json:"amount"`
	Currency         string      `json:"currency"`
}

type PaymentFailed struct {
	Header    EventHeader `json:"header"`
	BookingID string      `json:"booking_id"`
	Reason    string      `json:"reason"`
}

type CourseBookingCancelled struct {
	Header       EventHeader `json:"header"`
	BookingID    string      `json:"booking_id"`
	SessionID    string      `json:"session_id"`
	Reason       string      `json:"reason"`
	RefundAmount int64       `json:"refund_amount"`
}

type RefundProcessed struct {
	Header    EventHeader `json:"header"`
	BookingID string      `json:"booking_id"`
	PaymentID string      `json:"payment_id"`
	RefundID  string      `json:"refund_id"`
	Amount    int64       `json:"amount"`
	Currency  string      `json:"currency"`
}

type CourseBookingAttended struct {
	Header    EventHeader `json:"header"`
	BookingID string      `json:"booking_id"`
	ActorID   string      `json:"actor_id"`
}

type CourseBookingCompleted struct {
	Header    EventHeader `json:"header"`
	BookingID string      `json:"booking_id"`
	SessionID string      `json:"session_id"`
}

type CertificateIssued struct {
	Header            EventHeader `json:"header"`
	CertificateID     string      `json:"certificate_id"`
	BookingID         string      `json:"booking_id"`
	ParticipantEmail  string      `json:"participant_email"`
	CertificateNumber string      `json:"certificate_number"`
}

// ArchivedEvent is the append-only archive row every published domain event
// is copied into.
type ArchivedEvent struct {
	ID          string    `db:"event_id"`
	PublishedAt time.Time `db:"published_at"`
	Name        string    `db:"event_name"`
	Payload     []byte    `db:"event_payload"`
}
