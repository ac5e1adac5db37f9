package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
)

// Certificate is issued once per participant when both the booking and its
// session reach completed. Immutable after issue.
type Certificate struct {
	CertificateID     string    `json:"certificate_id" db:"certificate_id"`
	BookingID         string    `json:"booking_id" db:"booking_id"`
	ParticipantName   string    `json:"participant_name" db:"participant_name"`
	ParticipantEmail  string    `json:"participant_email" db:"participant_email"`
	CertificateNumber string    `json:"certificate_number" db:"certificate_number"`
	IssuedAt          time.Time `json:"issued_at" db:"issued_at"`
	ValidUntil        time.Time `json:"valid_until" db:"valid_until"`
}

func NewCertificateNumber(issuedAt time.Time) string {
	return fmt.Sprintf("CERT-%d-%s", issuedAt.Year(), strings.ToUpper(shortuuid.New())[:10])
}
