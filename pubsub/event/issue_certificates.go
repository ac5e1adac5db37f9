package event

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"coursebook/entity"
)

// IssueCertificatesHandler issues one certificate per participant once the
// booking reaches completed. The insert is unique per booking and
// participant, so a redelivered event publishes no duplicate
// CertificateIssued.
func (h Handler) IssueCertificatesHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"IssueCertificatesHandler",
		func(ctx context.Context, event *entity.CourseBookingCompleted) error {
			booking, err := h.bookingsRepo.Get(ctx, event.BookingID)
			if err != nil {
				return fmt.Errorf("could not get booking: %w", err)
			}

			issuedAt := time.Now().UTC()
			for _, participant := range booking.Participants {
				certificate := entity.Certificate{
					CertificateID:     uuid.NewString(),
					BookingID:         booking.BookingID,
					ParticipantName:   participant.Name,
					ParticipantEmail:  participant.Email,
					CertificateNumber: entity.NewCertificateNumber(issuedAt),
					IssuedAt:          issuedAt,
					ValidUntil:        issuedAt.Add(h.certificateValidity),
				}

				created, err := h.certificatesRepo.Store(ctx, certificate)
				if err != nil {
					return fmt.Errorf("could not store certificate: %w", err)
				}
				if !created {
					continue
				}

				logrus.WithFields(logrus.Fields{
					"booking_id":         booking.BookingID,
					"certificate_number": certificate.CertificateNumber,
				}).Info("Issued certificate")

				err = h.eventBus.Publish(ctx, entity.CertificateIssued{
					Header:            entity.NewEventHeader(),
					CertificateID:     certificate.CertificateID,
					BookingID:         booking.BookingID,
					ParticipantEmail:  participant.Email,
					CertificateNumber: certificate.CertificateNumber,
				})
				if err != nil {
					return fmt.Errorf("could not publish event: %w", err)
				}
			}

			return nil
		},
	)
}
