package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"coursebook/entity"
	"coursebook/metrics"
)

// runExpiryWorker sweeps pending bookings whose payment window lapsed and
// releases their seats. A booking that gets paid mid-sweep wins its
// check-and-set and is skipped.
func (s Service) runExpiryWorker(ctx context.Context) error {
	ticker := time.NewTicker(s.config.ExpirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.expireLapsedBookings(ctx)
		}
	}
}

func (s Service) expireLapsedBookings(ctx context.Context) {
	lapsed, err := s.bookingsRepo.FindExpired(ctx, time.Now().UTC())
	if err != nil {
		logrus.WithError(err).Error("Could not scan for expired bookings")
		return
	}

	for _, booking := range lapsed {
		err := s.bookingsRepo.Expire(ctx, booking)
		if errors.Is(err, entity.ErrConcurrentModification) || errors.Is(err, entity.ErrInvalidTransition) {
			// paid or cancelled while the sweep was running
			continue
		}
		if err != nil {
			logrus.WithError(err).WithField("booking_id", booking.BookingID).
				Error("Could not expire booking")
			continue
		}

		metrics.BookingsExpired.Inc()
		logrus.WithField("booking_id", booking.BookingID).Info("Expired unpaid booking")
	}
}
