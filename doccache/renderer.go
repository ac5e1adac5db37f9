package doccache

import (
	"fmt"
	"strings"
	"time"

	"coursebook/entity"
)

// Render produces the plain-text booking document for the booking's current
// version.
func Render(booking entity.Booking, session entity.CourseSession, now time.Time) Document {
	var b strings.Builder

	fmt.Fprintf(&b, "BOOKING CONFIRMATION %s\n\n", booking.BookingReference)
	fmt.Fprintf(&b, "Course:   %s\n", session.CourseName)
	fmt.Fprintf(&b, "Venue:    %s\n", session.Venue)
	fmt.Fprintf(&b, "Starts:   %s\n", session.StartTime.Format(time.RFC1123))
	fmt.Fprintf(&b, "Status:   %s\n\n", booking.Status)

	fmt.Fprintf(&b, "Participants (%d):\n", booking.NumberOfParticipants)
	for _, participant := range booking.Participants {
		fmt.Fprintf(&b, "  - %s <%s>\n", participant.Name, participant.Email)
	}

	fmt.Fprintf(&b, "\nTotal:    %s\n", entity.Money{Amount: booking.TotalAmount, Currency: booking.Currency})
	if booking.DiscountAmount > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", entity.Money{Amount: booking.DiscountAmount, Currency: booking.Currency})
	}
	fmt.Fprintf(&b, "Due:      %s\n", entity.Money{Amount: booking.FinalAmount, Currency: booking.Currency})

	return Document{
		BookingID:   booking.BookingID,
		Version:     booking.Version,
		Content:     b.String(),
		GeneratedAt: now,
	}
}
