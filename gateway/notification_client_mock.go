package gateway

import (
	"context"
	"sync"
)

type SentNotification struct {
	BookingID string
	Template  string
}

type NotificationMock struct {
	lock sync.Mutex

	Sent []SentNotification
}

func (c *NotificationMock) Send(ctx context.Context, bookingID, template string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.Sent = append(c.Sent, SentNotification{BookingID: bookingID, Template: template})

	return nil
}

func (c *NotificationMock) SentTo(bookingID string) []SentNotification {
	c.lock.Lock()
	defer c.lock.Unlock()

	var out []SentNotification
	for _, n := range c.Sent {
		if n.BookingID == bookingID {
			out = append(out, n)
		}
	}
	return out
}
