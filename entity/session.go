package entity

import "time"

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionConfirmed  SessionStatus = "confirmed"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// CourseSession is one scheduled occurrence of a course. The seat counters
// are the capacity ledger: SeatsReserved counts provisional plus committed
// seats, SeatsCommitted only seats whose payment was captured. All mutation
// goes through the sessions repository's Reserve/Commit/Release.
type CourseSession struct {
	SessionID       string        `json:"session_id" db:"session_id"`
	CourseID        string        `json:"course_id" db:"course_id"`
	CourseName      string        `json:"course_name" db:"course_name"`
	StartTime       time.Time     `json:"start_time" db:"start_time"`
	EndTime         time.Time     `json:"end_time" db:"end_time"`
	Venue           string        `json:"venue" db:"venue"`
	MaxParticipants int           `json:"max_participants" db:"max_participants"`
	SeatsReserved   int           `json:"seats_reserved" db:"seats_reserved"`
	SeatsCommitted  int           `json:"seats_committed" db:"seats_committed"`
	PriceAmount     int64         `json:"price_amount" db:"price_amount"`
	PriceCurrency   string        `json:"price_currency" db:"price_currency"`
	Status          SessionStatus `json:"status" db:"status"`
}

func (s CourseSession) SeatsAvailable() int {
	return s.MaxParticipants - s.SeatsReserved
}

// Bookable reports whether new reservations may be taken against the session.
func (s CourseSession) Bookable(now time.Time) bool {
	if s.Status != SessionScheduled && s.Status != SessionConfirmed {
		return false
	}
	return now.Before(s.StartTime)
}

// ReservationToken identifies a provisional seat hold so it can later be
// committed or released.
type ReservationToken struct {
	SessionID string
	Seats     int
}
