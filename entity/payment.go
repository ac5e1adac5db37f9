package entity

import "time"

type PaymentStatus string

const (
	PaymentCreated           PaymentStatus = "created"
	PaymentAuthorizedStatus  PaymentStatus = "authorized"
	PaymentCapturedStatus    PaymentStatus = "captured"
	PaymentFailedStatus      PaymentStatus = "failed"
	PaymentRefundedStatus    PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// PaymentRecord links a booking (1:1) to a charge at the payment gateway.
type PaymentRecord struct {
	PaymentID        string        `json:"payment_id" db:"payment_id"`
	BookingID        string        `json:"booking_id" db:"booking_id"`
	GatewayReference string        `json:"gateway_reference" db:"gateway_reference"`
	Amount           int64         `json:"amount" db:"amount"`
	Currency         string        `json:"currency" db:"currency"`
	Status           PaymentStatus `json:"status" db:"status"`
	RefundedAmount   int64         `json:"refunded_amount" db:"refunded_amount"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
}

type RefundStatus string

const (
	RefundRequested       RefundStatus = "requested"
	RefundApproved        RefundStatus = "approved"
	RefundRejected        RefundStatus = "rejected"
	RefundProcessedStatus RefundStatus = "processed"
)

type RefundRecord struct {
	RefundID        string       `json:"refund_id" db:"refund_id"`
	PaymentID       string       `json:"payment_id" db:"payment_id"`
	Amount          int64        `json:"amount" db:"amount"`
	Currency        string       `json:"currency" db:"currency"`
	Reason          string       `json:"reason" db:"reason"`
	Status          RefundStatus `json:"status" db:"status"`
	GatewayRefundID string       `json:"gateway_refund_id" db:"gateway_refund_id"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
}
