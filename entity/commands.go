package entity

// IssueRefund asks the payment gateway adapter to execute an already-approved
// refund. Policy decided the amount; this command only carries it out.
type IssueRefund struct {
	Header           EventHeader `json:"header"`
	BookingID        string      `json:"booking_id"`
	PaymentID        string      `json:"payment_id"`
	RefundID         string      `json:"refund_id"`
	GatewayReference string      `json:"gateway_reference"`
	Amount           int64       `json:"amount"`
	Currency         string      `json:"currency"`
}
