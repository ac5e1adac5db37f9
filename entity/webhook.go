package entity

import "time"

// GatewayEventType is the closed set of payment-gateway notifications the
// core understands. Anything else parses to GatewayEventUnknown and is
// recorded without touching booking state.
type GatewayEventType string

const (
	GatewayEventChargeAuthorized GatewayEventType = "charge.authorized"
	GatewayEventChargeCaptured   GatewayEventType = "charge.captured"
	GatewayEventChargeFailed     GatewayEventType = "charge.failed"
	GatewayEventRefundProcessed  GatewayEventType = "refund.processed"
	GatewayEventUnknown          GatewayEventType = "unknown"
)

func ParseGatewayEventType(s string) GatewayEventType {
	switch GatewayEventType(s) {
	case GatewayEventChargeAuthorized, GatewayEventChargeCaptured,
		GatewayEventChargeFailed, GatewayEventRefundProcessed:
		return GatewayEventType(s)
	}
	return GatewayEventUnknown
}

// GatewayEvent is a verified, parsed webhook notification. ExternalID is the
// gateway's own event id and doubles as the idempotency key: the
// reconciliation ledger applies each id at most once.
type GatewayEvent struct {
	ExternalID       string
	Type             GatewayEventType
	BookingID        string
	GatewayReference string
	GatewayRefundID  string
	Amount           int64
	Currency         string
	FailureReason    string
	OccurredAt       time.Time
	RawPayload       []byte
}

// WebhookEvent is the persisted ledger entry for a received gateway event.
type WebhookEvent struct {
	ExternalID  string    `db:"external_id"`
	EventType   string    `db:"event_type"`
	Payload     []byte    `db:"payload"`
	ReceivedAt  time.Time `db:"received_at"`
	ProcessedAt time.Time `db:"processed_at"`
}

// ReconciliationReview records a webhook that was durably received but could
// not be matched to a valid booking transition. A lost payment event is a
// financial-integrity incident, so these are kept for manual review instead
// of being dropped.
type ReconciliationReview struct {
	ReviewID   string    `db:"review_id"`
	ExternalID string    `db:"external_id"`
	BookingID  string    `db:"booking_id"`
	Reason     string    `db:"reason"`
	CreatedAt  time.Time `db:"created_at"`
}
