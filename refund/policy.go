// Package refund computes refund eligibility for booking cancellations.
// It is a pure function of amounts, timestamps and policy configuration;
// issuing the refund is the gateway adapter's job.
package refund

import "time"

type ReasonCode string

const (
	ReasonFullRefund       ReasonCode = "full_refund"
	ReasonLateCancellation ReasonCode = "late_cancellation_fee"
	ReasonSessionStarted   ReasonCode = "no_refund_after_start"
)

// Policy holds the business thresholds. Values are configuration, not
// constants: defaults below match the standard terms but deployments
// override them.
type Policy struct {
	// CancellationDeadline is how long before session start a cancellation
	// still earns a full refund.
	CancellationDeadline time.Duration

	// LateFeePercent of the paid amount is retained when cancelling after
	// the deadline but before session start.
	LateFeePercent int
}

func DefaultPolicy() Policy {
	return Policy{
		CancellationDeadline: 48 * time.Hour,
		LateFeePercent:       50,
	}
}

type Computation struct {
	EligibleAmount int64      `json:"eligible_amount"`
	FeeRetained    int64      `json:"fee_retained"`
	Reason         ReasonCode `json:"reason"`
}

// Compute returns the refundable amount for a booking paid paidAmount whose
// session starts at sessionStart, cancelled at cancelledAt.
func Compute(p Policy, paidAmount int64, sessionStart, cancelledAt time.Time) Computation {
	if !cancelledAt.Before(sessionStart) {
		return Computation{
			EligibleAmount: 0,
			FeeRetained:    paidAmount,
			Reason:         ReasonSessionStarted,
		}
	}

	deadline := sessionStart.Add(-p.CancellationDeadline)
	if cancelledAt.Before(deadline) {
		return Computation{
			EligibleAmount: paidAmount,
			FeeRetained:    0,
			Reason:         ReasonFullRefund,
		}
	}

	fee := paidAmount * int64(p.LateFeePercent) / 100
	return Computation{
		EligibleAmount: paidAmount - fee,
		FeeRetained:    fee,
		Reason:         ReasonLateCancellation,
	}
}
