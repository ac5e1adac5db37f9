package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	policy := Policy{
		CancellationDeadline: 48 * time.Hour,
		LateFeePercent:       50,
	}
	sessionStart := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		cancelledAt time.Time
		paidAmount  int64
		want        Computation
	}{
		{
			name:        "well before deadline gets full refund",
			cancelledAt: sessionStart.Add(-72 * time.Hour),
			paidAmount:  20000,
			want:        Computation{EligibleAmount: 20000, FeeRetained: 0, Reason: ReasonFullRefund},
		},
		{
			name:        "ten hours before start retains late fee",
			cancelledAt: sessionStart.Add(-10 * time.Hour),
			paidAmount:  20000,
			want:        Computation{EligibleAmount: 10000, FeeRetained: 10000, Reason: ReasonLateCancellation},
		},
		{
			name:        "exactly at deadline counts as late",
			cancelledAt: sessionStart.Add(-48 * time.Hour),
			paidAmount:  10000,
			want:        Computation{EligibleAmount: 5000, FeeRetained: 5000, Reason: ReasonLateCancellation},
		},
		{
			name:        "after session start refunds nothing",
			cancelledAt: sessionStart.Add(time.Hour),
			paidAmount:  20000,
			want:        Computation{EligibleAmount: 0, FeeRetained: 20000, Reason: ReasonSessionStarted},
		},
		{
			name:        "at session start refunds nothing",
			cancelledAt: sessionStart,
			paidAmount:  20000,
			want:        Computation{EligibleAmount: 0, FeeRetained: 20000, Reason: ReasonSessionStarted},
		},
		{
			name:        "odd amount rounds fee down",
			cancelledAt: sessionStart.Add(-time.Hour),
			paidAmount:  101,
			want:        Computation{EligibleAmount: 51, FeeRetained: 50, Reason: ReasonLateCancellation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(policy, tt.paidAmount, sessionStart, tt.cancelledAt)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeNeverRefundsMoreThanPaid(t *testing.T) {
	policy := DefaultPolicy()
	sessionStart := time.Now().Add(24 * time.Hour)

	for _, amount := range []int64{0, 1, 99, 100, 12345, 1000000} {
		got := Compute(policy, amount, sessionStart, time.Now())
		assert.LessOrEqual(t, got.EligibleAmount, amount)
		assert.Equal(t, amount, got.EligibleAmount+got.FeeRetained)
		assert.GreaterOrEqual(t, got.EligibleAmount, int64(0))
	}
}
