package gateway

import (
	"context"
	"fmt"
	"sync"
)

// PaymentMock stands in for the gateway in tests. Charges and refunds are
// keyed by idempotency key, so repeated calls with the same key return the
// same result instead of creating duplicates.
type PaymentMock struct {
	lock sync.Mutex

	Charges map[string]CreateChargeRequest
	Refunds map[string]IssueRefundRequest

	// FailRefundsWith, when set, is returned from IssueRefund.
	FailRefundsWith error
}

func (c *PaymentMock) CreateCharge(ctx context.Context, request CreateChargeRequest) (CreateChargeResponse, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Charges == nil {
		c.Charges = make(map[string]CreateChargeRequest)
	}

	key := request.IdempotencyKey()
	c.Charges[key] = request

	return CreateChargeResponse{
		GatewayReference: "ch_mock_" + request.BookingReference,
		PaymentURL:       "https://gateway.example/pay/" + request.BookingReference,
	}, nil
}

func (c *PaymentMock) IssueRefund(ctx context.Context, request IssueRefundRequest) (IssueRefundResponse, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.FailRefundsWith != nil {
		return IssueRefundResponse{}, c.FailRefundsWith
	}

	if c.Refunds == nil {
		c.Refunds = make(map[string]IssueRefundRequest)
	}

	c.Refunds[request.IdempotencyKey] = request

	return IssueRefundResponse{
		GatewayRefundID: fmt.Sprintf("re_mock_%d", len(c.Refunds)),
		Status:          "pending",
	}, nil
}

func (c *PaymentMock) RefundCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.Refunds)
}

func (c *PaymentMock) ChargeCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.Charges)
}
