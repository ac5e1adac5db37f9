package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coursebook/entity"
)

type CreateChargeRequest struct {
	BookingReference string `json:"booking_reference"`
	Attempt          int    `json:"-"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	CustomerEmail    string `json:"customer_email"`
}

// IdempotencyKey is derived deterministically from the booking reference and
// attempt counter, so a network-level retry of the same attempt can never
// open two charges.
func (r CreateChargeRequest) IdempotencyKey() string {
	return fmt.Sprintf("%s/charge/%d", r.BookingReference, r.Attempt)
}

type CreateChargeResponse struct {
	GatewayReference string `json:"gateway_reference"`
	PaymentURL       string `json:"payment_url"`
}

type IssueRefundRequest struct {
	GatewayReference string `json:"gateway_reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	IdempotencyKey   string `json:"-"`
}

type IssueRefundResponse struct {
	GatewayRefundID string `json:"refund_id"`
	Status          string `json:"status"`
}

// PaymentClient talks to the external payment gateway. All calls run through
// the injected RetryPolicy; it never holds any booking or capacity lock.
type PaymentClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
}

func NewPaymentClient(baseURL, apiKey string, retry RetryPolicy) *PaymentClient {
	return &PaymentClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: retry,
	}
}

func (c *PaymentClient) CreateCharge(ctx context.Context, request CreateChargeRequest) (CreateChargeResponse, error) {
	var response CreateChargeResponse
	err := c.retry.Execute(ctx, func() error {
		return c.post(ctx, "/v1/charges", request.IdempotencyKey(), request, &response)
	})
	if err != nil {
		return CreateChargeResponse{}, fmt.Errorf("could not create charge for %s: %w", request.BookingReference, err)
	}

	return response, nil
}

func (c *PaymentClient) IssueRefund(ctx context.Context, request IssueRefundRequest) (IssueRefundResponse, error) {
	var response IssueRefundResponse
	err := c.retry.Execute(ctx, func() error {
		return c.post(ctx, "/v1/refunds", request.IdempotencyKey, request, &response)
	})
	if err != nil {
		return IssueRefundResponse{}, fmt.Errorf("could not refund %s: %w", request.GatewayReference, err)
	}

	return response, nil
}

func (c *PaymentClient) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return TransientError{Err: fmt.Errorf("gateway returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		var gatewayErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&gatewayErr); err != nil {
			gatewayErr.Code = "unknown"
			gatewayErr.Message = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return PermanentError{Code: gatewayErr.Code, Message: gatewayErr.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode gateway response: %w", err)
	}

	return nil
}

// ParseEvent decodes a verified webhook payload into the closed gateway
// event variant set. Unrecognized types come back as GatewayEventUnknown
// rather than an error; the reconciliation ledger records them as-is.
func ParseEvent(payload []byte) (entity.GatewayEvent, error) {
	var raw struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			BookingID        string `json:"booking_id"`
			GatewayReference string `json:"gateway_reference"`
			RefundID         string `json:"refund_id"`
			Amount           int64  `json:"amount"`
			Currency         string `json:"currency"`
			FailureReason    string `json:"failure_reason"`
		} `json:"data"`
	}

	if err := json.Unmarshal(payload, &raw); err != nil {
		return entity.GatewayEvent{}, fmt.Errorf("could not parse gateway event: %w", err)
	}
	if raw.ID == "" {
		return entity.GatewayEvent{}, fmt.Errorf("gateway event is missing an id")
	}

	return entity.GatewayEvent{
		ExternalID:       raw.ID,
		Type:             entity.ParseGatewayEventType(raw.Type),
		BookingID:        raw.Data.BookingID,
		GatewayReference: raw.Data.GatewayReference,
		GatewayRefundID:  raw.Data.RefundID,
		Amount:           raw.Data.Amount,
		Currency:         raw.Data.Currency,
		FailureReason:    raw.Data.FailureReason,
		OccurredAt:       time.Unix(raw.Created, 0).UTC(),
		RawPayload:       payload,
	}, nil
}
