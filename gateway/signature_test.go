package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursebook/entity"
)

func TestSignatureVerifier(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"charge.captured"}`)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	verifier := NewSignatureVerifier(secret, 5*time.Minute)
	verifier.now = func() time.Time { return now }

	t.Run("valid signature passes", func(t *testing.T) {
		header := Sign([]byte(secret), payload, now)
		assert.NoError(t, verifier.Verify(payload, header))
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		header := Sign([]byte(secret), payload, now)
		err := verifier.Verify([]byte(`{"id":"evt_1","type":"refund.processed"}`), header)
		assert.ErrorIs(t, err, entity.ErrVerificationFailed)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		header := Sign([]byte("whsec_other"), payload, now)
		err := verifier.Verify(payload, header)
		assert.ErrorIs(t, err, entity.ErrVerificationFailed)
	})

	t.Run("stale timestamp fails", func(t *testing.T) {
		header := Sign([]byte(secret), payload, now.Add(-time.Hour))
		err := verifier.Verify(payload, header)
		assert.ErrorIs(t, err, entity.ErrVerificationFailed)
	})

	t.Run("garbage header fails", func(t *testing.T) {
		for _, header := range []string{"", "t=abc,v1=def", "v1=deadbeef", "t=123"} {
			err := verifier.Verify(payload, header)
			assert.ErrorIs(t, err, entity.ErrVerificationFailed, "header %q", header)
		}
	})
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_42",
		"type": "charge.captured",
		"created": 1767225600,
		"data": {
			"booking_id": "booking-1",
			"gateway_reference": "ch_123",
			"amount": 15000,
			"currency": "EUR"
		}
	}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "evt_42", event.ExternalID)
	assert.Equal(t, entity.GatewayEventChargeCaptured, event.Type)
	assert.Equal(t, "booking-1", event.BookingID)
	assert.Equal(t, "ch_123", event.GatewayReference)
	assert.Equal(t, int64(15000), event.Amount)
	assert.Equal(t, payload, event.RawPayload)
}

func TestParseEventUnknownType(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_9","type":"charge.disputed","created":1767225600,"data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, entity.GatewayEventUnknown, event.Type)
}

func TestParseEventMissingID(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"charge.captured"}`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, entity.ErrVerificationFailed))
}
