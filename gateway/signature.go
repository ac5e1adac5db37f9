package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coursebook/entity"
)

// SignatureHeader carries the gateway's webhook signature:
// "t=<unix timestamp>,v1=<hex hmac-sha256 of '<timestamp>.<payload>'>".
const SignatureHeader = "Payment-Signature"

type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(secret string, tolerance time.Duration) SignatureVerifier {
	return SignatureVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify checks the signature header against the raw payload. Any failure
// maps to entity.ErrVerificationFailed so callers can discard the event
// without inspecting details.
func (v SignatureVerifier) Verify(payload []byte, header string) error {
	ts, signature, err := parseSignatureHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrVerificationFailed, err)
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", entity.ErrVerificationFailed)
	}

	expected := computeSignature(v.secret, payload, ts)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", entity.ErrVerificationFailed)
	}

	return nil
}

// Sign produces a valid signature header for the payload. The mock gateway
// and tests use it; the real gateway signs on its side.
func Sign(secret []byte, payload []byte, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), computeSignature(secret, payload, ts.Unix()))
}

func computeSignature(secret, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (ts int64, signature string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return 0, "", fmt.Errorf("malformed signature part %q", part)
		}
		switch key {
		case "t":
			ts, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("malformed timestamp: %v", err)
			}
		case "v1":
			signature = value
		}
	}

	if ts == 0 || signature == "" {
		return 0, "", fmt.Errorf("signature header incomplete")
	}

	return ts, signature, nil
}
