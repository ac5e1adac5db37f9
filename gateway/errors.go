package gateway

import "fmt"

// TransientError marks a gateway failure worth retrying: timeouts, 5xx,
// rate limiting. The retry policy keeps retrying these until its attempt
// budget runs out.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	return fmt.Sprintf("transient gateway error: %v", e.Err)
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a definitive gateway rejection (card declined, invalid
// request). Never retried, surfaced to the caller immediately.
type PermanentError struct {
	Code    string
	Message string
}

func (e PermanentError) Error() string {
	return fmt.Sprintf("gateway rejected request: %s (%s)", e.Message, e.Code)
}
