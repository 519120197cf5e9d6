package reliability

import "time"

// Policy bounds the retry loop around one external collaborator call.
// MaxAttempts counts retries after the first try; Delay grows from Base by
// doubling and never exceeds Cap.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// Delay returns the pause before retry number attempt (0-based, so attempt 0
// is the wait before the first retry).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// IsRetryableHTTPStatus reports whether a collaborator response is worth a
// retry: throttling and transient upstream failures, never client errors.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
