package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableCloseCode classifies websocket close codes worth reconnecting
// after. Normal closure and policy violations are server decisions and must
// not trigger a reconnect.
func IsRetryableCloseCode(code int) bool {
	switch code {
	case 1000, 1008:
		return false
	default:
		return true
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration. No
// jitter: doubling with a hard cap keeps reconnect timing predictable for
// the bounded retry policy.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
