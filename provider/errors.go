package provider

import "errors"

// ErrRateLimited marks errors caused by a vendor request-rate quota.
// Provider error types report membership in this class through an
// Is(error) bool method, so classification survives wrapping:
//
//	if provider.IsRateLimited(err) {
//	    // back off and retry
//	}
//
// Only this class is ever retried; auth, transport and malformed-request
// errors surface immediately.
var ErrRateLimited = errors.New("rate limited")

// IsRateLimited reports whether err is classified as a rate-limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
