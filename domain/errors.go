package domain

import "errors"

var (
	ErrMalformedInput             = errors.New("malformed checkout request")
	ErrEmptyCart                  = errors.New("cart is empty")
	ErrUnsupportedRegion          = errors.New("region is not supported")
	ErrQuantityLimitExceeded      = errors.New("total quantity exceeds the order limit")
	ErrUpstreamSessionCreation    = errors.New("payment session creation failed")
	ErrPaymentProviderUnavailable = errors.New("payment provider unavailable")
)

// UpstreamError reports a failed payment-session call. Message is the
// provider's own text and is shown to the client unchanged.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return "payment session creation failed: " + e.Message
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamSessionCreation, e.Err}
}
