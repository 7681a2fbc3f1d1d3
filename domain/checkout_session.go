package domain

// SessionRequest is everything the payment provider needs to open a hosted checkout.
type SessionRequest struct {
	OrderRef               string
	LineItems              []LineItem
	Currency               string
	SuccessURL             string
	CancelURL              string
	AllowedShippingCountry string
	Metadata               map[string]string
}

// CheckoutSession is the provider's answer: an opaque id and, when available,
// the hosted page the customer should be redirected to.
type CheckoutSession struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	OrderRef string `json:"order_ref"`
}
