package domain

import "time"

const EventCheckoutSessionCreated = "checkout.session.created"

// CheckoutEvent is emitted once a payment session has been opened for a cart.
type CheckoutEvent struct {
	OrderRef        string     `json:"order_ref"`
	SessionID       string     `json:"session_id"`
	Region          string     `json:"region"`
	Currency        string     `json:"currency"`
	LineItems       []LineItem `json:"line_items"`
	TotalMinorUnits int64      `json:"total_minor_units"`
	CreatedAt       time.Time  `json:"created_at"`
}
