package domain

import "github.com/shopspring/decimal"

// CartItem is a single storefront cart entry as submitted by the client.
type CartItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int64           `json:"qty"`
}

// CartSubmission is the whole cart plus the delivery region it should ship to.
type CartSubmission struct {
	Items  []CartItem `json:"cart"`
	Region string     `json:"region"`
}

func (s CartSubmission) TotalQuantity() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.Qty
	}
	return total
}

// LineItem is a priced entry handed to the payment provider.
// UnitAmount is expressed in currency minor units (pence for GBP).
type LineItem struct {
	Description string `json:"description"`
	UnitAmount  int64  `json:"unit_amount"`
	Quantity    int64  `json:"quantity"`
}

func (l LineItem) Subtotal() int64 {
	return l.UnitAmount * l.Quantity
}

// TotalMinorUnits sums the subtotals of all line items.
func TotalMinorUnits(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
