package service

import (
	"fmt"
	"strings"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/shopspring/decimal"
)

var maxUnitAmount = decimal.NewFromInt(d.MaxUnitAmount)

// ValidateAndCompose applies the storefront policy to a cart and turns it into
// the line items sent to the payment provider. It has no side effects: the
// same submission and policy always yield the same result.
//
// Checks run in a fixed order: item shape, empty cart, region, total quantity.
// The delivery fee, when configured, is appended as the last line item.
func ValidateAndCompose(sub d.CartSubmission, policy d.Policy) ([]d.LineItem, error) {
	if strings.TrimSpace(sub.Region) == "" {
		return nil, fmt.Errorf("%w: region is required", d.ErrMalformedInput)
	}

	amounts := make([]int64, len(sub.Items))
	for i, item := range sub.Items {
		amount, err := checkItem(i, item)
		if err != nil {
			return nil, err
		}
		amounts[i] = amount
	}

	if len(sub.Items) == 0 {
		return nil, d.ErrEmptyCart
	}

	if sub.Region != policy.AllowedRegion {
		return nil, fmt.Errorf("%w: %q", d.ErrUnsupportedRegion, sub.Region)
	}

	if exceedsQuantity(sub.Items, policy.MaxTotalQuantity) {
		return nil, fmt.Errorf("%w: limit is %d", d.ErrQuantityLimitExceeded, policy.MaxTotalQuantity)
	}

	lineItems := make([]d.LineItem, 0, len(sub.Items)+1)
	for i, item := range sub.Items {
		lineItems = append(lineItems, d.LineItem{
			Description: item.Name,
			UnitAmount:  amounts[i],
			Quantity:    item.Qty,
		})
	}

	if policy.DeliveryFee > 0 {
		lineItems = append(lineItems, d.LineItem{
			Description: policy.DeliveryDescription(),
			UnitAmount:  policy.DeliveryFee,
			Quantity:    1,
		})
	}

	return lineItems, nil
}

// MinorUnits converts a currency amount to minor units, rounding half away from zero.
func MinorUnits(price decimal.Decimal) decimal.Decimal {
	return price.Shift(2).Round(0)
}

func checkItem(i int, item d.CartItem) (int64, error) {
	if strings.TrimSpace(item.Name) == "" {
		return 0, fmt.Errorf("%w: item %d has no name", d.ErrMalformedInput, i)
	}
	if item.Price.IsNegative() {
		return 0, fmt.Errorf("%w: item %d has a negative price", d.ErrMalformedInput, i)
	}
	if item.Qty <= 0 {
		return 0, fmt.Errorf("%w: item %d quantity must be positive", d.ErrMalformedInput, i)
	}

	amount := MinorUnits(item.Price)
	if amount.GreaterThan(maxUnitAmount) {
		return 0, fmt.Errorf("%w: item %d price is too large", d.ErrMalformedInput, i)
	}
	return amount.IntPart(), nil
}

// exceedsQuantity stops summing as soon as the limit is passed so huge
// quantities cannot overflow the total.
func exceedsQuantity(items []d.CartItem, limit int64) bool {
	var total int64
	for _, item := range items {
		if item.Qty > limit-total {
			return true
		}
		total += item.Qty
	}
	return false
}
