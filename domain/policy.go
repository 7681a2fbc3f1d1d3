package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultAllowedRegion    = "IM"
	DefaultRegionName       = "the Isle of Man"
	DefaultMaxTotalQuantity = 15
	DefaultDeliveryFee      = 150
	DefaultCurrency         = "GBP"

	// MaxUnitAmount is the largest unit amount (in minor units) the payment provider accepts.
	MaxUnitAmount = 99999999
)

// Policy holds the storefront business rules applied to every cart.
type Policy struct {
	AllowedRegion    string `yaml:"allowed_region"`
	RegionName       string `yaml:"region_name"`
	MaxTotalQuantity int64  `yaml:"max_total_quantity"`
	DeliveryFee      int64  `yaml:"delivery_fee_minor_units"`
	Currency         string `yaml:"currency"`
}

func DefaultPolicy() Policy {
	return Policy{
		AllowedRegion:    DefaultAllowedRegion,
		RegionName:       DefaultRegionName,
		MaxTotalQuantity: DefaultMaxTotalQuantity,
		DeliveryFee:      DefaultDeliveryFee,
		Currency:         DefaultCurrency,
	}
}

func (p Policy) Validate() error {
	var errs []error
	if strings.TrimSpace(p.AllowedRegion) == "" {
		errs = append(errs, errors.New("allowed_region is empty"))
	}
	if p.MaxTotalQuantity <= 0 {
		errs = append(errs, fmt.Errorf("max_total_quantity must be positive, got %d", p.MaxTotalQuantity))
	}
	if p.DeliveryFee < 0 || p.DeliveryFee > MaxUnitAmount {
		errs = append(errs, fmt.Errorf("delivery_fee_minor_units out of range: %d", p.DeliveryFee))
	}
	if len(p.Currency) != 3 {
		errs = append(errs, fmt.Errorf("currency must be a 3-letter ISO code, got %q", p.Currency))
	}
	return errors.Join(errs...)
}

// DeliveryDescription is the line item description used for the delivery fee.
func (p Policy) DeliveryDescription() string {
	return fmt.Sprintf("Delivery (%s)", p.AllowedRegion)
}

// DisplayRegion is the human readable name of the allowed region.
func (p Policy) DisplayRegion() string {
	if p.RegionName != "" {
		return p.RegionName
	}
	return p.AllowedRegion
}
