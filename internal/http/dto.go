package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/shopspring/decimal"
)

var (
	errMissingCartOrRegion = fmt.Errorf("%w: missing cart or region", d.ErrMalformedInput)
	errQuotedNumber        = errors.New("number must not be quoted")
	errNumberOutOfRange    = errors.New("number exponent is out of range")
	maxQty                 = decimal.NewFromInt(math.MaxInt32)
)

// maxExponent bounds the decimal exponent of a wire number. Rescaling a
// decimal costs 10^|exp|, so 1e10000000 must be refused before any arithmetic.
const maxExponent = 18

// Number is a JSON number decoded without loss of precision. Numbers sent
// as strings are rejected, as are exponents beyond ±maxExponent.
type Number struct {
	decimal.Decimal
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return errQuotedNumber
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(b); err != nil {
		return err
	}
	if exp := v.Exponent(); exp < -maxExponent || exp > maxExponent {
		return errNumberOutOfRange
	}
	n.Decimal = v
	return nil
}

type CartItemDTO struct {
	Name  *string `json:"name"`
	Price *Number `json:"price"`
	Qty   *Number `json:"qty"`
}

type CreateSessionRequestDTO struct {
	Cart   []CartItemDTO `json:"cart"`
	Region *string       `json:"region"`
}

type CheckoutSessionResponseDTO struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	OrderRef string `json:"order_ref,omitempty"`
}

// DecodeSubmission parses the request body into a cart submission. Shape
// problems (wrong JSON types, missing fields) come back as ErrMalformedInput;
// business rules are left to the composer.
func DecodeSubmission(body io.Reader) (d.CartSubmission, error) {
	var req CreateSessionRequestDTO
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return d.CartSubmission{}, errMissingCartOrRegion
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return d.CartSubmission{}, fmt.Errorf("%w: request body too large", d.ErrMalformedInput)
		}
		return d.CartSubmission{}, fmt.Errorf("%w: invalid JSON body: %v", d.ErrMalformedInput, err)
	}
	return req.toSubmission()
}

func (r CreateSessionRequestDTO) toSubmission() (d.CartSubmission, error) {
	if r.Region == nil || strings.TrimSpace(*r.Region) == "" {
		return d.CartSubmission{}, errMissingCartOrRegion
	}

	items := make([]d.CartItem, len(r.Cart))
	for i, dto := range r.Cart {
		item, err := dto.toCartItem(i)
		if err != nil {
			return d.CartSubmission{}, err
		}
		items[i] = item
	}

	return d.CartSubmission{
		Items:  items,
		Region: *r.Region,
	}, nil
}

func (c CartItemDTO) toCartItem(i int) (d.CartItem, error) {
	switch {
	case c.Name == nil:
		return d.CartItem{}, fmt.Errorf("%w: item %d is missing name", d.ErrMalformedInput, i)
	case c.Price == nil:
		return d.CartItem{}, fmt.Errorf("%w: item %d is missing price", d.ErrMalformedInput, i)
	case c.Qty == nil:
		return d.CartItem{}, fmt.Errorf("%w: item %d is missing qty", d.ErrMalformedInput, i)
	}
	if !c.Qty.IsInteger() {
		return d.CartItem{}, fmt.Errorf("%w: item %d qty must be a whole number", d.ErrMalformedInput, i)
	}
	if c.Qty.Abs().GreaterThan(maxQty) {
		return d.CartItem{}, fmt.Errorf("%w: item %d qty is out of range", d.ErrMalformedInput, i)
	}

	return d.CartItem{
		Name:  *c.Name,
		Price: c.Price.Decimal,
		Qty:   c.Qty.IntPart(),
	}, nil
}
