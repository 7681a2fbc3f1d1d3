package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	d "github.com/manxbiltong/checkout/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status is already written; a failed encode means the client went away
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCheckoutError converts checkout failures into client-facing messages.
func handleCheckoutError(w http.ResponseWriter, err error, policy d.Policy) {
	var upstream *d.UpstreamError

	switch {
	case errors.Is(err, errMissingCartOrRegion):
		respondError(w, http.StatusBadRequest, "malformed_input", "Missing cart or region")
	case errors.Is(err, d.ErrMalformedInput):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid cart",
			Code:    "malformed_input",
			Details: err.Error(),
		})
	case errors.Is(err, d.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "Cart is empty")
	case errors.Is(err, d.ErrUnsupportedRegion):
		respondError(w, http.StatusBadRequest, "unsupported_region",
			fmt.Sprintf("We only deliver to %s.", policy.DisplayRegion()))
	case errors.Is(err, d.ErrQuantityLimitExceeded):
		respondError(w, http.StatusBadRequest, "quantity_limit_exceeded",
			fmt.Sprintf("Maximum %d items per order", policy.MaxTotalQuantity))
	case errors.Is(err, d.ErrPaymentProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, "payment_unavailable", "Payment provider unavailable")
	case errors.As(err, &upstream):
		respondError(w, http.StatusInternalServerError, "upstream_error", upstream.Message)
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
