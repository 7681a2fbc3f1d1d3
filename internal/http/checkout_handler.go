package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/manxbiltong/checkout/internal/logger"
	"github.com/manxbiltong/checkout/internal/service"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	service     service.CheckoutService
	policy      d.Policy
	timeout     time.Duration
	maxBodySize int64
	log         *zap.Logger
}

func NewCheckoutHandler(svc service.CheckoutService, policy d.Policy, timeout time.Duration, maxBodySize int64, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{
		service:     svc,
		policy:      policy,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

// POST /api/create-checkout-session
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	sub, err := DecodeSubmission(r.Body)
	if err != nil {
		h.reject(ctx, w, err)
		return
	}

	session, err := h.service.CreateSession(ctx, sub)
	if err != nil {
		h.reject(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutSessionResponseDTO{
		ID:       session.ID,
		URL:      session.URL,
		OrderRef: session.OrderRef,
	})
}

func (h *CheckoutHandler) reject(ctx context.Context, w http.ResponseWriter, err error) {
	logger.FromContext(ctx, h.log).Info("checkout rejected", zap.Error(err))
	handleCheckoutError(w, err, h.policy)
}
