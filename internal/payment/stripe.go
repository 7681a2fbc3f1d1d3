package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/manxbiltong/checkout/internal/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type StripeConfig struct {
	SecretKey string
	// APIURL overrides the Stripe API base URL (tests, stripe-mock).
	APIURL  string
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

// ProviderError is a failure reported by Stripe itself.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// StripeSessions creates Stripe Checkout Sessions. Network retries are
// disabled: a session is requested exactly once per call.
type StripeSessions struct {
	client  session.Client
	breaker *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	timeout time.Duration
	log     *zap.Logger
}

func NewStripeSessions(cfg StripeConfig, log *zap.Logger) (*StripeSessions, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultConfig("stripe-checkout")
	}
	if cfg.Breaker.IsSuccessful == nil {
		cfg.Breaker.IsSuccessful = countsAsSuccess
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		LeveledLogger:     log.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	return &StripeSessions{
		client: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		breaker: circuitbreaker.New[*stripe.CheckoutSession](cfg.Breaker, log),
		timeout: cfg.Timeout,
		log:     log,
	}, nil
}

func (s *StripeSessions) CreateSession(ctx context.Context, req *d.SessionRequest) (*d.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := sessionParams(req)
	params.Context = ctx

	sess, err := s.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		sess, err := s.client.New(params)
		if err != nil {
			return nil, providerError(err)
		}
		return sess, nil
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return nil, fmt.Errorf("%w: %w", d.ErrPaymentProviderUnavailable, err)
		}
		return nil, err
	}

	return &d.CheckoutSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

func sessionParams(req *d.SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems(req.LineItems, req.Currency),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	if req.OrderRef != "" {
		params.ClientReferenceID = stripe.String(req.OrderRef)
	}
	if req.AllowedShippingCountry != "" {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{req.AllowedShippingCountry}),
		}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func lineItems(items []d.LineItem, currency string) []*stripe.CheckoutSessionLineItemParams {
	currency = strings.ToLower(currency)
	out := make([]*stripe.CheckoutSessionLineItemParams, len(items))
	for i, item := range items {
		out[i] = &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Description),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		}
	}
	return out
}

func providerError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = err.Error()
		}
		return &ProviderError{
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Message:    msg,
		}
	}
	return err
}

// countsAsSuccess keeps request errors (bad card data, invalid params) from
// tripping the breaker. Only 5xx answers and transport failures count.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode > 0 && pe.StatusCode < http.StatusInternalServerError
	}
	return false
}
