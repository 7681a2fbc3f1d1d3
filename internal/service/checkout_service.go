package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	d "github.com/manxbiltong/checkout/domain"
	"github.com/manxbiltong/checkout/internal/logger"
	"go.uber.org/zap"
)

// SessionCreator opens a hosted checkout with the payment provider.
type SessionCreator interface {
	CreateSession(ctx context.Context, req *d.SessionRequest) (*d.CheckoutSession, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *d.CheckoutEvent) error
}

type Notifier interface {
	NotifyCheckout(ctx context.Context, event *d.CheckoutEvent) error
}

type CheckoutService interface {
	CreateSession(ctx context.Context, sub d.CartSubmission) (*d.CheckoutSession, error)
}

// Options carries the checkout settings that are not part of the cart policy.
type Options struct {
	SuccessURL             string
	CancelURL              string
	AllowedShippingCountry string
	AdminEmail             string
	SideEffectTimeout      time.Duration
}

type CheckoutServiceImpl struct {
	policy    d.Policy
	opts      Options
	sessions  SessionCreator
	publisher EventPublisher
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
	newRef    func() string

	sideEffects sync.WaitGroup
}

var errNoSession = errors.New("payment provider returned no session")

func NewCheckoutService(
	policy d.Policy,
	opts Options,
	sessions SessionCreator,
	publisher EventPublisher,
	notifier Notifier,
	log *zap.Logger,
) *CheckoutServiceImpl {
	if opts.SideEffectTimeout <= 0 {
		opts.SideEffectTimeout = 5 * time.Second
	}
	if opts.AllowedShippingCountry == "" {
		opts.AllowedShippingCountry = policy.AllowedRegion
	}
	return &CheckoutServiceImpl{
		policy:    policy,
		opts:      opts,
		sessions:  sessions,
		publisher: publisher,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		newRef:    func() string { return uuid.NewString() },
	}
}

// CreateSession validates the cart and asks the payment provider for a
// checkout session. The provider is called at most once; its failure is
// reported as ErrUpstreamSessionCreation and never retried here.
func (s *CheckoutServiceImpl) CreateSession(ctx context.Context, sub d.CartSubmission) (*d.CheckoutSession, error) {
	lineItems, err := ValidateAndCompose(sub, s.policy)
	if err != nil {
		return nil, err
	}

	orderRef := s.newRef()
	log := logger.FromContext(ctx, s.log).With(zap.String("order_ref", orderRef))

	req := &d.SessionRequest{
		OrderRef:               orderRef,
		LineItems:              lineItems,
		Currency:               s.policy.Currency,
		SuccessURL:             s.opts.SuccessURL,
		CancelURL:              s.opts.CancelURL,
		AllowedShippingCountry: s.opts.AllowedShippingCountry,
		Metadata: map[string]string{
			"order_ref": orderRef,
		},
	}
	if s.opts.AdminEmail != "" {
		req.Metadata["admin_email"] = s.opts.AdminEmail
	}

	session, err := s.sessions.CreateSession(ctx, req)
	if err != nil {
		log.Warn("payment session creation failed", zap.Error(err))
		return nil, &d.UpstreamError{Message: err.Error(), Err: err}
	}
	if session == nil {
		log.Warn("payment session creation failed", zap.Error(errNoSession))
		return nil, &d.UpstreamError{Message: errNoSession.Error(), Err: errNoSession}
	}
	session.OrderRef = orderRef

	log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.Int("line_items", len(lineItems)),
		zap.Int64("total_minor_units", d.TotalMinorUnits(lineItems)))

	s.afterCreate(ctx, log, &d.CheckoutEvent{
		OrderRef:        orderRef,
		SessionID:       session.ID,
		Region:          sub.Region,
		Currency:        s.policy.Currency,
		LineItems:       lineItems,
		TotalMinorUnits: d.TotalMinorUnits(lineItems),
		CreatedAt:       s.now().UTC(),
	})

	return session, nil
}

// Wait blocks until side effects started by CreateSession have finished.
func (s *CheckoutServiceImpl) Wait() {
	s.sideEffects.Wait()
}

// afterCreate starts the best-effort side effects in the background. Their
// failures are logged and never change the response: the session already
// exists at this point.
func (s *CheckoutServiceImpl) afterCreate(ctx context.Context, log *zap.Logger, event *d.CheckoutEvent) {
	if s.publisher == nil && s.notifier == nil {
		return
	}
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SideEffectTimeout)

	s.sideEffects.Add(1)
	go func() {
		defer s.sideEffects.Done()
		defer cancel()
		s.runSideEffects(sideCtx, log, event)
	}()
}

func (s *CheckoutServiceImpl) runSideEffects(sideCtx context.Context, log *zap.Logger, event *d.CheckoutEvent) {
	if s.publisher != nil {
		if err := s.publisher.Publish(sideCtx, event); err != nil {
			log.Error("failed to publish checkout event", zap.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyCheckout(sideCtx, event); err != nil {
			log.Error("failed to notify order inbox", zap.Error(err))
		}
	}
}
