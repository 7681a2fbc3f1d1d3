package service

import (
	"context"

	d "github.com/manxbiltong/checkout/domain"
)

type MockSessions struct {
	session *d.CheckoutSession
	err     error
	calls   int
	got     *d.SessionRequest
}

func (m *MockSessions) CreateSession(_ context.Context, req *d.SessionRequest) (*d.CheckoutSession, error) {
	m.calls++
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	s := *m.session
	return &s, nil
}

type MockPublisher struct {
	events []*d.CheckoutEvent
	err    error
	ctxErr error
}

func (m *MockPublisher) Publish(ctx context.Context, event *d.CheckoutEvent) error {
	m.ctxErr = ctx.Err()
	m.events = append(m.events, event)
	return m.err
}

type MockNotifier struct {
	events []*d.CheckoutEvent
	err    error
}

func (m *MockNotifier) NotifyCheckout(_ context.Context, event *d.CheckoutEvent) error {
	m.events = append(m.events, event)
	return m.err
}

// blockingPublisher holds Publish until release is closed.
type blockingPublisher struct {
	started   chan struct{}
	release   chan struct{}
	published int
}

func (m *blockingPublisher) Publish(ctx context.Context, _ *d.CheckoutEvent) error {
	close(m.started)
	select {
	case <-m.release:
		m.published++
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
