package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *d.CheckoutEvent {
	return &d.CheckoutEvent{
		OrderRef:  "ref-42",
		SessionID: "cs_test_42",
		Region:    "IM",
		Currency:  "GBP",
		LineItems: []d.LineItem{
			{Description: "Original Biltong", UnitAmount: 450, Quantity: 2},
			{Description: "Delivery (IM)", UnitAmount: 150, Quantity: 1},
		},
		TotalMinorUnits: 1050,
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewSendGridNotifier_Validation(t *testing.T) {
	_, err := NewSendGridNotifier("", "a@b.c", "d@e.f")
	assert.Error(t, err)
	_, err = NewSendGridNotifier("key", "", "d@e.f")
	assert.Error(t, err)
	_, err = NewSendGridNotifier("key", "a@b.c", "")
	assert.Error(t, err)
}

func TestNotifyCheckout_SendsSummary(t *testing.T) {
	var sent *mail.SGMailV3
	n, err := newNotifier("shop@example.com", "orders@example.com", func(_ context.Context, msg *mail.SGMailV3) (*rest.Response, error) {
		sent = msg
		return &rest.Response{StatusCode: 202}, nil
	})
	require.NoError(t, err)

	require.NoError(t, n.NotifyCheckout(context.Background(), testEvent()))
	require.NotNil(t, sent)
	assert.Equal(t, "New checkout ref-42 (10.50 GBP)", sent.Subject)
	assert.Equal(t, "shop@example.com", sent.From.Address)
	require.Len(t, sent.Personalizations, 1)
	assert.Equal(t, "orders@example.com", sent.Personalizations[0].To[0].Address)
	require.NotEmpty(t, sent.Content)
	assert.Contains(t, sent.Content[0].Value, "2 x Original Biltong @ 4.50 GBP = 9.00 GBP")
	assert.Contains(t, sent.Content[0].Value, "1 x Delivery (IM) @ 1.50 GBP = 1.50 GBP")
	assert.Contains(t, sent.Content[0].Value, "Total: 10.50 GBP")
}

func TestNotifyCheckout_ErrorStatus(t *testing.T) {
	n, err := newNotifier("a@b.c", "d@e.f", func(context.Context, *mail.SGMailV3) (*rest.Response, error) {
		return &rest.Response{StatusCode: 401, Body: "unauthorized"}, nil
	})
	require.NoError(t, err)

	err = n.NotifyCheckout(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestNotifyCheckout_TransportError(t *testing.T) {
	n, err := newNotifier("a@b.c", "d@e.f", func(context.Context, *mail.SGMailV3) (*rest.Response, error) {
		return nil, errors.New("timeout")
	})
	require.NoError(t, err)

	err = n.NotifyCheckout(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.05 GBP", formatAmount(5, "GBP"))
	assert.Equal(t, "19.99 GBP", formatAmount(1999, "GBP"))
	assert.Equal(t, "0.00 GBP", formatAmount(0, "GBP"))
}
