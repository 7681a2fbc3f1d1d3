package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
)

type sendFunc func(ctx context.Context, msg *mail.SGMailV3) (*rest.Response, error)

// SendGridNotifier mails the shop's order inbox whenever a checkout is opened.
type SendGridNotifier struct {
	from string
	to   string
	send sendFunc
}

func NewSendGridNotifier(apiKey, from, to string) (*SendGridNotifier, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is empty")
	}
	client := sendgrid.NewSendClient(apiKey)
	return newNotifier(from, to, client.SendWithContext)
}

func newNotifier(from, to string, send sendFunc) (*SendGridNotifier, error) {
	if from == "" {
		return nil, errors.New("from address is empty")
	}
	if to == "" {
		return nil, errors.New("to address is empty")
	}
	return &SendGridNotifier{from: from, to: to, send: send}, nil
}

func (n *SendGridNotifier) NotifyCheckout(ctx context.Context, event *d.CheckoutEvent) error {
	subject := fmt.Sprintf("New checkout %s (%s)", event.OrderRef, formatAmount(event.TotalMinorUnits, event.Currency))
	body := renderBody(event)

	message := mail.NewSingleEmail(
		mail.NewEmail("Storefront", n.from),
		subject,
		mail.NewEmail("", n.to),
		body,
		fmt.Sprintf("<pre>%s</pre>", html.EscapeString(body)),
	)

	response, err := n.send(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}
	return nil
}

func renderBody(event *d.CheckoutEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order reference: %s\n", event.OrderRef)
	fmt.Fprintf(&b, "Payment session: %s\n", event.SessionID)
	fmt.Fprintf(&b, "Region: %s\n\n", event.Region)
	for _, item := range event.LineItems {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n",
			item.Quantity,
			item.Description,
			formatAmount(item.UnitAmount, event.Currency),
			formatAmount(item.Subtotal(), event.Currency))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", formatAmount(event.TotalMinorUnits, event.Currency))
	return b.String()
}

func formatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + currency
}
