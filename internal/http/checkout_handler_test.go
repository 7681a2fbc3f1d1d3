package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/manxbiltong/checkout/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type ServiceMock struct {
	session *d.CheckoutSession
	err     error
	calls   int
	got     d.CartSubmission
}

func (m *ServiceMock) CreateSession(_ context.Context, sub d.CartSubmission) (*d.CheckoutSession, error) {
	m.calls++
	m.got = sub
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

// composingMock runs the real composer so handler tests see real rejections.
type composingMock struct {
	ServiceMock
	policy d.Policy
}

func (m *composingMock) CreateSession(ctx context.Context, sub d.CartSubmission) (*d.CheckoutSession, error) {
	if _, err := service.ValidateAndCompose(sub, m.policy); err != nil {
		return nil, err
	}
	return m.ServiceMock.CreateSession(ctx, sub)
}

func newHandler(t *testing.T, svc service.CheckoutService) *CheckoutHandler {
	return NewCheckoutHandler(svc, d.DefaultPolicy(), 5*time.Second, 1<<20, zaptest.NewLogger(t))
}

func postCheckout(h *CheckoutHandler, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, CheckoutSessionPath, strings.NewReader(body))
	h.CreateSession(recorder, request)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	return response
}

func TestCreateSession_Success(t *testing.T) {
	mock := &composingMock{
		ServiceMock: ServiceMock{session: &d.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", OrderRef: "ref-1"}},
		policy:      d.DefaultPolicy(),
	}
	h := newHandler(t, mock)

	recorder := postCheckout(h, `{"cart":[{"name":"Original Biltong","price":4.50,"qty":2}],"region":"IM"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var response CheckoutSessionResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "cs_test_1", response.ID)
	assert.Equal(t, "ref-1", response.OrderRef)

	require.Equal(t, 1, mock.calls)
	require.Len(t, mock.got.Items, 1)
	assert.Equal(t, "Original Biltong", mock.got.Items[0].Name)
	assert.Equal(t, "4.5", mock.got.Items[0].Price.String())
	assert.Equal(t, int64(2), mock.got.Items[0].Qty)
}

func TestCreateSession_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{"unsupported region", `{"cart":[{"name":"X","price":1,"qty":1}],"region":"UK"}`, "unsupported_region", "We only deliver to the Isle of Man."},
		{"too many items", `{"cart":[{"name":"X","price":1,"qty":20}],"region":"IM"}`, "quantity_limit_exceeded", "Maximum 15 items per order"},
		{"empty cart", `{"cart":[],"region":"IM"}`, "empty_cart", "Cart is empty"},
		{"null cart", `{"cart":null,"region":"IM"}`, "empty_cart", "Cart is empty"},
		{"missing region", `{"cart":[{"name":"X","price":1,"qty":1}]}`, "malformed_input", "Missing cart or region"},
		{"blank region", `{"cart":[{"name":"X","price":1,"qty":1}],"region":"  "}`, "malformed_input", "Missing cart or region"},
		{"empty body", ``, "malformed_input", "Missing cart or region"},
		{"invalid json", `invalid json`, "malformed_input", "Invalid cart"},
		{"cart not an array", `{"cart":"lots","region":"IM"}`, "malformed_input", "Invalid cart"},
		{"quoted price", `{"cart":[{"name":"X","price":"1.00","qty":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"quoted qty", `{"cart":[{"name":"X","price":1,"qty":"2"}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"fractional qty", `{"cart":[{"name":"X","price":1,"qty":1.5}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"missing qty", `{"cart":[{"name":"X","price":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"missing price", `{"cart":[{"name":"X","qty":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"missing name", `{"cart":[{"price":1,"qty":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"zero qty", `{"cart":[{"name":"X","price":1,"qty":0}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"negative price", `{"cart":[{"name":"X","price":-1,"qty":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"huge qty exponent", `{"cart":[{"name":"X","price":1,"qty":1e400}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"tiny qty exponent", `{"cart":[{"name":"X","price":1,"qty":1e-400}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"huge price exponent", `{"cart":[{"name":"X","price":1e400,"qty":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
		{"zero with tiny exponent", `{"cart":[{"name":"X","price":0e-100000000,"qty":1}],"region":"IM"}`, "malformed_input", "Invalid cart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &composingMock{policy: d.DefaultPolicy()}
			h := newHandler(t, mock)

			recorder := postCheckout(h, tt.body)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			response := decodeError(t, recorder)
			assert.Equal(t, tt.code, response.Code)
			assert.Equal(t, tt.message, response.Error)
			assert.Equal(t, 0, mock.calls, "payment provider must not be called")
		})
	}
}

func TestCreateSession_ExtremeExponentsRejectedQuickly(t *testing.T) {
	mock := &composingMock{policy: d.DefaultPolicy()}
	h := newHandler(t, mock)

	var items []string
	for i := 0; i < 200; i++ {
		items = append(items, `{"name":"X","price":1e10000000,"qty":1e10000000}`)
	}
	body := `{"cart":[` + strings.Join(items, ",") + `],"region":"IM"}`

	start := time.Now()
	recorder := postCheckout(h, body)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "malformed_input", decodeError(t, recorder).Code)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 0, mock.calls)
}

func TestNumber_AcceptsEverydayPrices(t *testing.T) {
	for _, raw := range []string{"4.50", "19.99", "0.005", "1500", "1e2", "450e-2"} {
		var n Number
		require.NoError(t, n.UnmarshalJSON([]byte(raw)), raw)
	}
}

func TestCreateSession_BodyTooLarge(t *testing.T) {
	mock := &ServiceMock{}
	h := NewCheckoutHandler(mock, d.DefaultPolicy(), 5*time.Second, 64, zaptest.NewLogger(t))

	body := fmt.Sprintf(`{"cart":[{"name":"%s","price":1,"qty":1}],"region":"IM"}`, strings.Repeat("x", 200))
	recorder := postCheckout(h, body)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	response := decodeError(t, recorder)
	assert.Equal(t, "malformed_input", response.Code)
	assert.Contains(t, response.Details, "too large")
	assert.Equal(t, 0, mock.calls)
}

func TestCreateSession_UpstreamMessagePassedThrough(t *testing.T) {
	mock := &ServiceMock{err: &d.UpstreamError{Message: "Your account cannot currently make live charges.", Err: errors.New("stripe")}}
	h := newHandler(t, mock)

	recorder := postCheckout(h, `{"cart":[{"name":"X","price":1,"qty":1}],"region":"IM"}`)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	response := decodeError(t, recorder)
	assert.Equal(t, "upstream_error", response.Code)
	assert.Equal(t, "Your account cannot currently make live charges.", response.Error)
}

func TestCreateSession_ProviderUnavailable(t *testing.T) {
	mock := &ServiceMock{err: &d.UpstreamError{
		Message: "circuit breaker is open",
		Err:     fmt.Errorf("%w: circuit breaker is open", d.ErrPaymentProviderUnavailable),
	}}
	h := newHandler(t, mock)

	recorder := postCheckout(h, `{"cart":[{"name":"X","price":1,"qty":1}],"region":"IM"}`)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "payment_unavailable", decodeError(t, recorder).Code)
}

func TestCreateSession_UnknownError(t *testing.T) {
	mock := &ServiceMock{err: errors.New("boom")}
	h := newHandler(t, mock)

	recorder := postCheckout(h, `{"cart":[{"name":"X","price":1,"qty":1}],"region":"IM"}`)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	response := decodeError(t, recorder)
	assert.Equal(t, "internal_error", response.Code)
	assert.NotContains(t, response.Error, "boom")
}

func TestCreateSession_RegionNameFallsBackToCode(t *testing.T) {
	policy := d.DefaultPolicy()
	policy.RegionName = ""
	h := NewCheckoutHandler(&composingMock{policy: policy}, policy, time.Second, 0, nil)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, CheckoutSessionPath,
		bytes.NewReader([]byte(`{"cart":[{"name":"X","price":1,"qty":1}],"region":"GB"}`)))
	h.CreateSession(recorder, request)

	assert.Equal(t, "We only deliver to IM.", decodeError(t, recorder).Error)
}
