package paymongo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hanapbahay/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const intentJSON = `{"data":{"id":"pi_123","type":"payment_intent","attributes":{
	"amount":2400000,"currency":"PHP","status":"awaiting_payment_method",
	"client_key":"pi_123_client_abc","metadata":{"payment_id":"42"},
	"payments":[]}}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.New(io.Discard)
	c := NewClient(config.PayMongoConfig{
		BaseURL:    srv.URL,
		SecretKey:  "sk_test_key",
		Timeout:    time.Second,
		MaxRetries: 2,
	}, &logger)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestCreatePaymentIntent(t *testing.T) {
	var gotKey, gotAuth string
	var body map[string]map[string]map[string]interface{}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(intentJSON))
	})

	pi, err := c.CreatePaymentIntent(context.Background(), PaymentIntentRequest{
		Amount:               2400000,
		PaymentMethodAllowed: []string{"gcash", "card"},
		Metadata:             map[string]string{"payment_id": "42"},
	}, "idem-1")
	require.NoError(t, err)

	assert.Equal(t, "idem-1", gotKey)
	assert.Equal(t, c.AuthorizationHeader(), gotAuth)
	assert.Equal(t, "PHP", body["data"]["attributes"]["currency"])
	assert.Equal(t, "pi_123", pi.ID)
	assert.Equal(t, "pi_123_client_abc", pi.ClientKey)
	assert.Equal(t, int64(2400000), pi.Amount)
	assert.Equal(t, "42", pi.Metadata["payment_id"])
}

func TestCreatePaymentIntentRejectsZeroAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})
	_, err := c.CreatePaymentIntent(context.Background(), PaymentIntentRequest{}, "")
	assert.Error(t, err)
}

func TestRetryOnTemporaryError(t *testing.T) {
	var calls int32
	keys := make(chan string, 3)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(intentJSON))
	})

	pi, err := c.CreatePaymentIntent(context.Background(), PaymentIntentRequest{Amount: 100}, "")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", pi.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	first := <-keys
	assert.NotEmpty(t, first)
	assert.Equal(t, first, <-keys)
	assert.Equal(t, first, <-keys)
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"parameter_below_minimum","detail":"amount too small","source":{"pointer":"amount","attribute":"amount"}}]}`))
	})

	_, err := c.CreatePaymentIntent(context.Background(), PaymentIntentRequest{Amount: 1}, "k")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.HasCode("parameter_below_minimum"))
	assert.False(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "amount too small")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.RetrievePaymentIntent(context.Background(), "pi_1")
	require.Error(t, err)
	assert.True(t, IsTemporary(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetrievePaymentIntentWithPayments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_9", r.URL.Path)
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"data":{"id":"pi_9","type":"payment_intent","attributes":{
			"amount":5000,"currency":"PHP","status":"succeeded",
			"payments":[
				{"id":"pay_1","type":"payment","attributes":{"amount":5000,"status":"paid","source":{"type":"gcash"}}},
				{"id":"pay_2","type":"payment","attributes":{"amount":5000,"status":"failed"}}
			]}}}`))
	})

	pi, err := c.RetrievePaymentIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	assert.Equal(t, IntentSucceeded, pi.Status)
	require.Len(t, pi.Payments, 2)
	assert.Equal(t, "gcash", pi.Payments[0].SourceType)
	assert.Equal(t, int64(5000), pi.Paid())
}

func TestAttachPaymentMethod(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_7/attach", r.URL.Path)
		var req struct {
			Data struct {
				Attributes AttachRequest `json:"attributes"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pm_1", req.Data.Attributes.PaymentMethod)
		assert.Equal(t, "https://app.example/payment-return", req.Data.Attributes.ReturnURL)
		_, _ = w.Write([]byte(`{"data":{"id":"pi_7","type":"payment_intent","attributes":{
			"amount":100,"status":"awaiting_next_action",
			"next_action":{"type":"redirect","redirect":{"url":"https://pm.link/auth","return_url":"https://app.example/payment-return"}}}}}`))
	})

	pi, err := c.AttachPaymentMethod(context.Background(), "pi_7", AttachRequest{
		PaymentMethod: "pm_1",
		ClientKey:     "ck",
		ReturnURL:     "https://app.example/payment-return",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, IntentAwaitingNextAction, pi.Status)
	assert.Equal(t, "https://pm.link/auth", pi.RedirectURL)
}

func TestCreatePaymentMethod(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_methods", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"pm_5","type":"payment_method","attributes":{"type":"gcash"}}}`))
	})

	pm, err := c.CreatePaymentMethod(context.Background(), PaymentMethodRequest{Type: "gcash"}, "")
	require.NoError(t, err)
	assert.Equal(t, "pm_5", pm.ID)
	assert.Equal(t, "gcash", pm.Type)
}

func TestContextCancelStopsRetry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RetrievePaymentIntent(ctx, "pi_1")
	assert.Error(t, err)
}
