package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hanapbahay/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxResponseBody = 1 << 20

// Client talks to the PayMongo REST API with the server-held secret key.
type Client struct {
	baseURL      string
	secretKey    string
	httpClient   *http.Client
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	logger       *zerolog.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg config.PayMongoConfig, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:    cfg.SecretKey,
		httpClient:   &http.Client{Timeout: timeout},
		maxRetries:   cfg.MaxRetries,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     8 * time.Second,
		logger:       logger,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BaseURL is the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AuthorizationHeader is the Basic credential PayMongo expects: the secret
// key as username with an empty password.
func (c *Client) AuthorizationHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.secretKey+":"))
}

func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.initialDelay) * math.Pow(2, float64(attempt-1)))
	if d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest, idempotencyKey string) (*PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("paymongo: amount must be positive, got %d", req.Amount)
	}
	if req.Currency == "" {
		req.Currency = "PHP"
	}
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/payment_intents", wrap(req), idempotencyKey, &env); err != nil {
		return nil, err
	}
	return env.Data.toIntent()
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if id == "" {
		return nil, fmt.Errorf("paymongo: payment intent id is required")
	}
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(id), nil, "", &env); err != nil {
		return nil, err
	}
	return env.Data.toIntent()
}

func (c *Client) CreatePaymentMethod(ctx context.Context, req PaymentMethodRequest, idempotencyKey string) (*PaymentMethod, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/payment_methods", wrap(req), idempotencyKey, &env); err != nil {
		return nil, err
	}
	var attrs struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Data.Attributes, &attrs); err != nil {
		return nil, fmt.Errorf("decode payment method: %w", err)
	}
	return &PaymentMethod{ID: env.Data.ID, Type: attrs.Type}, nil
}

// AttachPaymentMethod attaches a method to an intent. E-wallets come back
// awaiting_next_action with a redirect URL that ends at ReturnURL.
func (c *Client) AttachPaymentMethod(ctx context.Context, intentID string, req AttachRequest, idempotencyKey string) (*PaymentIntent, error) {
	var env envelope
	path := "/payment_intents/" + url.PathEscape(intentID) + "/attach"
	if err := c.do(ctx, http.MethodPost, path, wrap(req), idempotencyKey, &env); err != nil {
		return nil, err
	}
	return env.Data.toIntent()
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	// The same key is reused across retries so PayMongo can dedupe.
	if method == http.MethodPost && idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Warn().
				Err(lastErr).
				Str("path", path).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying PayMongo request")
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = c.doOnce(ctx, method, path, payload, idempotencyKey, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTemporary(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, idempotencyKey string, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.AuthorizationHeader())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paymongo %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("PayMongo request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
