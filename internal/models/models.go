package models

import (
	"strconv"
	"time"
)

// Metadata is a loosely typed bag decoded from JSON (PayMongo metadata,
// checkout session extras). PayMongo only stores string values, so numeric
// getters accept strings as well.
type Metadata map[string]interface{}

func (m Metadata) GetInt64(key string) int64 {
	if m == nil {
		return 0
	}
	val, ok := m[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func (m Metadata) GetString(key string) string {
	if m == nil {
		return ""
	}
	val, ok := m[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (m Metadata) GetTime(key string) time.Time {
	if m == nil {
		return time.Time{}
	}
	val, ok := m[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

// CheckoutSession links a PayMongo payment intent to a rent payment while
// the tenant is in the gateway flow.
type CheckoutSession struct {
	PaymentID       int64     `json:"payment_id"`
	TenantID        int64     `json:"tenant_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientKey       string    `json:"client_key"`
	Amount          int64     `json:"amount"`
	IdempotencyKey  string    `json:"idempotency_key"`
	Metadata        Metadata  `json:"metadata,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
