package paymongo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Intent statuses returned by PayMongo.
const (
	IntentAwaitingPaymentMethod = "awaiting_payment_method"
	IntentAwaitingNextAction    = "awaiting_next_action"
	IntentProcessing            = "processing"
	IntentSucceeded             = "succeeded"
)

// Webhook event types the service reacts to.
const (
	EventPaymentPaid            = "payment.paid"
	EventPaymentFailed          = "payment.failed"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
)

type PaymentIntentRequest struct {
	Amount               int64             `json:"amount"`
	Currency             string            `json:"currency"`
	PaymentMethodAllowed []string          `json:"payment_method_allowed"`
	Description          string            `json:"description,omitempty"`
	StatementDescriptor  string            `json:"statement_descriptor,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

type PaymentIntent struct {
	ID               string
	Amount           int64
	Currency         string
	Status           string
	ClientKey        string
	Description      string
	Metadata         map[string]string
	RedirectURL      string
	LastPaymentError string
	Payments         []Payment
}

// Paid sums the paid payments attached to the intent.
func (pi *PaymentIntent) Paid() int64 {
	var total int64
	for _, p := range pi.Payments {
		if p.Status == "paid" {
			total += p.Amount
		}
	}
	return total
}

type Payment struct {
	ID              string
	Amount          int64
	Status          string
	PaymentIntentID string
	SourceType      string
}

type PaymentMethodRequest struct {
	Type     string                 `json:"type"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Billing  *Billing               `json:"billing,omitempty"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

type Billing struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type PaymentMethod struct {
	ID   string
	Type string
}

type AttachRequest struct {
	PaymentMethod string `json:"payment_method"`
	ClientKey     string `json:"client_key,omitempty"`
	ReturnURL     string `json:"return_url,omitempty"`
}

// JSON:API envelopes.

type envelope struct {
	Data resource `json:"data"`
}

type requestEnvelope struct {
	Data struct {
		Attributes interface{} `json:"attributes"`
	} `json:"data"`
}

func wrap(attrs interface{}) requestEnvelope {
	var env requestEnvelope
	env.Data.Attributes = attrs
	return env
}

type resource struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

type intentAttributes struct {
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	ClientKey        string            `json:"client_key"`
	Description      string            `json:"description"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError json.RawMessage   `json:"last_payment_error"`
	NextAction       *struct {
		Type     string `json:"type"`
		Redirect struct {
			URL       string `json:"url"`
			ReturnURL string `json:"return_url"`
		} `json:"redirect"`
	} `json:"next_action"`
	Payments []resource `json:"payments"`
}

type paymentAttributes struct {
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Metadata        map[string]string `json:"metadata"`
	FailedMessage   string            `json:"failed_message"`
	Source          struct {
		Type string `json:"type"`
	} `json:"source"`
}

func (r resource) toIntent() (*PaymentIntent, error) {
	var attrs intentAttributes
	if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	pi := &PaymentIntent{
		ID:          r.ID,
		Amount:      attrs.Amount,
		Currency:    attrs.Currency,
		Status:      attrs.Status,
		ClientKey:   attrs.ClientKey,
		Description: attrs.Description,
		Metadata:    attrs.Metadata,
	}
	if attrs.NextAction != nil {
		pi.RedirectURL = attrs.NextAction.Redirect.URL
	}
	if len(attrs.LastPaymentError) > 0 && string(attrs.LastPaymentError) != "null" {
		pi.LastPaymentError = string(attrs.LastPaymentError)
	}
	for _, p := range attrs.Payments {
		payment, err := p.toPayment()
		if err != nil {
			return nil, err
		}
		pi.Payments = append(pi.Payments, payment)
	}
	return pi, nil
}

func (r resource) toPayment() (Payment, error) {
	var attrs paymentAttributes
	if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
		return Payment{}, fmt.Errorf("decode payment: %w", err)
	}
	return Payment{
		ID:              r.ID,
		Amount:          attrs.Amount,
		Status:          attrs.Status,
		PaymentIntentID: attrs.PaymentIntentID,
		SourceType:      attrs.Source.Type,
	}, nil
}

// Event is a decoded webhook delivery.
type Event struct {
	ID        string
	Type      string
	LiveMode  bool
	CreatedAt time.Time
	// Resource fields, flattened from the payment or payment intent.
	ResourceID      string
	ResourceType    string
	PaymentIntentID string
	Amount          int64
	Status          string
	SourceType      string
	FailedMessage   string
	Metadata        map[string]string
}

type eventAttributes struct {
	Type      string   `json:"type"`
	LiveMode  bool     `json:"livemode"`
	CreatedAt int64    `json:"created_at"`
	Data      resource `json:"data"`
}

// ParseEvent decodes a webhook body. Unknown event types decode without error
// so callers can acknowledge and ignore them.
func ParseEvent(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("decode webhook: missing event id")
	}
	var attrs eventAttributes
	if err := json.Unmarshal(env.Data.Attributes, &attrs); err != nil {
		return nil, fmt.Errorf("decode webhook attributes: %w", err)
	}

	evt := &Event{
		ID:           env.Data.ID,
		Type:         attrs.Type,
		LiveMode:     attrs.LiveMode,
		ResourceID:   attrs.Data.ID,
		ResourceType: attrs.Data.Type,
	}
	if attrs.CreatedAt > 0 {
		evt.CreatedAt = time.Unix(attrs.CreatedAt, 0).UTC()
	}
	if len(attrs.Data.Attributes) == 0 {
		return evt, nil
	}

	switch {
	case strings.HasPrefix(attrs.Type, "payment_intent."):
		pi, err := attrs.Data.toIntent()
		if err != nil {
			return nil, err
		}
		evt.PaymentIntentID = pi.ID
		evt.Amount = pi.Paid()
		if evt.Amount == 0 {
			evt.Amount = pi.Amount
		}
		evt.Status = pi.Status
		evt.Metadata = pi.Metadata
	case strings.HasPrefix(attrs.Type, "payment."):
		var pa paymentAttributes
		if err := json.Unmarshal(attrs.Data.Attributes, &pa); err != nil {
			return nil, fmt.Errorf("decode payment: %w", err)
		}
		evt.PaymentIntentID = pa.PaymentIntentID
		evt.Amount = pa.Amount
		evt.Status = pa.Status
		evt.SourceType = pa.Source.Type
		evt.FailedMessage = pa.FailedMessage
		evt.Metadata = pa.Metadata
	}
	return evt, nil
}

// Succeeded reports whether the event settles money.
func (e *Event) Succeeded() bool {
	return e.Type == EventPaymentPaid || e.Type == EventPaymentIntentSucceeded
}

// CreditKey names the money a settling event carries. payment.paid and
// payment_intent.succeeded for the same intent share a key.
func (e *Event) CreditKey() string {
	switch {
	case e.PaymentIntentID != "":
		return e.PaymentIntentID
	case e.ResourceID != "":
		return e.ResourceID
	}
	return e.ID
}
