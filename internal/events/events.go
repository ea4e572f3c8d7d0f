// Package events carries booking and payment changes from the services to
// notifications and metrics.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	EventBookingRequested = "booking_requested"
	EventBookingApproved  = "booking_approved"
	EventBookingRejected  = "booking_rejected"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"

	EventPaymentSubmitted = "payment_submitted"
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentRejected  = "payment_rejected"
	EventPaymentOverdue   = "payment_overdue"
	EventPaymentGateway   = "payment_gateway_paid"
	EventPaymentFailed    = "payment_gateway_failed"
	EventPaymentUnapplied = "payment_gateway_unapplied"
	EventPaymentRepaired  = "payment_repaired"
	EventPaymentReminder  = "payment_reminder"
	EventPaymentsCreated  = "payments_created"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID    int64     `json:"booking_id"`
	ListingID    int64     `json:"listing_id"`
	ListingTitle string    `json:"listing_title"`
	TenantID     int64     `json:"tenant_id"`
	OwnerID      int64     `json:"owner_id"`
	TenantName   string    `json:"tenant_name"`
	Status       string    `json:"status"`
	MoveInDate   time.Time `json:"move_in_date"`
	ChangedByID  int64     `json:"changed_by_id,omitempty"`
}

// PaymentEventPayload describes a rent payment state change.
type PaymentEventPayload struct {
	PaymentID   int64  `json:"payment_id"`
	BookingID   int64  `json:"booking_id"`
	TenantID    int64  `json:"tenant_id"`
	OwnerID     int64  `json:"owner_id"`
	Period      string `json:"period"`
	FromStatus  string `json:"from_status"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	LateFee     int64  `json:"late_fee"`
	AmountPaid  int64  `json:"amount_paid"`
	Method      string `json:"method,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ChangedByID int64  `json:"changed_by_id,omitempty"`
	// GatewayAmount is the PayMongo amount behind gateway events.
	GatewayAmount int64 `json:"gateway_amount,omitempty"`
}

// Event is one published domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus is an in-process pub/sub. Handlers run synchronously in
// subscription order; one failing or panicking handler does not keep the
// event from the rest.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish delivers event to every subscriber of its type and returns their
// failures joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := safeCall(handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes it. A nil bus drops the
// event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}

func safeCall(handler EventHandler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panicked: %v", event.Type, r)
		}
	}()
	return handler(event)
}
