package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(EventPaymentConfirmed, func(event *Event) error {
		received = append(received, event)
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventPaymentConfirmed, PaymentEventPayload{
		PaymentID:  12,
		FromStatus: "pending_owner_confirmation",
		Status:     "paid",
		AmountPaid: 800000,
	}))
	require.NoError(t, bus.PublishJSON(EventPaymentRejected, PaymentEventPayload{PaymentID: 13}))

	require.Len(t, received, 1)
	assert.Equal(t, EventPaymentConfirmed, received[0].Type)
	assert.False(t, received[0].CreatedAt.IsZero())

	var decoded PaymentEventPayload
	require.NoError(t, received[0].Decode(&decoded))
	assert.Equal(t, int64(12), decoded.PaymentID)
	assert.Equal(t, int64(800000), decoded.AmountPaid)
}

func TestEventBus_HandlerFailures(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	bus.Subscribe(EventBookingApproved, func(*Event) error {
		calls = append(calls, "first")
		return errors.New("telegram down")
	})
	bus.Subscribe(EventBookingApproved, func(*Event) error {
		calls = append(calls, "second")
		panic("nil chat")
	})
	bus.Subscribe(EventBookingApproved, func(*Event) error {
		calls = append(calls, "third")
		return nil
	})

	err := bus.PublishJSON(EventBookingApproved, BookingEventPayload{BookingID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram down")
	assert.Contains(t, err.Error(), "panicked: nil chat")
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestEventBus_Edges(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	err := bus.PublishJSON(EventPaymentReminder, make(chan int))
	assert.ErrorContains(t, err, "marshal payment_reminder payload")

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventPaymentOverdue, PaymentEventPayload{}))
}
