package paymongo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	secret := "whsk_test"
	body := []byte(`{"data":{"id":"evt_1"}}`)
	now := time.Unix(1700000000, 0)
	ts := now.Unix()
	sig := Sign(secret, ts, body)

	testMode := Verifier{Secret: secret, Tolerance: 5 * time.Minute, Now: func() time.Time { return now }}
	liveMode := testMode
	liveMode.LiveMode = true

	t.Run("TestModeValid", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,te=%s,li=", ts, sig)
		assert.NoError(t, testMode.Verify(header, body))
	})

	t.Run("LiveModeUsesLi", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,te=%s,li=", ts, sig)
		assert.ErrorIs(t, liveMode.Verify(header, body), ErrInvalidSignature)

		header = fmt.Sprintf("t=%d,te=,li=%s", ts, sig)
		assert.NoError(t, liveMode.Verify(header, body))
	})

	t.Run("TamperedBody", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,te=%s", ts, sig)
		assert.ErrorIs(t, testMode.Verify(header, []byte(`{"data":{"id":"evt_2"}}`)), ErrInvalidSignature)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		header := fmt.Sprintf("t=%d,te=%s", ts, Sign("other", ts, body))
		assert.ErrorIs(t, testMode.Verify(header, body), ErrInvalidSignature)
	})

	t.Run("Stale", func(t *testing.T) {
		old := ts - int64((6 * time.Minute).Seconds())
		header := fmt.Sprintf("t=%d,te=%s", old, Sign(secret, old, body))
		assert.ErrorIs(t, testMode.Verify(header, body), ErrStaleSignature)
	})

	t.Run("MissingTimestamp", func(t *testing.T) {
		assert.ErrorIs(t, testMode.Verify("te="+sig, body), ErrInvalidSignature)
		assert.ErrorIs(t, testMode.Verify("", body), ErrInvalidSignature)
		assert.ErrorIs(t, testMode.Verify("t=abc,te="+sig, body), ErrInvalidSignature)
	})
}

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("t=123, te=abc ,li=def")
	require.NoError(t, err)
	assert.Equal(t, int64(123), sig.Timestamp)
	assert.Equal(t, "abc", sig.Test)
	assert.Equal(t, "def", sig.Live)
}

func TestParseEvent(t *testing.T) {
	t.Run("PaymentPaid", func(t *testing.T) {
		body := []byte(`{"data":{"id":"evt_1","type":"event","attributes":{
			"type":"payment.paid","livemode":false,"created_at":1700000000,
			"data":{"id":"pay_1","type":"payment","attributes":{
				"amount":800000,"status":"paid","payment_intent_id":"pi_1",
				"source":{"type":"gcash"},"metadata":{"payment_id":"42"}}}}}}`)
		evt, err := ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", evt.ID)
		assert.Equal(t, EventPaymentPaid, evt.Type)
		assert.Equal(t, "pi_1", evt.PaymentIntentID)
		assert.Equal(t, int64(800000), evt.Amount)
		assert.Equal(t, "gcash", evt.SourceType)
		assert.Equal(t, "42", evt.Metadata["payment_id"])
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), evt.CreatedAt)
		assert.True(t, evt.Succeeded())
		assert.Equal(t, "pi_1", evt.CreditKey())
	})

	t.Run("PaymentFailed", func(t *testing.T) {
		body := []byte(`{"data":{"id":"evt_2","type":"event","attributes":{
			"type":"payment.failed",
			"data":{"id":"pay_2","type":"payment","attributes":{
				"amount":800000,"status":"failed","payment_intent_id":"pi_2",
				"failed_message":"insufficient funds"}}}}}`)
		evt, err := ParseEvent(body)
		require.NoError(t, err)
		assert.False(t, evt.Succeeded())
		assert.Equal(t, "insufficient funds", evt.FailedMessage)
	})

	t.Run("IntentSucceeded", func(t *testing.T) {
		body := []byte(`{"data":{"id":"evt_3","type":"event","attributes":{
			"type":"payment_intent.succeeded",
			"data":{"id":"pi_3","type":"payment_intent","attributes":{
				"amount":5000,"status":"succeeded",
				"payments":[{"id":"pay_3","type":"payment","attributes":{"amount":5000,"status":"paid"}}]}}}}}`)
		evt, err := ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "pi_3", evt.PaymentIntentID)
		assert.Equal(t, int64(5000), evt.Amount)
		assert.True(t, evt.Succeeded())
		assert.Equal(t, "pi_3", evt.CreditKey())
	})

	t.Run("CreditKeyWithoutIntent", func(t *testing.T) {
		body := []byte(`{"data":{"id":"evt_5","type":"event","attributes":{
			"type":"payment.paid",
			"data":{"id":"pay_5","type":"payment","attributes":{"amount":100,"status":"paid"}}}}}`)
		evt, err := ParseEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "pay_5", evt.CreditKey())
		assert.Equal(t, "evt_6", (&Event{ID: "evt_6"}).CreditKey())
	})

	t.Run("UnknownType", func(t *testing.T) {
		evt, err := ParseEvent([]byte(`{"data":{"id":"evt_4","attributes":{"type":"source.chargeable"}}}`))
		require.NoError(t, err)
		assert.Equal(t, "source.chargeable", evt.Type)
		assert.False(t, evt.Succeeded())
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := ParseEvent([]byte(`not json`))
		assert.Error(t, err)
		_, err = ParseEvent([]byte(`{"data":{}}`))
		assert.Error(t, err)
	})
}
