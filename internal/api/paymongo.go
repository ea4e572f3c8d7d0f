package api

import (
	"html/template"
	"io"
	"net/http"

	"hanapbahay/internal/logging"
	"hanapbahay/internal/metrics"
	"hanapbahay/internal/paymongo"
	"hanapbahay/internal/service"
)

const (
	paymongoPrefix = "/api/paymongo"

	// maxWebhookBytes caps webhook bodies; PayMongo events are a few KB.
	maxWebhookBytes = 256 << 10
)

var paymentReturnPage = template.Must(template.New("payment-return").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>HanapBahay Payment</title>
<style>body{font-family:sans-serif;text-align:center;padding:48px 16px;color:#222}</style>
</head>
<body>
<h2>{{.Message}}</h2>
<p>You can now return to the app.</p>
<script>
(function () {
  var payload = JSON.stringify({type: "payment_return", status: {{.Status}}, payment_intent_id: {{.IntentID}}});
  if (window.ReactNativeWebView) {
    window.ReactNativeWebView.postMessage(payload);
  } else if (window.parent && window.parent !== window) {
    window.parent.postMessage(payload, "*");
  }
})();
</script>
</body>
</html>
`))

type paymentReturnView struct {
	Status   string
	IntentID string
	Message  string
}

func returnMessage(status string) string {
	switch status {
	case "succeeded", "paid":
		return "Payment received. Salamat!"
	case "failed", "cancelled", "canceled":
		return "Payment was not completed."
	default:
		return "Processing your payment..."
	}
}

// handlePaymentReturn is the redirect target after 3DS or e-wallet
// authorization. It hands the result back to the mobile WebView.
func (s *HTTPServer) handlePaymentReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = "processing"
	}
	view := paymentReturnView{
		Status:   status,
		IntentID: q.Get("payment_intent_id"),
		Message:  returnMessage(status),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := paymentReturnPage.Execute(w, view); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render payment return page")
	}
}

// handleWebhook verifies and applies a PayMongo event. Any 2xx stops
// PayMongo from redelivering, so only storage failures answer 5xx.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verifier == nil || s.deps.Payments == nil {
		s.writeServiceError(w, r, service.ErrGatewayDisabled)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := s.deps.Verifier.Verify(r.Header.Get(paymongo.SignatureHeader), body); err != nil {
		logging.FromContext(r.Context(), s.logger).Warn().Err(err).Msg("Rejected webhook signature")
		metrics.IncWebhook("unknown", "invalid_signature")
		s.writeServiceError(w, r, err)
		return
	}

	evt, err := paymongo.ParseEvent(body)
	if err != nil {
		metrics.IncWebhook("unknown", "invalid_payload")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.deps.Payments.HandleWebhook(r.Context(), evt)
	metrics.IncWebhook(evt.Type, result)
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).
			Str("event_id", evt.ID).
			Str("event_type", evt.Type).
			Msg("Failed to apply webhook")
		if statusFromError(err) >= http.StatusInternalServerError {
			writeError(w, http.StatusInternalServerError, "failed to apply event")
			return
		}
		// Permanent domain errors are acknowledged so PayMongo stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"result": service.WebhookFailed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}
