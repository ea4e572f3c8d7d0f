package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hanapbahay/internal/database"
	"hanapbahay/internal/logging"
	"hanapbahay/internal/paymongo"
	"hanapbahay/internal/payments"
	"hanapbahay/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFromError maps domain errors to HTTP status codes.
func statusFromError(err error) int {
	var apiErr *paymongo.APIError
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, payments.ErrInvalidTransition),
		errors.Is(err, service.ErrDuplicateBooking),
		errors.Is(err, service.ErrListingUnavailable),
		errors.Is(err, database.ErrNoCapacity),
		errors.Is(err, database.ErrDuplicatePeriod):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrGatewayDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, paymongo.ErrInvalidSignature), errors.Is(err, paymongo.ErrStaleSignature):
		return http.StatusUnauthorized
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal errors are
// logged and hidden from the client.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFromError(err)
	if statusCode >= http.StatusInternalServerError && statusCode != http.StatusServiceUnavailable {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("Request failed")
		if statusCode == http.StatusInternalServerError {
			writeError(w, statusCode, "internal error")
			return
		}
	}
	writeError(w, statusCode, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", service.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrValidation, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrValidation, name)
	}
	return n, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
