package paymongo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleSignature   = errors.New("webhook timestamp outside tolerance")
)

// APIError is a non-2xx PayMongo response.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

type ErrorDetail struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Source struct {
		Pointer   string `json:"pointer"`
		Attribute string `json:"attribute"`
	} `json:"source"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("paymongo: http %d", e.StatusCode)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", d.Code, d.Detail))
	}
	return fmt.Sprintf("paymongo: http %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Temporary reports whether the request may succeed when retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HasCode reports whether any error detail carries code.
func (e *APIError) HasCode(code string) bool {
	for _, d := range e.Errors {
		if d.Code == code {
			return true
		}
	}
	return false
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Errors = payload.Errors
	}
	return apiErr
}

// IsTemporary reports whether err is worth retrying.
func IsTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var temp interface{ Timeout() bool }
	return errors.As(err, &temp) && temp.Timeout()
}
