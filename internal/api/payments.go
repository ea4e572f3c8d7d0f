package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hanapbahay/internal/models"
	"hanapbahay/internal/payments"
	"hanapbahay/internal/service"
)

type submitRequest struct {
	Version         int64  `json:"version"`
	Method          string `json:"method"`
	ReferenceNumber string `json:"reference_number"`
	Amount          int64  `json:"amount"`
}

type confirmRequest struct {
	Version int64 `json:"version"`
	// Amount received; zero confirms the submitted amount.
	Amount int64 `json:"amount"`
}

type rejectRequest struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

func (s *HTTPServer) handleListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Payments.ListForUser(r.Context(), actor(r), splitCSV(r.URL.Query().Get("status")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": list})
}

func (s *HTTPServer) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.deps.Payments.Get(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handlePaymentAudit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entries, err := s.deps.Payments.Audit(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

func (s *HTTPServer) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.deps.Payments.Submit(r.Context(), actor(r), id, req.Version, payments.Submission{
		Method:          strings.ToLower(strings.TrimSpace(req.Method)),
		ReferenceNumber: req.ReferenceNumber,
		Amount:          req.Amount,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.deps.Payments.Confirm(r.Context(), actor(r), id, req.Version, req.Amount)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleRejectPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.deps.Payments.Reject(r.Context(), actor(r), id, req.Version, req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	session, err := s.deps.Payments.StartCheckout(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *HTTPServer) handleOwnerSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	summary, err := s.deps.Payments.OwnerSummary(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleExportLedger streams the actor's rent ledger for ?from=&to= as xlsx.
// The range defaults to the current calendar year.
func (s *HTTPServer) handleExportLedger(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	if a.Role != models.RoleOwner && !a.IsAdmin() {
		s.writeServiceError(w, r, service.ErrForbidden)
		return
	}
	if s.deps.Exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}

	loc := models.Location()
	year := time.Now().In(loc).Year()
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, loc)
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			s.writeServiceError(w, r, fmt.Errorf("%w: invalid from date", service.ErrValidation))
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = models.ParseDate(raw); err != nil {
			s.writeServiceError(w, r, fmt.Errorf("%w: invalid to date", service.ErrValidation))
			return
		}
	}
	if to.Before(from) {
		s.writeServiceError(w, r, fmt.Errorf("%w: to is before from", service.ErrValidation))
		return
	}

	path, err := s.deps.Exporter.OwnerLedger(r.Context(), a.UserID, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer os.Remove(path)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
