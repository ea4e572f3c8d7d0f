package api

import (
	"fmt"
	"net/http"

	"hanapbahay/internal/models"
	"hanapbahay/internal/service"
)

type bookingRequest struct {
	ListingID   int64  `json:"listing_id"`
	TenantName  string `json:"tenant_name"`
	TenantPhone string `json:"tenant_phone"`
	LeaseMonths int    `json:"lease_months"`
	MoveInDate  string `json:"move_in_date"`
	Note        string `json:"note"`
}

type bookingDecision struct {
	Version int64  `json:"version"`
	Note    string `json:"note"`
}

func (s *HTTPServer) handleRequestBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	moveIn, err := models.ParseDate(req.MoveInDate)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: invalid move_in_date; expected YYYY-MM-DD", service.ErrValidation))
		return
	}

	booking, err := s.deps.Bookings.Request(r.Context(), actor(r), service.BookingRequest{
		ListingID:   req.ListingID,
		TenantName:  req.TenantName,
		TenantPhone: req.TenantPhone,
		LeaseMonths: req.LeaseMonths,
		MoveInDate:  moveIn,
		Note:        req.Note,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.deps.Bookings.List(r.Context(), actor(r), splitCSV(r.URL.Query().Get("status")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	booking, err := s.deps.Bookings.Get(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleApproveBooking(w http.ResponseWriter, r *http.Request) {
	s.decideBooking(w, r, models.StatusApproved)
}

func (s *HTTPServer) handleRejectBooking(w http.ResponseWriter, r *http.Request) {
	s.decideBooking(w, r, models.StatusRejected)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s.decideBooking(w, r, models.StatusCancelled)
}

func (s *HTTPServer) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	s.decideBooking(w, r, models.StatusCompleted)
}

func (s *HTTPServer) decideBooking(w http.ResponseWriter, r *http.Request, to string) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req bookingDecision
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, a := r.Context(), actor(r)
	var booking *models.Booking
	switch to {
	case models.StatusApproved:
		booking, err = s.deps.Bookings.Approve(ctx, a, id, req.Version)
	case models.StatusRejected:
		booking, err = s.deps.Bookings.Reject(ctx, a, id, req.Version, req.Note)
	case models.StatusCancelled:
		booking, err = s.deps.Bookings.Cancel(ctx, a, id, req.Version)
	case models.StatusCompleted:
		booking, err = s.deps.Bookings.Complete(ctx, a, id, req.Version)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	list, err := s.deps.Payments.ListForBooking(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": list})
}

func (s *HTTPServer) handleNextDue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	p, err := s.deps.Payments.NextDue(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	found, err := s.deps.Payments.VerifyLedger(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if found == nil {
		found = []models.LedgerDiscrepancy{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"consistent": len(found) == 0, "discrepancies": found})
}

func (s *HTTPServer) handleRepairLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	changed, err := s.deps.Payments.RepairLedger(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if changed == nil {
		changed = []*models.RentPayment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"repaired": changed})
}
