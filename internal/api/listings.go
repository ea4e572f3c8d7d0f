package api

import (
	"net/http"
	"strings"

	"hanapbahay/internal/models"
)

type listingRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PropertyType    string   `json:"property_type"`
	Address         string   `json:"address"`
	City            string   `json:"city"`
	MonthlyRent     int64    `json:"monthly_rent"`
	AdvanceMonths   int      `json:"advance_months"`
	SecurityDeposit int64    `json:"security_deposit"`
	Capacity        int      `json:"capacity"`
	Amenities       []string `json:"amenities"`
	MediaURIs       []string `json:"media_uris"`
	Status          string   `json:"status"`
	Version         int64    `json:"version"`
}

func (req listingRequest) listing() *models.Listing {
	return &models.Listing{
		Title:           req.Title,
		Description:     req.Description,
		PropertyType:    req.PropertyType,
		Address:         req.Address,
		City:            req.City,
		MonthlyRent:     req.MonthlyRent,
		AdvanceMonths:   req.AdvanceMonths,
		SecurityDeposit: req.SecurityDeposit,
		Capacity:        req.Capacity,
		Amenities:       req.Amenities,
		MediaURIs:       req.MediaURIs,
		Status:          req.Status,
		Version:         req.Version,
	}
}

type versionRequest struct {
	Version int64 `json:"version"`
}

func listingFilter(r *http.Request) (models.ListingFilter, error) {
	q := r.URL.Query()
	filter := models.ListingFilter{
		City:          strings.TrimSpace(q.Get("city")),
		PropertyType:  strings.TrimSpace(q.Get("type")),
		AvailableOnly: q.Get("available") == "true",
	}
	maxRent, err := queryInt(r, "max_rent")
	if err != nil {
		return filter, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return filter, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return filter, err
	}
	filter.MaxRent = maxRent
	filter.Limit = int(limit)
	filter.Offset = int(offset)
	return filter, nil
}

func (s *HTTPServer) handleSearchListings(w http.ResponseWriter, r *http.Request) {
	filter, err := listingFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	listings, err := s.deps.Listings.Search(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *HTTPServer) handleOwnListings(w http.ResponseWriter, r *http.Request) {
	filter, err := listingFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	filter.Status = strings.TrimSpace(r.URL.Query().Get("status"))
	listings, err := s.deps.Listings.ListOwned(r.Context(), actor(r), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *HTTPServer) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	listing := req.listing()
	if err := s.deps.Listings.Create(r.Context(), actor(r), listing); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *HTTPServer) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	listing, err := s.deps.Listings.Get(r.Context(), actor(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *HTTPServer) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	listing := req.listing()
	listing.ID = id
	if err := s.deps.Listings.Update(r.Context(), actor(r), listing); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *HTTPServer) handleRemoveListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Listings.Remove(r.Context(), actor(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handlePublishListing(w http.ResponseWriter, r *http.Request) {
	s.changeListing(w, r, true)
}

func (s *HTTPServer) handleUnlistListing(w http.ResponseWriter, r *http.Request) {
	s.changeListing(w, r, false)
}

func (s *HTTPServer) changeListing(w http.ResponseWriter, r *http.Request, publish bool) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req versionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var listing *models.Listing
	if publish {
		listing, err = s.deps.Listings.Publish(r.Context(), actor(r), id, req.Version)
	} else {
		listing, err = s.deps.Listings.Unlist(r.Context(), actor(r), id, req.Version)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}
