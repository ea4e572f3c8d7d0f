package service

import (
	"context"
	"fmt"
	"strings"

	"hanapbahay/internal/domain"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
)

var propertyTypes = map[string]bool{
	"apartment": true,
	"room":      true,
	"bedspace":  true,
	"house":     true,
	"condo":     true,
	"dormitory": true,
}

type ListingService struct {
	repo   domain.ListingRepository
	logger *zerolog.Logger
}

func NewListingService(repo domain.ListingRepository, logger *zerolog.Logger) *ListingService {
	return &ListingService{
		repo:   repo,
		logger: logger,
	}
}

func validateListing(l *models.Listing) error {
	l.Title = strings.TrimSpace(l.Title)
	l.City = strings.TrimSpace(l.City)
	l.Address = strings.TrimSpace(l.Address)

	if l.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if l.MonthlyRent < 0 || l.SecurityDeposit < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrValidation)
	}
	if l.AdvanceMonths < 0 || l.AdvanceMonths > 12 {
		return fmt.Errorf("%w: advance months must be between 0 and 12", ErrValidation)
	}
	if l.Capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrValidation)
	}
	if l.PropertyType != "" && !propertyTypes[l.PropertyType] {
		return fmt.Errorf("%w: unknown property type %q", ErrValidation, l.PropertyType)
	}
	switch l.Status {
	case models.ListingDraft, models.ListingPublished, models.ListingUnlisted:
	default:
		return fmt.Errorf("%w: status %q cannot be set directly", ErrValidation, l.Status)
	}
	return nil
}

// listingComplete lists what is still missing before a listing can be published.
func listingComplete(l *models.Listing) error {
	var missing []string
	if l.PropertyType == "" {
		missing = append(missing, "property_type")
	}
	if l.Address == "" {
		missing = append(missing, "address")
	}
	if l.City == "" {
		missing = append(missing, "city")
	}
	if l.MonthlyRent <= 0 {
		missing = append(missing, "monthly_rent")
	}
	if l.Capacity <= 0 {
		missing = append(missing, "capacity")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: listing is incomplete: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// visibleStatus maps a requested published status to full when no slot is left.
func visibleStatus(l *models.Listing) string {
	if l.Status == models.ListingPublished && l.Occupied >= l.Capacity {
		return models.ListingFull
	}
	return l.Status
}

func (s *ListingService) Create(ctx context.Context, actor Actor, listing *models.Listing) error {
	if actor.Role != models.RoleOwner && !actor.IsAdmin() {
		return ErrForbidden
	}
	if !actor.IsAdmin() || listing.OwnerID == 0 {
		listing.OwnerID = actor.UserID
	}
	if listing.Status == "" {
		listing.Status = models.ListingDraft
	}
	listing.Occupied = 0
	if err := validateListing(listing); err != nil {
		return err
	}
	if listing.Status == models.ListingPublished {
		if err := listingComplete(listing); err != nil {
			return err
		}
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return err
	}
	s.logger.Info().Int64("listing_id", listing.ID).Int64("owner_id", listing.OwnerID).Msg("Listing created")
	return nil
}

// Update rewrites the editable fields. listing.Version must be the version
// the caller read.
func (s *ListingService) Update(ctx context.Context, actor Actor, listing *models.Listing) error {
	current, err := s.repo.GetListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	if !actor.Owns(current.OwnerID) {
		return ErrForbidden
	}

	if listing.Status == "" || listing.Status == models.ListingFull {
		listing.Status = current.Status
	}
	if listing.Status == models.ListingFull {
		listing.Status = models.ListingPublished
	}
	if err := validateListing(listing); err != nil {
		return err
	}
	if listing.Capacity < current.Occupied {
		return fmt.Errorf("%w: capacity %d is below %d occupied slots", ErrValidation, listing.Capacity, current.Occupied)
	}
	if listing.Status == models.ListingPublished {
		if err := listingComplete(listing); err != nil {
			return err
		}
	}

	listing.OwnerID = current.OwnerID
	listing.Occupied = current.Occupied
	listing.Status = visibleStatus(listing)
	listing.CreatedAt = current.CreatedAt
	return s.repo.UpdateListing(ctx, listing)
}

func (s *ListingService) Publish(ctx context.Context, actor Actor, id, version int64) (*models.Listing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(listing.OwnerID) {
		return nil, ErrForbidden
	}
	if err := listingComplete(listing); err != nil {
		return nil, err
	}
	listing.Status = models.ListingPublished
	if err := s.repo.UpdateListingStatus(ctx, id, version, visibleStatus(listing)); err != nil {
		return nil, err
	}
	return s.repo.GetListing(ctx, id)
}

func (s *ListingService) Unlist(ctx context.Context, actor Actor, id, version int64) (*models.Listing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(listing.OwnerID) {
		return nil, ErrForbidden
	}
	if err := s.repo.UpdateListingStatus(ctx, id, version, models.ListingUnlisted); err != nil {
		return nil, err
	}
	return s.repo.GetListing(ctx, id)
}

// Get returns a listing. Drafts and unlisted listings are visible to their
// owner only.
func (s *ListingService) Get(ctx context.Context, actor Actor, id int64) (*models.Listing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	switch listing.Status {
	case models.ListingPublished, models.ListingFull:
		return listing, nil
	}
	if !actor.Owns(listing.OwnerID) {
		return nil, ErrForbidden
	}
	return listing, nil
}

// Search lists published listings for tenants.
func (s *ListingService) Search(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, error) {
	filter.OwnerID = 0
	filter.Status = models.ListingPublished
	return s.repo.ListListings(ctx, filter)
}

// ListOwned lists every listing of the actor regardless of status.
func (s *ListingService) ListOwned(ctx context.Context, actor Actor, filter models.ListingFilter) ([]*models.Listing, error) {
	if actor.Role != models.RoleOwner && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if !actor.IsAdmin() || filter.OwnerID == 0 {
		filter.OwnerID = actor.UserID
	}
	return s.repo.ListListings(ctx, filter)
}

// Remove deletes a listing without pending or approved bookings.
func (s *ListingService) Remove(ctx context.Context, actor Actor, id int64) error {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Owns(listing.OwnerID) {
		return ErrForbidden
	}
	active, err := s.repo.CountActiveBookings(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: listing has %d active bookings", ErrValidation, active)
	}
	if err := s.repo.DeleteListing(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("listing_id", id).Int64("actor_id", actor.UserID).Msg("Listing removed")
	return nil
}
