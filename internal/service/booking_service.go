package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/domain"
	"hanapbahay/internal/events"
	"hanapbahay/internal/models"
	"hanapbahay/internal/payments"

	"github.com/rs/zerolog"
)

// BookingRequest is what a tenant sends to reserve a slot.
type BookingRequest struct {
	ListingID   int64
	TenantName  string
	TenantPhone string
	LeaseMonths int
	MoveInDate  time.Time
	Note        string
}

type BookingService struct {
	repo         domain.BookingRepository
	rules        payments.Rules
	eventBus     domain.EventPublisher
	ledgerWorker domain.SyncWorker
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewBookingService(repo domain.BookingRepository, rules payments.Rules, eventBus domain.EventPublisher, ledgerWorker domain.SyncWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		rules:        rules,
		eventBus:     eventBus,
		ledgerWorker: ledgerWorker,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *BookingService) Request(ctx context.Context, actor Actor, req BookingRequest) (*models.Booking, error) {
	if actor.Role != models.RoleTenant {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.TenantName) == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrValidation)
	}
	if req.LeaseMonths < 0 || req.LeaseMonths > 60 {
		return nil, fmt.Errorf("%w: lease months must be between 1 and 60", ErrValidation)
	}
	if req.MoveInDate.IsZero() {
		return nil, fmt.Errorf("%w: move-in date is required", ErrValidation)
	}
	if models.DateOf(req.MoveInDate).Before(models.DateOf(s.now())) {
		return nil, fmt.Errorf("%w: move-in date is in the past", ErrValidation)
	}

	listing, err := s.repo.GetListing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingPublished || listing.Available() == 0 {
		return nil, ErrListingUnavailable
	}
	if listing.OwnerID == actor.UserID {
		return nil, fmt.Errorf("%w: owners cannot book their own listing", ErrValidation)
	}

	exists, err := s.repo.HasActiveBooking(ctx, listing.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateBooking
	}

	booking := &models.Booking{
		ListingID:       listing.ID,
		ListingTitle:    listing.Title,
		TenantID:        actor.UserID,
		OwnerID:         listing.OwnerID,
		TenantName:      strings.TrimSpace(req.TenantName),
		TenantPhone:     strings.TrimSpace(req.TenantPhone),
		MonthlyRent:     listing.MonthlyRent,
		AdvanceMonths:   listing.AdvanceMonths,
		SecurityDeposit: listing.SecurityDeposit,
		LeaseMonths:     req.LeaseMonths,
		MoveInDate:      req.MoveInDate,
		Status:          models.StatusPending,
		Note:            strings.TrimSpace(req.Note),
	}
	booking.LeaseMonths = s.rules.LeaseMonths(booking)

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingRequested, booking, actor.UserID)
	return booking, nil
}

// Approve takes a slot and creates the rent schedule in one transaction.
func (s *BookingService) Approve(ctx context.Context, actor Actor, bookingID, version int64) (*models.Booking, error) {
	booking, err := s.ownedBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: booking %s -> %s", ErrInvalidTransition, booking.Status, models.StatusApproved)
	}
	if version, err = bookingVersion(booking, version); err != nil {
		return nil, err
	}

	schedule := s.rules.Schedule(booking)
	if err := s.repo.ApproveBookingTx(ctx, bookingID, version, schedule); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingApproved, updated, actor.UserID)
	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventPaymentsCreated, events.PaymentEventPayload{
			PaymentID: schedule[0].ID,
			BookingID: updated.ID,
			TenantID:  updated.TenantID,
			OwnerID:   updated.OwnerID,
			Period:    schedule[0].Period,
			Amount:    schedule[0].Amount,
			Status:    models.PaymentPending,
		}); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", updated.ID).Msg("publish event error")
		}
	}
	for _, p := range schedule {
		s.enqueueSync(ctx, p, "upsert")
	}
	return updated, nil
}

func (s *BookingService) Reject(ctx context.Context, actor Actor, bookingID, version int64, note string) (*models.Booking, error) {
	booking, err := s.ownedBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, actor, booking, version, models.StatusPending, models.StatusRejected, note, events.EventBookingRejected)
}

// Cancel withdraws a pending request. Only the tenant can cancel.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, bookingID, version int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TenantID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.changeStatus(ctx, actor, booking, version, models.StatusPending, models.StatusCancelled, "", events.EventBookingCancelled)
}

// Complete ends an approved tenancy and frees the slot.
func (s *BookingService) Complete(ctx context.Context, actor Actor, bookingID, version int64) (*models.Booking, error) {
	booking, err := s.ownedBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: booking %s -> %s", ErrInvalidTransition, booking.Status, models.StatusCompleted)
	}
	if version, err = bookingVersion(booking, version); err != nil {
		return nil, err
	}
	if err := s.repo.CompleteBookingTx(ctx, bookingID, version); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingCompleted, updated, actor.UserID)
	return updated, nil
}

func (s *BookingService) Get(ctx context.Context, actor Actor, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TenantID != actor.UserID && !actor.Owns(booking.OwnerID) {
		return nil, ErrForbidden
	}
	return booking, nil
}

// List returns the actor's bookings: as tenant, as owner, or all for admins.
func (s *BookingService) List(ctx context.Context, actor Actor, statuses []string) ([]*models.Booking, error) {
	filter := database.BookingFilter{Statuses: statuses}
	switch actor.Role {
	case models.RoleTenant:
		filter.TenantID = actor.UserID
	case models.RoleOwner:
		filter.OwnerID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	return s.repo.ListBookings(ctx, filter)
}

func (s *BookingService) ownedBooking(ctx context.Context, actor Actor, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(booking.OwnerID) {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) changeStatus(ctx context.Context, actor Actor, booking *models.Booking, version int64, from, to, note, eventType string) (*models.Booking, error) {
	if booking.Status != from {
		return nil, fmt.Errorf("%w: booking %s -> %s", ErrInvalidTransition, booking.Status, to)
	}
	version, err := bookingVersion(booking, version)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, version, from, to, strings.TrimSpace(note)); err != nil {
		return nil, err
	}
	updated, err := s.repo.GetBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(eventType, updated, actor.UserID)
	return updated, nil
}

// bookingVersion resolves the version a write expects. Zero means the
// version just read, as for rent payments.
func bookingVersion(b *models.Booking, version int64) (int64, error) {
	if version == 0 {
		return b.Version, nil
	}
	if version != b.Version {
		return 0, fmt.Errorf("booking %d is at version %d, got %d: %w", b.ID, b.Version, version, database.ErrConcurrentModification)
	}
	return version, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:    booking.ID,
		ListingID:    booking.ListingID,
		ListingTitle: booking.ListingTitle,
		TenantID:     booking.TenantID,
		OwnerID:      booking.OwnerID,
		TenantName:   booking.TenantName,
		Status:       booking.Status,
		MoveInDate:   booking.MoveInDate,
		ChangedByID:  changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, payment *models.RentPayment, taskType string) {
	if s.ledgerWorker == nil {
		return
	}
	if err := s.ledgerWorker.EnqueueTask(ctx, taskType, payment.ID, payment); err != nil {
		s.logger.Error().Err(err).Int64("payment_id", payment.ID).Str("task", taskType).Msg("ledger enqueue error")
	}
}
