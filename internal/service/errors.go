package service

import (
	"errors"

	"hanapbahay/internal/models"
	"hanapbahay/internal/payments"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrListingUnavailable = errors.New("listing is not accepting bookings")
	ErrDuplicateBooking   = errors.New("tenant already has an active booking for this listing")
	ErrRateLimited        = errors.New("too many checkout attempts")
	ErrGatewayDisabled    = errors.New("payment gateway is not configured")

	ErrInvalidTransition = payments.ErrInvalidTransition
	ErrInvalidAmount     = payments.ErrInvalidAmount
)

// Actor is the authenticated user a call is made for.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Owns reports whether the actor is ownerID or an admin.
func (a Actor) Owns(ownerID int64) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}

// System is the actor used by schedulers and webhooks.
var System = Actor{Role: models.RoleAdmin}
