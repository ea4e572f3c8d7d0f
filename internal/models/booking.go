package models

import "time"

type Booking struct {
	ID              int64     `json:"id"`
	ListingID       int64     `json:"listing_id"`
	ListingTitle    string    `json:"listing_title"`
	TenantID        int64     `json:"tenant_id"`
	OwnerID         int64     `json:"owner_id"`
	TenantName      string    `json:"tenant_name"`
	TenantPhone     string    `json:"tenant_phone"`
	MonthlyRent     int64     `json:"monthly_rent"`
	AdvanceMonths   int       `json:"advance_months"`
	SecurityDeposit int64     `json:"security_deposit"`
	LeaseMonths     int       `json:"lease_months"`
	MoveInDate      time.Time `json:"move_in_date"`
	Status          string    `json:"status"` // pending, approved, rejected, cancelled, completed
	Note            string    `json:"note"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still holds or requests a slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}
