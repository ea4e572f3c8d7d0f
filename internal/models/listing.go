package models

import "time"

type Listing struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"owner_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PropertyType    string    `json:"property_type"` // apartment, room, bedspace, house
	Address         string    `json:"address"`
	City            string    `json:"city"`
	MonthlyRent     int64     `json:"monthly_rent"`
	AdvanceMonths   int       `json:"advance_months"`
	SecurityDeposit int64     `json:"security_deposit"`
	Capacity        int       `json:"capacity"`
	Occupied        int       `json:"occupied"`
	Amenities       []string  `json:"amenities"`
	MediaURIs       []string  `json:"media_uris"`
	Status          string    `json:"status"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Available reports the number of free slots.
func (l *Listing) Available() int {
	free := l.Capacity - l.Occupied
	if free < 0 {
		return 0
	}
	return free
}

// ListingFilter narrows ListListings.
type ListingFilter struct {
	OwnerID       int64
	City          string
	PropertyType  string
	MaxRent       int64
	Status        string
	AvailableOnly bool
	Limit         int
	Offset        int
}
