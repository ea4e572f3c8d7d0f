package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hanapbahay/internal/models"
)

const listingColumns = `id, owner_id, title, description, property_type, address, city,
	monthly_rent, advance_months, security_deposit, capacity, occupied,
	amenities, media_uris, status, version, created_at, updated_at`

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	var amenities, media string
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.PropertyType, &l.Address, &l.City,
		&l.MonthlyRent, &l.AdvanceMonths, &l.SecurityDeposit, &l.Capacity, &l.Occupied,
		&amenities, &media, &l.Status, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Amenities = decodeList(amenities)
	l.MediaURIs = decodeList(media)
	return &l, nil
}

func (db *DB) CreateListing(ctx context.Context, listing *models.Listing) error {
	if listing.Status == "" {
		listing.Status = models.ListingDraft
	}
	now := time.Now()
	query := `INSERT INTO published_listings (
				owner_id, title, description, property_type, address, city,
				monthly_rent, advance_months, security_deposit, capacity, occupied,
				amenities, media_uris, status, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		listing.OwnerID,
		listing.Title,
		listing.Description,
		listing.PropertyType,
		listing.Address,
		listing.City,
		listing.MonthlyRent,
		listing.AdvanceMonths,
		listing.SecurityDeposit,
		listing.Capacity,
		listing.Occupied,
		encodeList(listing.Amenities),
		encodeList(listing.MediaURIs),
		listing.Status,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	listing.ID = id
	listing.Version = 1
	listing.CreatedAt = now
	listing.UpdatedAt = now
	return nil
}

func (db *DB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM published_listings WHERE id = ?`
	listing, err := scanListing(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "listing", id)
	}
	return listing, nil
}

// UpdateListing writes the editable fields when listing.Version still matches
// the stored version. Occupancy is owned by booking transactions and is not
// touched here.
func (db *DB) UpdateListing(ctx context.Context, listing *models.Listing) error {
	query := `UPDATE published_listings SET
				title = ?, description = ?, property_type = ?, address = ?, city = ?,
				monthly_rent = ?, advance_months = ?, security_deposit = ?, capacity = ?,
				amenities = ?, media_uris = ?, status = ?,
				version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND occupied <= ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		listing.Title,
		listing.Description,
		listing.PropertyType,
		listing.Address,
		listing.City,
		listing.MonthlyRent,
		listing.AdvanceMonths,
		listing.SecurityDeposit,
		listing.Capacity,
		encodeList(listing.Amenities),
		encodeList(listing.MediaURIs),
		listing.Status,
		now,
		listing.ID,
		listing.Version,
		listing.Capacity,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	listing.Version++
	listing.UpdatedAt = now
	return nil
}

func (db *DB) UpdateListingStatus(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE published_listings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	return checkAffected(result)
}

func (db *DB) ListListings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, error) {
	var where []string
	var args []interface{}

	if filter.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.City != "" {
		where = append(where, "LOWER(city) = LOWER(?)")
		args = append(args, filter.City)
	}
	if filter.PropertyType != "" {
		where = append(where, "property_type = ?")
		args = append(args, filter.PropertyType)
	}
	if filter.MaxRent > 0 {
		where = append(where, "monthly_rent <= ?")
		args = append(args, filter.MaxRent)
	}
	if filter.AvailableOnly {
		where = append(where, "occupied < capacity")
	}

	query := `SELECT ` + listingColumns + ` FROM published_listings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	if limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// DeleteListing removes a listing that has no pending or approved bookings.
func (db *DB) DeleteListing(ctx context.Context, id int64) error {
	query := `DELETE FROM published_listings
              WHERE id = ? AND NOT EXISTS (
                SELECT 1 FROM bookings WHERE listing_id = ? AND status IN (?, ?)
              )`
	result, err := db.ExecContext(ctx, query, id, id, models.StatusPending, models.StatusApproved)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("listing %d has active bookings or does not exist: %w", id, ErrConcurrentModification)
	}
	return nil
}

func (db *DB) CountActiveBookings(ctx context.Context, listingID int64) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE listing_id = ? AND status IN (?, ?)`
	var count int
	if err := db.QueryRowContext(ctx, query, listingID, models.StatusPending, models.StatusApproved).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return count, nil
}
