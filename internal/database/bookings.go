package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hanapbahay/internal/models"
)

const bookingColumns = `id, listing_id, listing_title, tenant_id, owner_id, tenant_name, tenant_phone,
	monthly_rent, advance_months, security_deposit, lease_months, move_in_date,
	status, note, version, created_at, updated_at`

// BookingFilter narrows ListBookings. Zero fields are ignored.
type BookingFilter struct {
	TenantID  int64
	OwnerID   int64
	ListingID int64
	Statuses  []string
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var moveIn string
	err := row.Scan(
		&b.ID, &b.ListingID, &b.ListingTitle, &b.TenantID, &b.OwnerID, &b.TenantName, &b.TenantPhone,
		&b.MonthlyRent, &b.AdvanceMonths, &b.SecurityDeposit, &b.LeaseMonths, &moveIn,
		&b.Status, &b.Note, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.MoveInDate, err = models.ParseDate(moveIn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse move-in date %s: %w", moveIn, err)
	}
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	query := `INSERT INTO bookings (
				listing_id, listing_title, tenant_id, owner_id, tenant_name, tenant_phone,
				monthly_rent, advance_months, security_deposit, lease_months, move_in_date,
				status, note, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.ListingID,
		booking.ListingTitle,
		booking.TenantID,
		booking.OwnerID,
		booking.TenantName,
		booking.TenantPhone,
		booking.MonthlyRent,
		booking.AdvanceMonths,
		booking.SecurityDeposit,
		booking.LeaseMonths,
		booking.MoveInDate.Format(models.DateLayout),
		booking.Status,
		booking.Note,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return booking, nil
}

func (db *DB) ListBookings(ctx context.Context, filter BookingFilter) ([]*models.Booking, error) {
	var where []string
	var args []interface{}
	if filter.TenantID != 0 {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ListingID != 0 {
		where = append(where, "listing_id = ?")
		args = append(args, filter.ListingID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// HasActiveBooking reports whether the tenant already holds or requests a
// slot on the listing.
func (db *DB) HasActiveBooking(ctx context.Context, listingID, tenantID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE listing_id = ? AND tenant_id = ? AND status IN (?, ?)`
	var count int
	err := db.QueryRowContext(ctx, query, listingID, tenantID, models.StatusPending, models.StatusApproved).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check active booking: %w", err)
	}
	return count > 0, nil
}

// UpdateBookingStatusWithVersion moves a booking from fromStatus to status
// when its version still matches.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, fromStatus, status, note string) error {
	query := `UPDATE bookings SET status = ?, note = CASE WHEN ? = '' THEN note ELSE ? END,
                version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, status, note, note, time.Now(), id, fromVersion, fromStatus)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return checkAffected(result)
}

// ApproveBookingTx approves a pending booking, takes one slot of its listing
// and inserts the payment schedule in a single transaction.
func (db *DB) ApproveBookingTx(ctx context.Context, bookingID, fromVersion int64, schedule []*models.RentPayment) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var listingID int64
		err := tx.QueryRowContext(ctx, `SELECT listing_id FROM bookings WHERE id = ?`, bookingID).Scan(&listingID)
		if err != nil {
			return notFound(err, "booking", bookingID)
		}

		var capacity, occupied int
		var listingVersion int64
		err = tx.QueryRowContext(ctx, `SELECT capacity, occupied, version FROM published_listings WHERE id = ?`,
			listingID).Scan(&capacity, &occupied, &listingVersion)
		if err != nil {
			return notFound(err, "listing", listingID)
		}
		if occupied >= capacity {
			return ErrNoCapacity
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx, `UPDATE published_listings
			SET occupied = occupied + 1,
			    status = CASE WHEN occupied + 1 >= capacity THEN ? ELSE status END,
			    version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			models.ListingFull, now, listingID, listingVersion)
		if err != nil {
			return fmt.Errorf("failed to take listing slot: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND status = ?`,
			models.StatusApproved, now, bookingID, fromVersion, models.StatusPending)
		if err != nil {
			return fmt.Errorf("failed to approve booking: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		for _, p := range schedule {
			p.BookingID = bookingID
			if err := insertPayment(ctx, tx, p, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// CompleteBookingTx ends an approved booking and frees its listing slot.
// A full listing becomes published again.
func (db *DB) CompleteBookingTx(ctx context.Context, bookingID, fromVersion int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var listingID int64
		err := tx.QueryRowContext(ctx, `SELECT listing_id FROM bookings WHERE id = ?`, bookingID).Scan(&listingID)
		if err != nil {
			return notFound(err, "booking", bookingID)
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND status = ?`,
			models.StatusCompleted, now, bookingID, fromVersion, models.StatusApproved)
		if err != nil {
			return fmt.Errorf("failed to complete booking: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE published_listings
			SET occupied = MAX(occupied - 1, 0),
			    status = CASE WHEN status = ? THEN ? ELSE status END,
			    version = version + 1, updated_at = ?
			WHERE id = ?`,
			models.ListingFull, models.ListingPublished, now, listingID)
		if err != nil {
			return fmt.Errorf("failed to free listing slot: %w", err)
		}
		return nil
	})
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
