package database

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func seedListing(t *testing.T, db *DB, capacity int) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		OwnerID:         10,
		Title:           "Studio near UP Diliman",
		City:            "Quezon City",
		PropertyType:    "apartment",
		MonthlyRent:     800000,
		AdvanceMonths:   1,
		SecurityDeposit: 800000,
		Capacity:        capacity,
		Amenities:       []string{"wifi", "aircon"},
		Status:          models.ListingPublished,
	}
	require.NoError(t, db.CreateListing(context.Background(), listing))
	return listing
}

func seedBooking(t *testing.T, db *DB, listing *models.Listing, tenantID int64) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		ListingID:       listing.ID,
		ListingTitle:    listing.Title,
		TenantID:        tenantID,
		OwnerID:         listing.OwnerID,
		TenantName:      "Juan",
		MonthlyRent:     listing.MonthlyRent,
		AdvanceMonths:   listing.AdvanceMonths,
		SecurityDeposit: listing.SecurityDeposit,
		LeaseMonths:     6,
		MoveInDate:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDB(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestEnsureColumn(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	// Column already exists, must be a no-op.
	require.NoError(t, db.ensureColumn("rent_payments", "payment_intent_id", "TEXT NOT NULL DEFAULT ''"))
	require.NoError(t, db.ensureColumn("users", "locale", "TEXT NOT NULL DEFAULT ''"))
	require.NoError(t, db.ensureColumn("users", "locale", "TEXT NOT NULL DEFAULT ''"))
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	assert.NoError(t, db.PingContext(context.Background()))
}

func TestDB_ErrorPaths(t *testing.T) {
	db := setupTestDB(t)
	db.Close()

	ctx := context.Background()

	t.Run("CreateListing", func(t *testing.T) {
		assert.Error(t, db.CreateListing(ctx, &models.Listing{}))
	})
	t.Run("CreateBooking", func(t *testing.T) {
		assert.Error(t, db.CreateBooking(ctx, &models.Booking{}))
	})
	t.Run("ListPayments", func(t *testing.T) {
		_, err := db.ListPayments(ctx, PaymentFilter{})
		assert.Error(t, err)
	})
	t.Run("CreateSyncTask", func(t *testing.T) {
		assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{}))
	})
	t.Run("ApproveBookingTx", func(t *testing.T) {
		assert.Error(t, db.ApproveBookingTx(ctx, 1, 1, nil))
	})
}

func TestGetMissingRecords(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.GetListing(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.GetBooking(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.GetPayment(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.GetConversation(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = db.GetUserByID(ctx, 404)
	assert.True(t, errors.Is(err, ErrNotFound))
}
