package database

import (
	"context"
	"errors"
	"testing"

	"hanapbahay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	listing := seedListing(t, db, 2)
	assert.Equal(t, int64(1), listing.Version)

	got, err := db.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.Title, got.Title)
	assert.Equal(t, []string{"wifi", "aircon"}, got.Amenities)
	assert.Empty(t, got.MediaURIs)

	got.Title = "Renovated studio"
	require.NoError(t, db.UpdateListing(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	// Stale copy loses.
	listing.Title = "Stale"
	err = db.UpdateListing(ctx, listing)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	require.NoError(t, db.UpdateListingStatus(ctx, got.ID, got.Version, models.ListingUnlisted))
	got, err = db.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingUnlisted, got.Status)
	assert.Equal(t, "Renovated studio", got.Title)

	require.NoError(t, db.DeleteListing(ctx, got.ID))
	_, err = db.GetListing(ctx, got.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListListingsFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	cheap := &models.Listing{OwnerID: 1, Title: "Bedspace", City: "Manila", MonthlyRent: 300000, Capacity: 4, Status: models.ListingPublished}
	full := &models.Listing{OwnerID: 1, Title: "Condo", City: "Makati", MonthlyRent: 2500000, Capacity: 1, Occupied: 1, Status: models.ListingFull}
	draft := &models.Listing{OwnerID: 2, Title: "Draft", City: "Manila", MonthlyRent: 500000, Capacity: 1}
	for _, l := range []*models.Listing{cheap, full, draft} {
		require.NoError(t, db.CreateListing(ctx, l))
	}

	published, err := db.ListListings(ctx, models.ListingFilter{Status: models.ListingPublished})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, cheap.ID, published[0].ID)

	manila, err := db.ListListings(ctx, models.ListingFilter{City: "manila"})
	require.NoError(t, err)
	assert.Len(t, manila, 2)

	affordable, err := db.ListListings(ctx, models.ListingFilter{MaxRent: 1000000})
	require.NoError(t, err)
	assert.Len(t, affordable, 2)

	available, err := db.ListListings(ctx, models.ListingFilter{OwnerID: 1, AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Bedspace", available[0].Title)

	paged, err := db.ListListings(ctx, models.ListingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestUpdateListingCapacityBelowOccupied(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	listing := &models.Listing{OwnerID: 1, Title: "Room", MonthlyRent: 100, Capacity: 3, Occupied: 2}
	require.NoError(t, db.CreateListing(ctx, listing))

	listing.Capacity = 1
	assert.ErrorIs(t, db.UpdateListing(ctx, listing), ErrConcurrentModification)
}

func TestDeleteListingWithActiveBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	listing := seedListing(t, db, 1)
	seedBooking(t, db, listing, 20)

	count, err := db.CountActiveBookings(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Error(t, db.DeleteListing(ctx, listing.ID))
}
