package service

import (
	"context"
	"testing"

	"hanapbahay/internal/database"
	"hanapbahay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingService_Create(t *testing.T) {
	db := setupDB(t)
	svc := NewListingService(db, testLogger())
	ctx := context.Background()

	t.Run("OwnerDraft", func(t *testing.T) {
		listing := &models.Listing{Title: "  Bedspace in Sampaloc ", MonthlyRent: 350000, Capacity: 4}
		require.NoError(t, svc.Create(ctx, owner, listing))
		assert.Equal(t, owner.UserID, listing.OwnerID)
		assert.Equal(t, models.ListingDraft, listing.Status)
		assert.Equal(t, "Bedspace in Sampaloc", listing.Title)
	})

	t.Run("TenantForbidden", func(t *testing.T) {
		err := svc.Create(ctx, tenant, &models.Listing{Title: "x"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("IncompleteCannotPublish", func(t *testing.T) {
		err := svc.Create(ctx, owner, &models.Listing{Title: "Room", Status: models.ListingPublished})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "address")
	})

	t.Run("Validation", func(t *testing.T) {
		cases := []*models.Listing{
			{Title: ""},
			{Title: "Room", MonthlyRent: -1},
			{Title: "Room", AdvanceMonths: 13},
			{Title: "Room", PropertyType: "castle"},
			{Title: "Room", Status: models.ListingFull},
		}
		for _, l := range cases {
			assert.ErrorIs(t, svc.Create(ctx, owner, l), ErrValidation)
		}
	})
}

func TestListingService_UpdateAndPublish(t *testing.T) {
	db := setupDB(t)
	svc := NewListingService(db, testLogger())
	ctx := context.Background()

	listing := &models.Listing{Title: "Condo unit", MonthlyRent: 1500000, Capacity: 1}
	require.NoError(t, svc.Create(ctx, owner, listing))

	_, err := svc.Publish(ctx, owner, listing.ID, listing.Version)
	assert.ErrorIs(t, err, ErrValidation)

	update := *listing
	update.Address = "Ayala Ave"
	update.City = "Makati"
	update.PropertyType = "condo"
	assert.ErrorIs(t, svc.Update(ctx, other, &update), ErrForbidden)
	require.NoError(t, svc.Update(ctx, owner, &update))

	published, err := svc.Publish(ctx, owner, update.ID, update.Version)
	require.NoError(t, err)
	assert.Equal(t, models.ListingPublished, published.Status)

	_, err = svc.Publish(ctx, owner, update.ID, update.Version)
	assert.ErrorIs(t, err, database.ErrConcurrentModification)

	found, err := svc.Search(ctx, models.ListingFilter{City: "makati"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	unlisted, err := svc.Unlist(ctx, owner, published.ID, published.Version)
	require.NoError(t, err)
	assert.Equal(t, models.ListingUnlisted, unlisted.Status)

	found, err = svc.Search(ctx, models.ListingFilter{City: "makati"})
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = svc.Get(ctx, tenant, unlisted.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := svc.Get(ctx, owner, unlisted.ID)
	require.NoError(t, err)
	assert.Equal(t, "Makati", got.City)

	owned, err := svc.ListOwned(ctx, owner, models.ListingFilter{})
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestListingService_CapacityBelowOccupied(t *testing.T) {
	db := setupDB(t)
	svc := NewListingService(db, testLogger())
	ctx := context.Background()

	booking, _ := seedApproved(t, db)
	listing, err := db.GetListing(ctx, booking.ListingID)
	require.NoError(t, err)
	require.Equal(t, 1, listing.Occupied)

	listing.Capacity = 0
	assert.ErrorIs(t, svc.Update(ctx, owner, listing), ErrValidation)

	listing.Capacity = 1
	require.NoError(t, svc.Update(ctx, owner, listing))
	assert.Equal(t, models.ListingFull, listing.Status)
}

func TestListingService_Remove(t *testing.T) {
	db := setupDB(t)
	svc := NewListingService(db, testLogger())
	ctx := context.Background()

	booking, _ := seedApproved(t, db)
	assert.ErrorIs(t, svc.Remove(ctx, other, booking.ListingID), ErrForbidden)
	assert.ErrorIs(t, svc.Remove(ctx, owner, booking.ListingID), ErrValidation)

	empty := seedListing(t, db, 1)
	require.NoError(t, svc.Remove(ctx, owner, empty.ID))
	_, err := db.GetListing(ctx, empty.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
