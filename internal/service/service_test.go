package service

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/events"
	"hanapbahay/internal/models"
	"hanapbahay/internal/paymongo"
	"hanapbahay/internal/payments"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	owner  = Actor{UserID: 10, Role: models.RoleOwner}
	tenant = Actor{UserID: 20, Role: models.RoleTenant}
	other  = Actor{UserID: 30, Role: models.RoleTenant}
	admin  = Actor{UserID: 1, Role: models.RoleAdmin}
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func testRules() payments.Rules {
	return payments.Rules{
		GraceDays:          5,
		LateFeeMode:        models.LateFeePercent,
		LateFeePercent:     5,
		DefaultLeaseMonths: 12,
	}
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, paymentID int64, payment *models.RentPayment) error {
	return m.Called(ctx, taskType, paymentID, payment).Error(0)
}

func newSyncWorker() *mockSyncWorker {
	w := new(mockSyncWorker)
	w.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return w
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, req paymongo.PaymentIntentRequest, key string) (*paymongo.PaymentIntent, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymongo.PaymentIntent), args.Error(1)
}

func (m *mockGateway) RetrievePaymentIntent(ctx context.Context, id string) (*paymongo.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymongo.PaymentIntent), args.Error(1)
}

// recorder collects published event types.
type recorder struct {
	mu    sync.Mutex
	types []string
}

func newRecordingBus(types ...string) (*events.EventBus, *recorder) {
	bus := events.NewEventBus()
	rec := &recorder{}
	for _, typ := range types {
		bus.Subscribe(typ, func(e *events.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.types = append(rec.types, e.Type)
			return nil
		})
	}
	return bus, rec
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func seedListing(t *testing.T, db *database.DB, capacity int) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		OwnerID:         owner.UserID,
		Title:           "Studio near UP Diliman",
		Address:         "12 Maginhawa St",
		City:            "Quezon City",
		PropertyType:    "apartment",
		MonthlyRent:     800000,
		AdvanceMonths:   1,
		SecurityDeposit: 800000,
		Capacity:        capacity,
		Status:          models.ListingPublished,
	}
	require.NoError(t, db.CreateListing(context.Background(), listing))
	return listing
}

var moveIn = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// seedApproved creates an approved six month booking moving in on 2025-03-01.
func seedApproved(t *testing.T, db *database.DB) (*models.Booking, []*models.RentPayment) {
	t.Helper()
	ctx := context.Background()
	listing := seedListing(t, db, 2)
	booking := &models.Booking{
		ListingID:       listing.ID,
		ListingTitle:    listing.Title,
		TenantID:        tenant.UserID,
		OwnerID:         owner.UserID,
		TenantName:      "Juan dela Cruz",
		MonthlyRent:     listing.MonthlyRent,
		AdvanceMonths:   listing.AdvanceMonths,
		SecurityDeposit: listing.SecurityDeposit,
		LeaseMonths:     6,
		MoveInDate:      moveIn,
	}
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NoError(t, db.ApproveBookingTx(ctx, booking.ID, booking.Version, testRules().Schedule(booking)))

	booking, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	list, err := db.ListPayments(ctx, database.PaymentFilter{BookingID: booking.ID})
	require.NoError(t, err)
	return booking, list
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
