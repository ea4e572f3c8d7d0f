package export

import (
	"context"
	"testing"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	payments []*models.RentPayment
	bookings []*models.Booking
	filter   database.PaymentFilter
}

func (f *fakeSource) ListPayments(_ context.Context, filter database.PaymentFilter) ([]*models.RentPayment, error) {
	f.filter = filter
	return f.payments, nil
}

func (f *fakeSource) ListBookings(_ context.Context, _ database.BookingFilter) ([]*models.Booking, error) {
	return f.bookings, nil
}

func TestOwnerLedger(t *testing.T) {
	paid := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{
		bookings: []*models.Booking{{ID: 1, ListingTitle: "Studio near UP Diliman", TenantName: "Juan dela Cruz"}},
		payments: []*models.RentPayment{
			{
				ID: 1, BookingID: 1, Period: "2025-03", DueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				Amount: 2400000, AmountPaid: 2400000, Status: models.PaymentPaid,
				PaymentMethod: models.MethodGCash, ReferenceNumber: "GC-1", PaidDate: &paid,
			},
			{
				ID: 2, BookingID: 1, Period: "2025-05", DueDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
				Amount: 800000, LateFee: 40000, Status: models.PaymentOverdue,
			},
		},
	}
	logger := zerolog.Nop()
	exporter := NewLedgerExporter(source, t.TempDir(), &logger)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	path, err := exporter.OwnerLedger(context.Background(), 10, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(10), source.filter.OwnerID)
	assert.Equal(t, from, source.filter.DueFrom)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	title, _ := f.GetCellValue(sheetName, "A1")
	assert.Equal(t, "Rent ledger: 2025-03-01 - 2025-05-31", title)
	header, _ := f.GetCellValue(sheetName, "H3")
	assert.Equal(t, "Balance", header)

	listing, _ := f.GetCellValue(sheetName, "C4")
	assert.Equal(t, "Studio near UP Diliman", listing)
	status, _ := f.GetCellValue(sheetName, "I5")
	assert.Equal(t, models.PaymentOverdue, status)

	label, _ := f.GetCellValue(sheetName, "D7")
	assert.Equal(t, "Total", label)
	balance, _ := f.GetCellValue(sheetName, "H7", excelize.Options{RawCellValue: true})
	assert.Equal(t, "8400", balance)
}

func TestOwnerLedger_InvalidRange(t *testing.T) {
	logger := zerolog.Nop()
	exporter := NewLedgerExporter(&fakeSource{}, t.TempDir(), &logger)
	_, err := exporter.OwnerLedger(context.Background(), 10, time.Now(), time.Now().AddDate(0, 0, -1))
	assert.Error(t, err)
}
