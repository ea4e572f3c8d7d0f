package payments

import (
	"testing"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() Rules {
	return Rules{
		GraceDays:          5,
		LateFeeMode:        models.LateFeePercent,
		LateFeePercent:     5,
		DefaultLeaseMonths: 12,
	}
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:              7,
		TenantID:        20,
		OwnerID:         10,
		MonthlyRent:     800000,
		AdvanceMonths:   2,
		SecurityDeposit: 1600000,
		LeaseMonths:     6,
		MoveInDate:      time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestFirstPaymentAmount(t *testing.T) {
	assert.Equal(t, int64(800000*3+1600000), FirstPaymentAmount(800000, 2, 1600000))
	assert.Equal(t, int64(500000), FirstPaymentAmount(500000, 0, 0))
	assert.Equal(t, int64(500000), FirstPaymentAmount(500000, -1, 0))
}

func TestRulesFromConfig(t *testing.T) {
	r := RulesFromConfig(config.PaymentsConfig{GraceDays: 3, LateFeeMode: models.LateFeeFixed, LateFeeAmount: 50000})
	assert.Equal(t, 3, r.GraceDays)
	assert.Equal(t, models.DefaultLeaseMonths, r.DefaultLeaseMonths)
	assert.Equal(t, int64(50000), r.LateFee(&models.RentPayment{Amount: 1}))
}

func TestLateFee(t *testing.T) {
	r := testRules()
	assert.Equal(t, int64(40000), r.LateFee(&models.RentPayment{Amount: 800000}))
	assert.Equal(t, int64(0), r.LateFee(&models.RentPayment{Amount: 800000, IsFirstPayment: true}))
	// Rounded to the nearest centavo.
	assert.Equal(t, int64(17), r.LateFee(&models.RentPayment{Amount: 333}))

	r.LateFeeMode = "unknown"
	assert.Equal(t, int64(0), r.LateFee(&models.RentPayment{Amount: 800000}))
}

func TestIsPastGrace(t *testing.T) {
	r := testRules()
	p := &models.RentPayment{DueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}

	assert.False(t, r.IsPastGrace(p, time.Date(2025, 3, 6, 23, 0, 0, 0, time.UTC)))
	assert.True(t, r.IsPastGrace(p, time.Date(2025, 3, 7, 0, 1, 0, 0, time.UTC)))
}

func TestDueDateClampsToMonthEnd(t *testing.T) {
	moveIn := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), DueDate(moveIn, 1))
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), DueDate(moveIn, 2))
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), DueDate(moveIn, 3))
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), DueDate(moveIn, 12))
}

func TestSchedule(t *testing.T) {
	r := testRules()
	b := testBooking()

	schedule := r.Schedule(b)
	// First + months 3..5; months 1..2 are covered by the advance.
	require.Len(t, schedule, 4)

	first := schedule[0]
	assert.True(t, first.IsFirstPayment)
	assert.Equal(t, "2025-01", first.Period)
	assert.Equal(t, FirstPaymentAmount(800000, 2, 1600000), first.Amount)
	assert.Equal(t, models.PaymentPending, first.Status)

	assert.Equal(t, "2025-04", schedule[1].Period)
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, "2025-06", schedule[3].Period)
	for _, p := range schedule[1:] {
		assert.False(t, p.IsFirstPayment)
		assert.Equal(t, int64(800000), p.Amount)
		assert.Equal(t, b.ID, p.BookingID)
	}

	paidAt := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	advance := r.AdvancePayments(b, paidAt)
	require.Len(t, advance, 2)
	assert.Equal(t, "2025-02", advance[0].Period)
	assert.Equal(t, "2025-03", advance[1].Period)
	for _, p := range advance {
		assert.Equal(t, models.PaymentPaid, p.Status)
		assert.Equal(t, models.MethodAdvance, p.PaymentMethod)
		assert.Equal(t, p.Amount, p.AmountPaid)
		require.NotNil(t, p.PaidDate)
	}
}

func TestScheduleAdvanceCappedByLease(t *testing.T) {
	r := testRules()
	b := testBooking()
	b.LeaseMonths = 2
	b.AdvanceMonths = 5

	schedule := r.Schedule(b)
	require.Len(t, schedule, 1)
	assert.Equal(t, FirstPaymentAmount(800000, 1, 1600000), schedule[0].Amount)
	assert.Len(t, r.AdvancePayments(b, time.Now()), 1)
}

func TestScheduleDefaultLease(t *testing.T) {
	r := testRules()
	b := testBooking()
	b.LeaseMonths = 0
	b.AdvanceMonths = 0
	assert.Len(t, r.Schedule(b), 12)
}
