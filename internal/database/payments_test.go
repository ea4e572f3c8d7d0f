package database

import (
	"context"
	"testing"
	"time"

	"hanapbahay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedBooking(t *testing.T, db *DB) (*models.Booking, []*models.RentPayment) {
	t.Helper()
	ctx := context.Background()
	listing := seedListing(t, db, 2)
	booking := seedBooking(t, db, listing, 20)
	require.NoError(t, db.ApproveBookingTx(ctx, booking.ID, booking.Version, testSchedule(booking)))
	payments, err := db.ListPayments(ctx, PaymentFilter{BookingID: booking.ID})
	require.NoError(t, err)
	return booking, payments
}

func periodRow(b *models.Booking, due time.Time) *models.RentPayment {
	return &models.RentPayment{
		BookingID: b.ID,
		TenantID:  b.TenantID,
		OwnerID:   b.OwnerID,
		Period:    due.Format(models.PeriodLayout),
		DueDate:   due,
		Amount:    b.MonthlyRent,
	}
}

func TestApplyLedgerRepair(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking, payments := approvedBooking(t, db)
	last := payments[2]

	rewrite := func() PaymentTransition {
		fixed := *last
		fixed.Amount = 750000
		return PaymentTransition{
			Payment:     &fixed,
			FromVersion: last.Version,
			Audit:       &models.PaymentAuditEntry{FromStatus: last.Status, ToStatus: last.Status, ActorID: 10, Action: "repair"},
		}
	}

	t.Run("DuplicatePeriodRollsBackRewrites", func(t *testing.T) {
		dup := periodRow(booking, payments[1].DueDate)
		err := db.ApplyLedgerRepair(ctx, []PaymentTransition{rewrite()}, []*models.RentPayment{dup}, 10)
		assert.ErrorIs(t, err, ErrDuplicatePeriod)

		got, err := db.GetPayment(ctx, last.ID)
		require.NoError(t, err)
		assert.Equal(t, last.Amount, got.Amount)
		assert.Equal(t, last.Version, got.Version)

		audit, err := db.ListPaymentAudit(ctx, last.ID)
		require.NoError(t, err)
		assert.Empty(t, audit)
	})

	t.Run("Applies", func(t *testing.T) {
		missing := periodRow(booking, last.DueDate.AddDate(0, 1, 0))
		require.NoError(t, db.ApplyLedgerRepair(ctx, []PaymentTransition{rewrite()}, []*models.RentPayment{missing}, 10))

		got, err := db.GetPayment(ctx, last.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(750000), got.Amount)

		all, err := db.ListPayments(ctx, PaymentFilter{BookingID: booking.ID})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		audit, err := db.ListPaymentAudit(ctx, missing.ID)
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, "create", audit[0].Action)
		assert.Equal(t, int64(10), audit[0].ActorID)
	})
}

func TestApplyPaymentTransition_CreditsGatewayOnce(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, payments := approvedBooking(t, db)
	p := payments[1]

	credited, err := db.GatewayCredited(ctx, "pi_x")
	require.NoError(t, err)
	assert.False(t, credited)

	p.AmountPaid = 400000
	p.Status = models.PaymentPartial
	require.NoError(t, db.ApplyPaymentTransition(ctx, PaymentTransition{
		Payment:          p,
		FromVersion:      p.Version,
		WebhookEventID:   "evt_a",
		WebhookEventType: "payment.paid",
		CreditKey:        "pi_x",
		CreditAmount:     400000,
	}))

	credited, err = db.GatewayCredited(ctx, "pi_x")
	require.NoError(t, err)
	assert.True(t, credited)

	// Another event for the same intent rolls back, event id included.
	again := *p
	again.AmountPaid = 800000
	again.Status = models.PaymentPaid
	err = db.ApplyPaymentTransition(ctx, PaymentTransition{
		Payment:          &again,
		FromVersion:      p.Version,
		WebhookEventID:   "evt_b",
		WebhookEventType: "payment_intent.succeeded",
		CreditKey:        "pi_x",
		CreditAmount:     400000,
	})
	assert.ErrorIs(t, err, ErrDuplicateCredit)

	got, err := db.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400000), got.AmountPaid)
	fresh, err := db.RecordWebhookEvent(ctx, "evt_b", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestApplyPaymentTransition(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking, payments := approvedBooking(t, db)
	p := payments[0]

	submitted := time.Now().Truncate(time.Second)
	p.Status = models.PaymentPendingOwnerConfirmation
	p.PaymentMethod = models.MethodGCash
	p.ReferenceNumber = "GC-123"
	p.SubmittedAmount = p.Amount
	p.SubmittedAt = &submitted

	err := db.ApplyPaymentTransition(ctx, PaymentTransition{
		Payment:     p,
		FromVersion: 1,
		Audit: &models.PaymentAuditEntry{
			FromStatus: models.PaymentPending,
			ToStatus:   models.PaymentPendingOwnerConfirmation,
			ActorID:    booking.TenantID,
			Action:     "submit",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Version)

	got, err := db.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPendingOwnerConfirmation, got.Status)
	assert.Equal(t, "GC-123", got.ReferenceNumber)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, submitted.Equal(*got.SubmittedAt))
	assert.Nil(t, got.PaidDate)

	// A second writer holding the old version loses and leaves no audit row.
	stale := *payments[0]
	stale.Status = models.PaymentRejected
	err = db.ApplyPaymentTransition(ctx, PaymentTransition{
		Payment:     &stale,
		FromVersion: 1,
		Audit:       &models.PaymentAuditEntry{FromStatus: models.PaymentPending, ToStatus: models.PaymentRejected, Action: "reject"},
	})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	audit, err := db.ListPaymentAudit(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "submit", audit[0].Action)
}

func TestApplyPaymentTransition_InsertsAndWebhook(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking, payments := approvedBooking(t, db)
	first := payments[0]

	now := time.Now()
	first.Status = models.PaymentPaid
	first.AmountPaid = first.Amount
	first.PaidDate = &now
	first.PaymentMethod = models.MethodPayMongo

	advanceDue := first.DueDate.AddDate(0, 5, 0)
	advance := &models.RentPayment{
		BookingID:     booking.ID,
		TenantID:      booking.TenantID,
		OwnerID:       booking.OwnerID,
		Period:        advanceDue.Format(models.PeriodLayout),
		DueDate:       advanceDue,
		Amount:        booking.MonthlyRent,
		AmountPaid:    booking.MonthlyRent,
		Status:        models.PaymentPaid,
		PaymentMethod: models.MethodAdvance,
		PaidDate:      &now,
	}
	existing := &models.RentPayment{
		BookingID: booking.ID,
		Period:    payments[1].Period,
		DueDate:   payments[1].DueDate,
		Status:    models.PaymentPaid,
	}

	tr := PaymentTransition{
		Payment:          first,
		FromVersion:      first.Version,
		Audit:            &models.PaymentAuditEntry{FromStatus: models.PaymentPending, ToStatus: models.PaymentPaid, Action: "gateway_paid"},
		Inserts:          []*models.RentPayment{advance, existing},
		WebhookEventID:   "evt_1",
		WebhookEventType: "payment.paid",
	}
	require.NoError(t, db.ApplyPaymentTransition(ctx, tr))

	all, err := db.ListPayments(ctx, PaymentFilter{BookingID: booking.ID})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, models.PaymentPending, all[1].Status, "existing period is not overwritten")

	// Replaying the same event is rejected atomically.
	first.Status = models.PaymentPartial
	tr.FromVersion = first.Version
	tr.Inserts = nil
	assert.ErrorIs(t, db.ApplyPaymentTransition(ctx, tr), ErrDuplicateEvent)

	got, err := db.GetPayment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.Status)

	fresh, err := db.RecordWebhookEvent(ctx, "evt_1", "payment.paid")
	require.NoError(t, err)
	assert.False(t, fresh)
	fresh, err = db.RecordWebhookEvent(ctx, "evt_2", "payment.failed")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestListPaymentsFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking, payments := approvedBooking(t, db)
	require.NoError(t, db.ApplyPaymentTransition(ctx, PaymentTransition{
		Payment:     withIntent(payments[2], "pi_abc"),
		FromVersion: payments[2].Version,
	}))

	byTenant, err := db.ListPayments(ctx, PaymentFilter{TenantID: booking.TenantID})
	require.NoError(t, err)
	assert.Len(t, byTenant, 3)

	due, err := db.ListPayments(ctx, PaymentFilter{
		OwnerID:  booking.OwnerID,
		Statuses: []string{models.PaymentPending},
		DueTo:    payments[1].DueDate,
	})
	require.NoError(t, err)
	assert.Len(t, due, 2)

	later, err := db.ListPayments(ctx, PaymentFilter{DueFrom: payments[2].DueDate})
	require.NoError(t, err)
	assert.Len(t, later, 1)

	byIntent, err := db.GetPaymentByIntent(ctx, "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, payments[2].ID, byIntent.ID)

	_, err = db.GetPaymentByIntent(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func withIntent(p *models.RentPayment, intent string) *models.RentPayment {
	p.PaymentIntentID = intent
	return p
}
