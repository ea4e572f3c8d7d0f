// Package payments holds the rent ledger rules: amounts, schedules, late
// fees and the payment status machine. It has no storage dependencies.
package payments

import (
	"math"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/models"
)

// Rules are the owner-independent rent settings.
type Rules struct {
	GraceDays          int
	LateFeeMode        string
	LateFeeAmount      int64
	LateFeePercent     float64
	DefaultLeaseMonths int
}

func RulesFromConfig(cfg config.PaymentsConfig) Rules {
	r := Rules{
		GraceDays:          cfg.GraceDays,
		LateFeeMode:        cfg.LateFeeMode,
		LateFeeAmount:      cfg.LateFeeAmount,
		LateFeePercent:     cfg.LateFeePercent,
		DefaultLeaseMonths: cfg.DefaultLeaseMonth,
	}
	if r.DefaultLeaseMonths <= 0 {
		r.DefaultLeaseMonths = models.DefaultLeaseMonths
	}
	return r
}

// FirstPaymentAmount is the move-in payment: the first month, every advance
// month and the security deposit.
func FirstPaymentAmount(monthlyRent int64, advanceMonths int, securityDeposit int64) int64 {
	if advanceMonths < 0 {
		advanceMonths = 0
	}
	return monthlyRent*int64(1+advanceMonths) + securityDeposit
}

// LateFee returns the fee owed by p once it is past grace. First payments
// never carry a late fee.
func (r Rules) LateFee(p *models.RentPayment) int64 {
	if p.IsFirstPayment {
		return 0
	}
	switch r.LateFeeMode {
	case models.LateFeeFixed:
		return r.LateFeeAmount
	case models.LateFeePercent:
		return int64(math.Round(float64(p.Amount) * r.LateFeePercent / 100))
	default:
		return 0
	}
}

// GraceDeadline is the last day p can be paid without becoming overdue.
func (r Rules) GraceDeadline(p *models.RentPayment) time.Time {
	return dateOnly(p.DueDate).AddDate(0, 0, r.GraceDays)
}

// IsPastGrace reports whether now is on a calendar day after the grace
// deadline. Both are read in the due date's zone.
func (r Rules) IsPastGrace(p *models.RentPayment, now time.Time) bool {
	today := dateOnly(now.In(p.DueDate.Location()))
	return today.After(r.GraceDeadline(p))
}

// LeaseMonths returns the booking term, falling back to the default.
func (r Rules) LeaseMonths(b *models.Booking) int {
	if b.LeaseMonths > 0 {
		return b.LeaseMonths
	}
	if r.DefaultLeaseMonths > 0 {
		return r.DefaultLeaseMonths
	}
	return models.DefaultLeaseMonths
}

// advanceCount is how many months after the first are prepaid, capped by the lease.
func (r Rules) advanceCount(b *models.Booking) int {
	n := b.AdvanceMonths
	if n < 0 {
		n = 0
	}
	if limit := r.LeaseMonths(b) - 1; n > limit {
		n = limit
	}
	return n
}

// DueDate returns the due date monthOffset months after moveIn. Days that do
// not exist in the target month are clamped to its last day.
func DueDate(moveIn time.Time, monthOffset int) time.Time {
	y, m, d := moveIn.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, moveIn.Location()).AddDate(0, monthOffset, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, moveIn.Location())
}

// Schedule builds the rows created when a booking is approved: the first
// payment and every regular month after the advance. Advance months are
// created by AdvancePayments once the first payment is settled.
func (r Rules) Schedule(b *models.Booking) []*models.RentPayment {
	lease := r.LeaseMonths(b)
	adv := r.advanceCount(b)

	schedule := make([]*models.RentPayment, 0, lease-adv)
	schedule = append(schedule, r.newPayment(b, 0, FirstPaymentAmount(b.MonthlyRent, adv, b.SecurityDeposit), true))
	for i := adv + 1; i < lease; i++ {
		schedule = append(schedule, r.newPayment(b, i, b.MonthlyRent, false))
	}
	return schedule
}

// AdvancePayments returns the prepaid months covered by a settled first
// payment, already marked paid with method advance.
func (r Rules) AdvancePayments(b *models.Booking, paidAt time.Time) []*models.RentPayment {
	adv := r.advanceCount(b)
	rows := make([]*models.RentPayment, 0, adv)
	for i := 1; i <= adv; i++ {
		p := r.newPayment(b, i, b.MonthlyRent, false)
		paid := paidAt
		p.Status = models.PaymentPaid
		p.AmountPaid = b.MonthlyRent
		p.PaymentMethod = models.MethodAdvance
		p.ReferenceNumber = "ADVANCE"
		p.PaidDate = &paid
		rows = append(rows, p)
	}
	return rows
}

// ExpectedAmount is the rent a stored payment should carry.
func (r Rules) ExpectedAmount(b *models.Booking, p *models.RentPayment) int64 {
	if p.IsFirstPayment {
		return FirstPaymentAmount(b.MonthlyRent, r.advanceCount(b), b.SecurityDeposit)
	}
	return b.MonthlyRent
}

func (r Rules) newPayment(b *models.Booking, offset int, amount int64, first bool) *models.RentPayment {
	due := DueDate(b.MoveInDate, offset)
	return &models.RentPayment{
		BookingID:      b.ID,
		TenantID:       b.TenantID,
		OwnerID:        b.OwnerID,
		Period:         due.Format(models.PeriodLayout),
		DueDate:        due,
		Amount:         amount,
		IsFirstPayment: first,
		Status:         models.PaymentPending,
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
