package payments

import (
	"sort"

	"hanapbahay/internal/models"
)

// Discrepancy fields.
const (
	FieldAmount        = "amount"
	FieldLateFee       = "late_fee"
	FieldAmountPaid    = "amount_paid"
	FieldMissingPeriod = "missing_period"
	FieldFirstPayment  = "first_payment"
)

// VerifyLedger compares the stored payments of an approved booking with what
// the rules produce. It never modifies payments.
func (r Rules) VerifyLedger(b *models.Booking, payments []*models.RentPayment) []models.LedgerDiscrepancy {
	var out []models.LedgerDiscrepancy
	byPeriod := make(map[string]*models.RentPayment, len(payments))
	firsts := 0

	for _, p := range payments {
		byPeriod[p.Period] = p
		if p.IsFirstPayment {
			firsts++
		}

		if expected := r.ExpectedAmount(b, p); p.Amount != expected {
			out = append(out, discrepancy(p, FieldAmount, p.Amount, expected))
		}

		if p.IsFirstPayment && p.LateFee != 0 {
			out = append(out, discrepancy(p, FieldLateFee, p.LateFee, 0))
		} else if !p.IsFirstPayment && p.LateFee != 0 {
			if expected := r.LateFee(p); p.LateFee != expected {
				out = append(out, discrepancy(p, FieldLateFee, p.LateFee, expected))
			}
		}

		switch p.Status {
		case models.PaymentPaid:
			if p.AmountPaid < p.TotalDue() {
				out = append(out, discrepancy(p, FieldAmountPaid, p.AmountPaid, p.TotalDue()))
			}
		case models.PaymentPartial:
			if p.AmountPaid <= 0 || p.AmountPaid >= p.TotalDue() {
				out = append(out, discrepancy(p, FieldAmountPaid, p.AmountPaid, p.TotalDue()))
			}
		}
	}

	if firsts != 1 {
		out = append(out, models.LedgerDiscrepancy{Field: FieldFirstPayment, Stored: int64(firsts), Expected: 1})
	}

	expectedRows := r.Schedule(b)
	first := byPeriod[DueDate(b.MoveInDate, 0).Format(models.PeriodLayout)]
	if first != nil && first.Status == models.PaymentPaid {
		expectedRows = append(expectedRows, r.AdvancePayments(b, b.MoveInDate)...)
	}
	for _, e := range expectedRows {
		if _, ok := byPeriod[e.Period]; !ok {
			out = append(out, models.LedgerDiscrepancy{
				Period:   e.Period,
				Field:    FieldMissingPeriod,
				Expected: e.Amount,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// RepairPlan returns copies of unsettled payments rewritten to the amounts
// the rules produce. Paid rows and rows awaiting the owner are left alone.
func (r Rules) RepairPlan(b *models.Booking, payments []*models.RentPayment) []*models.RentPayment {
	var out []*models.RentPayment
	for _, p := range payments {
		if !CanApply(ActionRepair, p.Status) {
			continue
		}
		fixed := *p
		fixed.Amount = r.ExpectedAmount(b, p)
		if p.IsFirstPayment {
			fixed.LateFee = 0
		} else if p.LateFee != 0 {
			fixed.LateFee = r.LateFee(&fixed)
		}
		if fixed.Amount == p.Amount && fixed.LateFee == p.LateFee {
			continue
		}
		if fixed.AmountPaid >= fixed.TotalDue() {
			fixed.Status = models.PaymentPaid
			if fixed.PaidDate == nil {
				paid := p.UpdatedAt
				fixed.PaidDate = &paid
			}
		} else if fixed.AmountPaid > 0 {
			fixed.Status = models.PaymentPartial
		}
		out = append(out, &fixed)
	}
	return out
}

func discrepancy(p *models.RentPayment, field string, stored, expected int64) models.LedgerDiscrepancy {
	return models.LedgerDiscrepancy{
		PaymentID: p.ID,
		Period:    p.Period,
		Field:     field,
		Stored:    stored,
		Expected:  expected,
		Status:    p.Status,
	}
}
