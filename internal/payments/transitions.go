package payments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hanapbahay/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidAmount     = errors.New("invalid payment amount")
	ErrInvalidSubmission = errors.New("invalid payment submission")
)

// SupersededReason marks a manual submission replaced by gateway funds.
const SupersededReason = "superseded by online payment"

// Action names a payment event. It is also the audit action.
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionConfirm     Action = "confirm"
	ActionReject      Action = "reject"
	ActionGatewayPaid Action = "gateway_paid"
	ActionMarkOverdue Action = "mark_overdue"
	ActionRepair      Action = "repair"
)

var allowed = map[Action][]string{
	ActionSubmit: {
		models.PaymentPending, models.PaymentOverdue, models.PaymentPartial, models.PaymentRejected,
	},
	ActionConfirm:     {models.PaymentPendingOwnerConfirmation},
	ActionReject:      {models.PaymentPendingOwnerConfirmation},
	ActionGatewayPaid: {
		models.PaymentPending, models.PaymentOverdue, models.PaymentPartial, models.PaymentPendingOwnerConfirmation,
	},
	ActionMarkOverdue: {models.PaymentPending, models.PaymentPartial},
	ActionRepair: {
		models.PaymentPending, models.PaymentOverdue, models.PaymentPartial, models.PaymentRejected,
	},
}

// CanApply reports whether action is legal from status.
func CanApply(action Action, status string) bool {
	for _, s := range allowed[action] {
		if s == status {
			return true
		}
	}
	return false
}

func check(action Action, p *models.RentPayment) error {
	if !CanApply(action, p.Status) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, p.Status)
	}
	return nil
}

// Submission is a tenant's claim of a manual payment.
type Submission struct {
	Method          string
	ReferenceNumber string
	Amount          int64
}

// Submit records a manual payment and waits for the owner.
func Submit(p *models.RentPayment, s Submission, now time.Time) error {
	if err := check(ActionSubmit, p); err != nil {
		return err
	}
	if s.Amount <= 0 || s.Amount > p.Balance() {
		return fmt.Errorf("%w: %d, balance %d", ErrInvalidAmount, s.Amount, p.Balance())
	}
	switch s.Method {
	case models.MethodGCash, models.MethodMaya, models.MethodBank, models.MethodCash:
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidSubmission, s.Method)
	}
	if s.Method != models.MethodCash && strings.TrimSpace(s.ReferenceNumber) == "" {
		return fmt.Errorf("%w: reference number is required for %s", ErrInvalidSubmission, s.Method)
	}

	submitted := now
	p.Status = models.PaymentPendingOwnerConfirmation
	p.PaymentMethod = s.Method
	p.ReferenceNumber = strings.TrimSpace(s.ReferenceNumber)
	p.SubmittedAmount = s.Amount
	p.SubmittedAt = &submitted
	p.RejectionReason = ""
	return nil
}

// Confirm accepts the submitted payment. received overrides the submitted
// amount when the owner got a different sum; zero means as submitted.
func Confirm(p *models.RentPayment, received int64, now time.Time) error {
	if err := check(ActionConfirm, p); err != nil {
		return err
	}
	if received == 0 {
		received = p.SubmittedAmount
	}
	if received <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, received)
	}
	credit(p, received, now)
	p.SubmittedAmount = 0
	return nil
}

// Reject keeps the rejected submission in the backup fields and reverts p
// to partial when something was paid before, otherwise to overdue when past
// grace or pending.
func Reject(p *models.RentPayment, reason string, rules Rules, now time.Time) error {
	if err := check(ActionReject, p); err != nil {
		return err
	}
	backupSubmission(p, reason)

	switch {
	case p.AmountPaid > 0:
		p.Status = models.PaymentPartial
	case rules.IsPastGrace(p, now):
		p.Status = models.PaymentOverdue
	default:
		p.Status = models.PaymentPending
	}
	return nil
}

// ApplyGateway credits a payment confirmed by the gateway. No owner
// confirmation is needed. A manual submission still waiting for the owner
// moves to the backup fields so the owner can still see what was claimed.
func ApplyGateway(p *models.RentPayment, amount int64, intentID string, now time.Time) error {
	if err := check(ActionGatewayPaid, p); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if p.Status == models.PaymentPendingOwnerConfirmation {
		backupSubmission(p, SupersededReason)
	}
	p.PaymentMethod = models.MethodPayMongo
	if intentID != "" {
		p.PaymentIntentID = intentID
		p.ReferenceNumber = intentID
	}
	credit(p, amount, now)
	return nil
}

// MarkOverdue applies the late fee once and flags pending payments overdue.
// It reports whether p changed.
func MarkOverdue(p *models.RentPayment, rules Rules, now time.Time) (bool, error) {
	if err := check(ActionMarkOverdue, p); err != nil {
		return false, err
	}
	if !rules.IsPastGrace(p, now) {
		return false, nil
	}

	changed := false
	if p.LateFee == 0 {
		if fee := rules.LateFee(p); fee > 0 {
			p.LateFee = fee
			changed = true
		}
	}
	if p.Status == models.PaymentPending {
		p.Status = models.PaymentOverdue
		changed = true
	}
	return changed, nil
}

func backupSubmission(p *models.RentPayment, reason string) {
	p.OriginalPaidDate = p.SubmittedAt
	p.OriginalPaymentMethod = p.PaymentMethod
	p.OriginalReferenceNumber = p.ReferenceNumber
	p.OriginalAmount = p.SubmittedAmount
	p.RejectionReason = strings.TrimSpace(reason)

	p.PaymentMethod = ""
	p.ReferenceNumber = ""
	p.SubmittedAmount = 0
	p.SubmittedAt = nil
}

func credit(p *models.RentPayment, amount int64, now time.Time) {
	p.AmountPaid += amount
	if p.AmountPaid >= p.TotalDue() {
		paid := now
		p.Status = models.PaymentPaid
		p.PaidDate = &paid
		return
	}
	p.Status = models.PaymentPartial
}
