package models

import "time"

type RentPayment struct {
	ID              int64      `json:"id"`
	BookingID       int64      `json:"booking_id"`
	TenantID        int64      `json:"tenant_id"`
	OwnerID         int64      `json:"owner_id"`
	Period          string     `json:"period"`
	DueDate         time.Time  `json:"due_date"`
	Amount          int64      `json:"amount"`
	LateFee         int64      `json:"late_fee"`
	AmountPaid      int64      `json:"amount_paid"`
	IsFirstPayment  bool       `json:"is_first_payment"`
	Status          string     `json:"status"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	SubmittedAmount int64      `json:"submitted_amount,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	PaidDate        *time.Time `json:"paid_date,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// Values of the last rejected submission.
	OriginalPaidDate        *time.Time `json:"original_paid_date,omitempty"`
	OriginalPaymentMethod   string     `json:"original_payment_method,omitempty"`
	OriginalReferenceNumber string     `json:"original_reference_number,omitempty"`
	OriginalAmount          int64      `json:"original_amount,omitempty"`

	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TotalDue is the rent for the period plus any late fee.
func (p *RentPayment) TotalDue() int64 {
	return p.Amount + p.LateFee
}

// Balance is what remains to be paid.
func (p *RentPayment) Balance() int64 {
	b := p.TotalDue() - p.AmountPaid
	if b < 0 {
		return 0
	}
	return b
}

// IsSettled reports whether nothing more is owed.
func (p *RentPayment) IsSettled() bool {
	return p.Status == PaymentPaid
}

// PaymentAuditEntry records one status change of a rent payment.
type PaymentAuditEntry struct {
	ID         int64     `json:"id"`
	PaymentID  int64     `json:"payment_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    int64     `json:"actor_id"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// LedgerDiscrepancy describes a stored payment whose amount differs from the rules.
type LedgerDiscrepancy struct {
	PaymentID int64  `json:"payment_id"`
	Period    string `json:"period"`
	Field     string `json:"field"`
	Stored    int64  `json:"stored"`
	Expected  int64  `json:"expected"`
	Status    string `json:"status"`
}

// OwnerSummary aggregates an owner's rent ledger.
type OwnerSummary struct {
	OwnerID            int64 `json:"owner_id"`
	Collected          int64 `json:"collected"`
	Outstanding        int64 `json:"outstanding"`
	Overdue            int64 `json:"overdue"`
	AwaitingConfirm    int   `json:"awaiting_confirmation"`
	OverdueCount       int   `json:"overdue_count"`
	ActiveBookingCount int   `json:"active_booking_count"`
}

// WebhookEvent is a processed PayMongo event id.
type WebhookEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ReceivedAt time.Time `json:"received_at"`
}
