package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hanapbahay/internal/models"
)

const paymentColumns = `id, booking_id, tenant_id, owner_id, period, due_date, amount, late_fee, amount_paid,
	is_first_payment, status, payment_method, reference_number, submitted_amount, submitted_at, paid_date,
	rejection_reason, original_paid_date, original_payment_method, original_reference_number, original_amount,
	payment_intent_id, version, created_at, updated_at`

// PaymentFilter narrows ListPayments. Zero fields are ignored.
type PaymentFilter struct {
	BookingID int64
	TenantID  int64
	OwnerID   int64
	Statuses  []string
	DueFrom   time.Time
	DueTo     time.Time
}

// PaymentTransition is one versioned write of a rent payment together with
// its audit entry. Inserts are extra rows (advance months) created in the
// same transaction; existing periods are left untouched.
type PaymentTransition struct {
	Payment     *models.RentPayment
	FromVersion int64
	Audit       *models.PaymentAuditEntry
	Inserts     []*models.RentPayment
	// WebhookEventID marks a gateway event processed atomically with the write.
	WebhookEventID   string
	WebhookEventType string
	// CreditKey names the gateway money this write credits. Each key is
	// credited once; a second write fails with ErrDuplicateCredit.
	CreditKey    string
	CreditAmount int64
}

func scanPayment(row rowScanner) (*models.RentPayment, error) {
	var p models.RentPayment
	var due string
	err := row.Scan(
		&p.ID, &p.BookingID, &p.TenantID, &p.OwnerID, &p.Period, &due, &p.Amount, &p.LateFee, &p.AmountPaid,
		&p.IsFirstPayment, &p.Status, &p.PaymentMethod, &p.ReferenceNumber, &p.SubmittedAmount, &p.SubmittedAt, &p.PaidDate,
		&p.RejectionReason, &p.OriginalPaidDate, &p.OriginalPaymentMethod, &p.OriginalReferenceNumber, &p.OriginalAmount,
		&p.PaymentIntentID, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.DueDate, err = models.ParseDate(due)
	if err != nil {
		return nil, fmt.Errorf("failed to parse due date %s: %w", due, err)
	}
	return &p, nil
}

func insertPayment(ctx context.Context, q queryer, p *models.RentPayment, now time.Time) error {
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	query := `INSERT INTO rent_payments (
				booking_id, tenant_id, owner_id, period, due_date, amount, late_fee, amount_paid,
				is_first_payment, status, payment_method, reference_number, paid_date,
				version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := q.ExecContext(ctx, query,
		p.BookingID,
		p.TenantID,
		p.OwnerID,
		p.Period,
		p.DueDate.Format(models.DateLayout),
		p.Amount,
		p.LateFee,
		p.AmountPaid,
		p.IsFirstPayment,
		p.Status,
		p.PaymentMethod,
		p.ReferenceNumber,
		p.PaidDate,
		1,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("booking %d period %s: %w", p.BookingID, p.Period, ErrDuplicatePeriod)
		}
		return fmt.Errorf("failed to insert rent payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (db *DB) GetPayment(ctx context.Context, id int64) (*models.RentPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM rent_payments WHERE id = ?`
	p, err := scanPayment(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "rent payment", id)
	}
	return p, nil
}

func (db *DB) GetPaymentByIntent(ctx context.Context, intentID string) (*models.RentPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM rent_payments WHERE payment_intent_id = ? AND payment_intent_id != ''`
	p, err := scanPayment(db.QueryRowContext(ctx, query, intentID))
	if err != nil {
		return nil, notFound(err, "rent payment for intent", intentID)
	}
	return p, nil
}

// ListPayments returns payments ordered by due date.
func (db *DB) ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.RentPayment, error) {
	var where []string
	var args []interface{}
	if filter.BookingID != 0 {
		where = append(where, "booking_id = ?")
		args = append(args, filter.BookingID)
	}
	if filter.TenantID != 0 {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if !filter.DueFrom.IsZero() {
		where = append(where, "due_date >= ?")
		args = append(args, filter.DueFrom.Format(models.DateLayout))
	}
	if !filter.DueTo.IsZero() {
		where = append(where, "due_date <= ?")
		args = append(args, filter.DueTo.Format(models.DateLayout))
	}

	query := `SELECT ` + paymentColumns + ` FROM rent_payments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rent payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.RentPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rent payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func updatePayment(ctx context.Context, tx *sql.Tx, p *models.RentPayment, fromVersion int64, now time.Time) error {
	query := `UPDATE rent_payments SET
				amount = ?, late_fee = ?, amount_paid = ?, status = ?, payment_method = ?,
				reference_number = ?, submitted_amount = ?, submitted_at = ?, paid_date = ?,
				rejection_reason = ?, original_paid_date = ?, original_payment_method = ?,
				original_reference_number = ?, original_amount = ?, payment_intent_id = ?,
				version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query,
		p.Amount,
		p.LateFee,
		p.AmountPaid,
		p.Status,
		p.PaymentMethod,
		p.ReferenceNumber,
		p.SubmittedAmount,
		p.SubmittedAt,
		p.PaidDate,
		p.RejectionReason,
		p.OriginalPaidDate,
		p.OriginalPaymentMethod,
		p.OriginalReferenceNumber,
		p.OriginalAmount,
		p.PaymentIntentID,
		now,
		p.ID,
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update rent payment: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return fmt.Errorf("rent payment %d: %w", p.ID, err)
	}
	p.Version = fromVersion + 1
	p.UpdatedAt = now
	return nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, entry *models.PaymentAuditEntry, now time.Time) error {
	query := `INSERT INTO payment_audit (payment_id, from_status, to_status, actor_id, action, detail, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		entry.PaymentID, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.Action, entry.Detail, now)
	if err != nil {
		return fmt.Errorf("failed to insert payment audit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

func insertWebhookEvent(ctx context.Context, q queryer, id, eventType string, now time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO webhook_events (id, type, received_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, eventType, now)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// ApplyPaymentTransition writes the payment, its audit entry and extra rows
// in one transaction. A stale version rolls back everything with
// ErrConcurrentModification; an already processed webhook event id rolls
// back with ErrDuplicateEvent and an already credited gateway payment with
// ErrDuplicateCredit.
func (db *DB) ApplyPaymentTransition(ctx context.Context, t PaymentTransition) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return applyTransition(ctx, tx, t, time.Now())
	})
}

// ApplyLedgerRepair rewrites payments and inserts missing periods in one
// transaction. Unlike advance rows, a missing period that now exists fails
// the repair with ErrDuplicatePeriod and nothing is written.
func (db *DB) ApplyLedgerRepair(ctx context.Context, transitions []PaymentTransition, missing []*models.RentPayment, actorID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		for _, t := range transitions {
			if err := applyTransition(ctx, tx, t, now); err != nil {
				return err
			}
		}
		for _, p := range missing {
			if err := insertPayment(ctx, tx, p, now); err != nil {
				return err
			}
			if err := insertAudit(ctx, tx, &models.PaymentAuditEntry{
				PaymentID: p.ID,
				ToStatus:  p.Status,
				ActorID:   actorID,
				Action:    "create",
				Detail:    "missing period restored by repair",
			}, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyTransition(ctx context.Context, tx *sql.Tx, t PaymentTransition, now time.Time) error {
	if t.WebhookEventID != "" {
		fresh, err := insertWebhookEvent(ctx, tx, t.WebhookEventID, t.WebhookEventType, now)
		if err != nil {
			return err
		}
		if !fresh {
			return ErrDuplicateEvent
		}
	}
	if t.CreditKey != "" {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO gateway_credits (credit_key, payment_id, event_id, amount, created_at)
			 VALUES (?, ?, ?, ?, ?) ON CONFLICT(credit_key) DO NOTHING`,
			t.CreditKey, t.Payment.ID, t.WebhookEventID, t.CreditAmount, now)
		if err != nil {
			return fmt.Errorf("failed to record gateway credit: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		} else if rows == 0 {
			return fmt.Errorf("%s: %w", t.CreditKey, ErrDuplicateCredit)
		}
	}
	if err := updatePayment(ctx, tx, t.Payment, t.FromVersion, now); err != nil {
		return err
	}
	if t.Audit != nil {
		t.Audit.PaymentID = t.Payment.ID
		if err := insertAudit(ctx, tx, t.Audit, now); err != nil {
			return err
		}
	}
	for _, extra := range t.Inserts {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rent_payments WHERE booking_id = ? AND period = ?`,
			extra.BookingID, extra.Period).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check period: %w", err)
		}
		if exists > 0 {
			continue
		}
		if err := insertPayment(ctx, tx, extra, now); err != nil {
			return err
		}
		if err := insertAudit(ctx, tx, &models.PaymentAuditEntry{
			PaymentID:  extra.ID,
			FromStatus: "",
			ToStatus:   extra.Status,
			ActorID:    auditActor(t.Audit),
			Action:     "create",
			Detail:     "covered by advance payment",
		}, now); err != nil {
			return err
		}
	}
	return nil
}

func auditActor(entry *models.PaymentAuditEntry) int64 {
	if entry == nil {
		return 0
	}
	return entry.ActorID
}

// GatewayCredited reports whether the gateway money named by key was
// already credited to a payment.
func (db *DB) GatewayCredited(ctx context.Context, key string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gateway_credits WHERE credit_key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check gateway credit: %w", err)
	}
	return n > 0, nil
}

// RecordWebhookEvent stores a processed gateway event id. It returns false
// when the id was already recorded.
func (db *DB) RecordWebhookEvent(ctx context.Context, id, eventType string) (bool, error) {
	return insertWebhookEvent(ctx, db, id, eventType, time.Now())
}

func (db *DB) ListPaymentAudit(ctx context.Context, paymentID int64) ([]*models.PaymentAuditEntry, error) {
	query := `SELECT id, payment_id, from_status, to_status, actor_id, action, detail, created_at
              FROM payment_audit WHERE payment_id = ? ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audit: %w", err)
	}
	defer rows.Close()

	var entries []*models.PaymentAuditEntry
	for rows.Next() {
		e := &models.PaymentAuditEntry{}
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.FromStatus, &e.ToStatus, &e.ActorID,
			&e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment audit: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
