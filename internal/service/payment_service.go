package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/domain"
	"hanapbahay/internal/events"
	"hanapbahay/internal/models"
	"hanapbahay/internal/paymongo"
	"hanapbahay/internal/payments"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Webhook outcomes, also used as metric labels.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookFailed    = "failed"
)

const maxTransitionAttempts = 3

// CheckoutConfig tunes the PayMongo checkout flow.
type CheckoutConfig struct {
	Currency       string
	PaymentMethods []string
	SessionTTL     time.Duration
	Attempts       int
	Window         time.Duration
}

type PaymentService struct {
	repo         domain.PaymentRepository
	rules        payments.Rules
	gateway      domain.PaymentGateway
	checkouts    domain.CheckoutStore
	checkout     CheckoutConfig
	eventBus     domain.EventPublisher
	ledgerWorker domain.SyncWorker
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewPaymentService(
	repo domain.PaymentRepository,
	rules payments.Rules,
	gateway domain.PaymentGateway,
	checkouts domain.CheckoutStore,
	checkout CheckoutConfig,
	eventBus domain.EventPublisher,
	ledgerWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *PaymentService {
	if checkout.Currency == "" {
		checkout.Currency = "PHP"
	}
	if checkout.SessionTTL <= 0 {
		checkout.SessionTTL = time.Duration(models.DefaultCheckoutTTL) * time.Second
	}
	if checkout.Attempts <= 0 {
		checkout.Attempts = models.RateLimitAttempts
	}
	if checkout.Window <= 0 {
		checkout.Window = time.Duration(models.RateLimitWindow) * time.Second
	}
	return &PaymentService{
		repo:         repo,
		rules:        rules,
		gateway:      gateway,
		checkouts:    checkouts,
		checkout:     checkout,
		eventBus:     eventBus,
		ledgerWorker: ledgerWorker,
		logger:       logger,
		now:          time.Now,
	}
}

func canSee(actor Actor, tenantID, ownerID int64) bool {
	return actor.Owns(ownerID) || (actor.UserID != 0 && actor.UserID == tenantID)
}

func (s *PaymentService) visibleBooking(ctx context.Context, actor Actor, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, booking.TenantID, booking.OwnerID) {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *PaymentService) Get(ctx context.Context, actor Actor, paymentID int64) (*models.RentPayment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, p.TenantID, p.OwnerID) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *PaymentService) ListForBooking(ctx context.Context, actor Actor, bookingID int64) ([]*models.RentPayment, error) {
	if _, err := s.visibleBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, database.PaymentFilter{BookingID: bookingID})
}

// ListForUser lists the tenant's or owner's payments, optionally by status.
func (s *PaymentService) ListForUser(ctx context.Context, actor Actor, statuses []string) ([]*models.RentPayment, error) {
	filter := database.PaymentFilter{Statuses: statuses}
	switch actor.Role {
	case models.RoleTenant:
		filter.TenantID = actor.UserID
	case models.RoleOwner:
		filter.OwnerID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}
	return s.repo.ListPayments(ctx, filter)
}

// NextDue returns the earliest unsettled payment of a booking.
func (s *PaymentService) NextDue(ctx context.Context, actor Actor, bookingID int64) (*models.RentPayment, error) {
	if _, err := s.visibleBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListPayments(ctx, database.PaymentFilter{
		BookingID: bookingID,
		Statuses: []string{
			models.PaymentPending, models.PaymentOverdue, models.PaymentPartial,
			models.PaymentPendingOwnerConfirmation, models.PaymentRejected,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("booking %d has no payment due: %w", bookingID, database.ErrNotFound)
	}
	return list[0], nil
}

func (s *PaymentService) Audit(ctx context.Context, actor Actor, paymentID int64) ([]*models.PaymentAuditEntry, error) {
	if _, err := s.Get(ctx, actor, paymentID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentAudit(ctx, paymentID)
}

// Submit records a tenant's manual payment for owner confirmation.
func (s *PaymentService) Submit(ctx context.Context, actor Actor, paymentID, version int64, sub payments.Submission) (*models.RentPayment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != actor.UserID {
		return nil, ErrForbidden
	}
	if err := checkVersion(p, version); err != nil {
		return nil, err
	}

	next := *p
	if err := payments.Submit(&next, sub, s.now()); err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("%s %s amount %d", next.PaymentMethod, next.ReferenceNumber, next.SubmittedAmount)
	if err := s.apply(ctx, p, &next, actor.UserID, payments.ActionSubmit, detail, nil); err != nil {
		return nil, err
	}
	s.publishPayment(events.EventPaymentSubmitted, p.Status, &next, actor.UserID, "")
	return &next, nil
}

// Confirm accepts a submitted payment. received is what the owner actually
// got; zero means the submitted amount.
func (s *PaymentService) Confirm(ctx context.Context, actor Actor, paymentID, version, received int64) (*models.RentPayment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(p.OwnerID) {
		return nil, ErrForbidden
	}
	if err := checkVersion(p, version); err != nil {
		return nil, err
	}

	now := s.now()
	next := *p
	if err := payments.Confirm(&next, received, now); err != nil {
		return nil, err
	}
	inserts, err := s.advanceRows(ctx, &next, now)
	if err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("received %d, paid %d of %d", next.AmountPaid-p.AmountPaid, next.AmountPaid, next.TotalDue())
	if err := s.apply(ctx, p, &next, actor.UserID, payments.ActionConfirm, detail, inserts); err != nil {
		return nil, err
	}
	s.publishPayment(events.EventPaymentConfirmed, p.Status, &next, actor.UserID, "")
	for _, row := range inserts {
		s.enqueueSync(ctx, row, "upsert")
	}
	return &next, nil
}

func (s *PaymentService) Reject(ctx context.Context, actor Actor, paymentID, version int64, reason string) (*models.RentPayment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(p.OwnerID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	if err := checkVersion(p, version); err != nil {
		return nil, err
	}

	next := *p
	if err := payments.Reject(&next, reason, s.rules, s.now()); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, p, &next, actor.UserID, payments.ActionReject, next.RejectionReason, nil); err != nil {
		return nil, err
	}
	s.publishPayment(events.EventPaymentRejected, p.Status, &next, actor.UserID, next.RejectionReason)
	return &next, nil
}

// StartCheckout creates (or reuses) a PayMongo payment intent for the
// remaining balance of a payment.
func (s *PaymentService) StartCheckout(ctx context.Context, actor Actor, paymentID int64) (*models.CheckoutSession, error) {
	if s.gateway == nil || s.checkouts == nil {
		return nil, ErrGatewayDisabled
	}
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != actor.UserID {
		return nil, ErrForbidden
	}
	// Gateway funds can land on a submission awaiting the owner, but a new
	// checkout cannot start from one.
	if p.Status == models.PaymentPendingOwnerConfirmation || !payments.CanApply(payments.ActionGatewayPaid, p.Status) {
		return nil, fmt.Errorf("%w: checkout from %s", ErrInvalidTransition, p.Status)
	}

	allowed, err := s.checkouts.CheckRateLimit(ctx, actor.UserID, s.checkout.Attempts, s.checkout.Window)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", actor.UserID).Msg("checkout rate limit check failed")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	amount := p.Balance()
	existing, err := s.checkouts.GetCheckout(ctx, paymentID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("payment_id", paymentID).Msg("checkout lookup failed")
	}
	if existing != nil && existing.Amount == amount && existing.TenantID == actor.UserID {
		return existing, nil
	}

	idempotencyKey := uuid.New().String()
	intent, err := s.gateway.CreatePaymentIntent(ctx, paymongo.PaymentIntentRequest{
		Amount:               amount,
		Currency:             s.checkout.Currency,
		PaymentMethodAllowed: s.checkout.PaymentMethods,
		Description:          fmt.Sprintf("Rent %s (booking %d)", p.Period, p.BookingID),
		Metadata: map[string]string{
			"payment_id": strconv.FormatInt(p.ID, 10),
			"booking_id": strconv.FormatInt(p.BookingID, 10),
			"period":     p.Period,
		},
	}, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	session := &models.CheckoutSession{
		PaymentID:       p.ID,
		TenantID:        p.TenantID,
		PaymentIntentID: intent.ID,
		ClientKey:       intent.ClientKey,
		Amount:          amount,
		IdempotencyKey:  idempotencyKey,
		Metadata:        models.Metadata{"period": p.Period, "booking_id": strconv.FormatInt(p.BookingID, 10)},
		CreatedAt:       s.now(),
	}
	if err := s.checkouts.SaveCheckout(ctx, session, s.checkout.SessionTTL); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}
	s.logger.Info().
		Int64("payment_id", p.ID).
		Str("intent_id", intent.ID).
		Int64("amount", amount).
		Msg("Checkout started")
	return session, nil
}

// HandleWebhook applies a verified PayMongo event. Replays, a second event
// for money already credited and events that cannot be matched to a payment
// are acknowledged without changes.
func (s *PaymentService) HandleWebhook(ctx context.Context, evt *paymongo.Event) (string, error) {
	log := s.logger.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Str("intent_id", evt.PaymentIntentID).Logger()

	if !evt.Succeeded() {
		fresh, err := s.repo.RecordWebhookEvent(ctx, evt.ID, evt.Type)
		if err != nil {
			return WebhookFailed, err
		}
		if !fresh {
			return WebhookDuplicate, nil
		}
		if evt.Type == paymongo.EventPaymentFailed {
			if p, _ := s.resolveWebhookPayment(ctx, evt); p != nil {
				s.publishPayment(events.EventPaymentFailed, p.Status, p, 0, evt.FailedMessage)
			}
			return WebhookApplied, nil
		}
		log.Debug().Msg("Ignoring webhook event")
		return WebhookIgnored, nil
	}

	// payment.paid and payment_intent.succeeded describe the same money.
	creditKey := evt.CreditKey()
	credited, err := s.repo.GatewayCredited(ctx, creditKey)
	if err != nil {
		return WebhookFailed, err
	}
	if credited {
		return s.acknowledgeCredited(ctx, evt, log)
	}

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		p, err := s.resolveWebhookPayment(ctx, evt)
		if err != nil {
			return WebhookFailed, err
		}
		if p == nil {
			log.Warn().Msg("Webhook does not match a rent payment")
			return s.recordOnly(ctx, evt, WebhookIgnored)
		}
		if !payments.CanApply(payments.ActionGatewayPaid, p.Status) {
			outcome, err := s.recordOnly(ctx, evt, WebhookIgnored)
			if outcome == WebhookIgnored {
				log.Error().Int64("payment_id", p.ID).Str("status", p.Status).Int64("amount", evt.Amount).
					Msg("Gateway funds arrived for a payment that cannot take them")
				s.publishUnapplied(p, evt)
			}
			return outcome, err
		}

		now := s.now()
		next := *p
		if err := payments.ApplyGateway(&next, evt.Amount, evt.PaymentIntentID, now); err != nil {
			return WebhookFailed, err
		}
		inserts, err := s.advanceRows(ctx, &next, now)
		if err != nil {
			return WebhookFailed, err
		}
		detail := fmt.Sprintf("%s %d via %s", evt.PaymentIntentID, evt.Amount, evt.SourceType)
		superseded := p.Status == models.PaymentPendingOwnerConfirmation
		if superseded {
			detail += fmt.Sprintf("; %s %s amount %d %s", p.PaymentMethod, p.ReferenceNumber, p.SubmittedAmount, payments.SupersededReason)
		}
		t := s.transition(p, &next, 0, payments.ActionGatewayPaid, detail, inserts)
		t.WebhookEventID = evt.ID
		t.WebhookEventType = evt.Type
		t.CreditKey = creditKey
		t.CreditAmount = evt.Amount
		err = s.commit(ctx, t)
		switch {
		case errors.Is(err, database.ErrDuplicateEvent):
			return WebhookDuplicate, nil
		case errors.Is(err, database.ErrDuplicateCredit):
			return s.acknowledgeCredited(ctx, evt, log)
		case errors.Is(err, database.ErrConcurrentModification):
			log.Warn().Int("attempt", attempt).Msg("Payment changed while applying webhook, retrying")
			continue
		case err != nil:
			return WebhookFailed, err
		}

		if s.checkouts != nil {
			if err := s.checkouts.ClearCheckout(ctx, p.ID); err != nil {
				log.Warn().Err(err).Msg("failed to clear checkout session")
			}
		}
		reason := ""
		if superseded {
			reason = payments.SupersededReason
		}
		s.publishPayment(events.EventPaymentGateway, p.Status, &next, 0, reason)
		for _, row := range inserts {
			s.enqueueSync(ctx, row, "upsert")
		}
		log.Info().Int64("payment_id", next.ID).Str("status", next.Status).Bool("superseded", superseded).Msg("Gateway payment applied")
		return WebhookApplied, nil
	}
	return WebhookFailed, database.ErrConcurrentModification
}

// acknowledgeCredited records an event whose money another event already
// credited.
func (s *PaymentService) acknowledgeCredited(ctx context.Context, evt *paymongo.Event, log zerolog.Logger) (string, error) {
	log.Info().Str("credit_key", evt.CreditKey()).Msg("Gateway payment already credited")
	return s.recordOnly(ctx, evt, WebhookDuplicate)
}

// recordOnly stores the event id without touching any payment. A replay
// answers duplicate.
func (s *PaymentService) recordOnly(ctx context.Context, evt *paymongo.Event, outcome string) (string, error) {
	fresh, err := s.repo.RecordWebhookEvent(ctx, evt.ID, evt.Type)
	if err != nil {
		return WebhookFailed, err
	}
	if !fresh {
		return WebhookDuplicate, nil
	}
	return outcome, nil
}

func (s *PaymentService) publishUnapplied(p *models.RentPayment, evt *paymongo.Event) {
	if s.eventBus == nil {
		return
	}
	payload := paymentPayload(p.Status, p, 0, fmt.Sprintf("%s via %s", evt.CreditKey(), evt.SourceType))
	payload.GatewayAmount = evt.Amount
	if err := s.eventBus.PublishJSON(events.EventPaymentUnapplied, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", events.EventPaymentUnapplied).Int64("payment_id", p.ID).Msg("publish event error")
	}
}

// resolveWebhookPayment finds the rent payment an event refers to through
// the checkout session, the intent metadata or the stored intent id.
func (s *PaymentService) resolveWebhookPayment(ctx context.Context, evt *paymongo.Event) (*models.RentPayment, error) {
	var paymentID int64
	if evt.PaymentIntentID != "" && s.checkouts != nil {
		session, err := s.checkouts.GetCheckoutByIntent(ctx, evt.PaymentIntentID)
		if err != nil {
			s.logger.Warn().Err(err).Str("intent_id", evt.PaymentIntentID).Msg("checkout lookup failed")
		} else if session != nil {
			paymentID = session.PaymentID
		}
	}
	if paymentID == 0 && evt.Metadata != nil {
		paymentID, _ = strconv.ParseInt(evt.Metadata["payment_id"], 10, 64)
	}

	if paymentID != 0 {
		p, err := s.repo.GetPayment(ctx, paymentID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return p, err
	}
	if evt.PaymentIntentID == "" {
		return nil, nil
	}
	p, err := s.repo.GetPaymentByIntent(ctx, evt.PaymentIntentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// SweepOverdue flags payments past grace and applies late fees. It returns
// the number of payments changed.
func (s *PaymentService) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()
	list, err := s.repo.ListPayments(ctx, database.PaymentFilter{
		Statuses: []string{models.PaymentPending, models.PaymentPartial},
		DueTo:    models.DateOf(now).AddDate(0, 0, -s.rules.GraceDays-1),
	})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, p := range list {
		next := *p
		ok, err := payments.MarkOverdue(&next, s.rules, now)
		if err != nil || !ok {
			continue
		}
		detail := fmt.Sprintf("late fee %d", next.LateFee)
		if err := s.apply(ctx, p, &next, 0, payments.ActionMarkOverdue, detail, nil); err != nil {
			s.logger.Warn().Err(err).Int64("payment_id", p.ID).Msg("failed to mark payment overdue")
			continue
		}
		s.publishPayment(events.EventPaymentOverdue, p.Status, &next, 0, "")
		changed++
	}
	if changed > 0 {
		s.logger.Info().Int("count", changed).Msg("Overdue sweep applied")
	}
	return changed, nil
}

// SendReminders publishes a reminder for every open payment due in exactly
// daysAhead days.
func (s *PaymentService) SendReminders(ctx context.Context, daysAhead int) (int, error) {
	day := models.DateOf(s.now()).AddDate(0, 0, daysAhead)
	list, err := s.repo.ListPayments(ctx, database.PaymentFilter{
		Statuses: []string{models.PaymentPending, models.PaymentPartial, models.PaymentRejected},
		DueFrom:  day,
		DueTo:    day,
	})
	if err != nil {
		return 0, err
	}
	for _, p := range list {
		s.publishPayment(events.EventPaymentReminder, p.Status, p, 0, "")
	}
	return len(list), nil
}

// VerifyLedger reports stored amounts that differ from the rent rules.
func (s *PaymentService) VerifyLedger(ctx context.Context, actor Actor, bookingID int64) ([]models.LedgerDiscrepancy, error) {
	booking, err := s.visibleBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListPayments(ctx, database.PaymentFilter{BookingID: bookingID})
	if err != nil {
		return nil, err
	}
	return s.rules.VerifyLedger(booking, list), nil
}

// RepairLedger rewrites unsettled payments to the expected amounts and
// creates missing rows. Every change is audited.
func (s *PaymentService) RepairLedger(ctx context.Context, actor Actor, bookingID int64) ([]*models.RentPayment, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(booking.OwnerID) {
		return nil, ErrForbidden
	}
	if booking.Status != models.StatusApproved && booking.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, bookingID, booking.Status)
	}
	list, err := s.repo.ListPayments(ctx, database.PaymentFilter{BookingID: bookingID})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.RentPayment, len(list))
	for _, p := range list {
		byID[p.ID] = p
	}
	plan := s.rules.RepairPlan(booking, list)
	transitions := make([]database.PaymentTransition, 0, len(plan))
	for _, fixed := range plan {
		old := byID[fixed.ID]
		transitions = append(transitions, database.PaymentTransition{
			Payment:     fixed,
			FromVersion: old.Version,
			Audit: &models.PaymentAuditEntry{
				FromStatus: old.Status,
				ToStatus:   fixed.Status,
				ActorID:    actor.UserID,
				Action:     string(payments.ActionRepair),
				Detail:     fmt.Sprintf("amount %d -> %d, late fee %d -> %d", old.Amount, fixed.Amount, old.LateFee, fixed.LateFee),
			},
		})
	}
	missing := s.missingRows(booking, list)
	if len(transitions) > 0 || len(missing) > 0 {
		if err := s.repo.ApplyLedgerRepair(ctx, transitions, missing, actor.UserID); err != nil {
			return nil, err
		}
	}
	for _, p := range plan {
		s.enqueueSync(ctx, p, "upsert")
	}
	for _, p := range missing {
		s.enqueueSync(ctx, p, "upsert")
	}

	changed := append(plan, missing...)
	for _, p := range changed {
		from := ""
		if old, ok := byID[p.ID]; ok {
			from = old.Status
		}
		s.publishPayment(events.EventPaymentRepaired, from, p, actor.UserID, "")
	}
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int("rewritten", len(plan)).
		Int("created", len(missing)).
		Msg("Ledger repaired")
	return changed, nil
}

// missingRows returns schedule rows (and advance rows once the first
// payment is paid) whose period has no stored payment.
func (s *PaymentService) missingRows(booking *models.Booking, list []*models.RentPayment) []*models.RentPayment {
	have := make(map[string]bool, len(list))
	firstPaid := false
	var paidAt time.Time
	for _, p := range list {
		have[p.Period] = true
		if p.IsFirstPayment && p.Status == models.PaymentPaid {
			firstPaid = true
			if p.PaidDate != nil {
				paidAt = *p.PaidDate
			}
		}
	}

	expected := s.rules.Schedule(booking)
	if firstPaid {
		expected = append(expected, s.rules.AdvancePayments(booking, paidAt)...)
	}
	var missing []*models.RentPayment
	for _, p := range expected {
		if !have[p.Period] {
			missing = append(missing, p)
		}
	}
	return missing
}

// OwnerSummary aggregates collected, outstanding and overdue rent.
func (s *PaymentService) OwnerSummary(ctx context.Context, actor Actor, ownerID int64) (*models.OwnerSummary, error) {
	if ownerID == 0 {
		ownerID = actor.UserID
	}
	if !actor.Owns(ownerID) {
		return nil, ErrForbidden
	}
	list, err := s.repo.ListPayments(ctx, database.PaymentFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListBookings(ctx, database.BookingFilter{OwnerID: ownerID, Statuses: []string{models.StatusApproved}})
	if err != nil {
		return nil, err
	}

	summary := &models.OwnerSummary{OwnerID: ownerID, ActiveBookingCount: len(bookings)}
	for _, p := range list {
		// Advance rows are funded by the first payment.
		if p.PaymentMethod != models.MethodAdvance {
			summary.Collected += p.AmountPaid
		}
		if p.Status == models.PaymentPaid {
			continue
		}
		summary.Outstanding += p.Balance()
		switch p.Status {
		case models.PaymentOverdue:
			summary.Overdue += p.Balance()
			summary.OverdueCount++
		case models.PaymentPendingOwnerConfirmation:
			summary.AwaitingConfirm++
		}
	}
	return summary, nil
}

// advanceRows returns the prepaid rows to create when next settles the
// first payment.
func (s *PaymentService) advanceRows(ctx context.Context, next *models.RentPayment, now time.Time) ([]*models.RentPayment, error) {
	if !next.IsFirstPayment || next.Status != models.PaymentPaid {
		return nil, nil
	}
	booking, err := s.repo.GetBooking(ctx, next.BookingID)
	if err != nil {
		return nil, err
	}
	return s.rules.AdvancePayments(booking, now), nil
}

func (s *PaymentService) apply(
	ctx context.Context,
	prev, next *models.RentPayment,
	actorID int64,
	action payments.Action,
	detail string,
	inserts []*models.RentPayment,
) error {
	return s.commit(ctx, s.transition(prev, next, actorID, action, detail, inserts))
}

func (s *PaymentService) transition(
	prev, next *models.RentPayment,
	actorID int64,
	action payments.Action,
	detail string,
	inserts []*models.RentPayment,
) database.PaymentTransition {
	return database.PaymentTransition{
		Payment:     next,
		FromVersion: prev.Version,
		Audit: &models.PaymentAuditEntry{
			FromStatus: prev.Status,
			ToStatus:   next.Status,
			ActorID:    actorID,
			Action:     string(action),
			Detail:     detail,
		},
		Inserts: inserts,
	}
}

// commit writes t and queues the payment for the ledger sheet.
func (s *PaymentService) commit(ctx context.Context, t database.PaymentTransition) error {
	if err := s.repo.ApplyPaymentTransition(ctx, t); err != nil {
		return err
	}
	s.enqueueSync(ctx, t.Payment, "upsert")
	return nil
}

func checkVersion(p *models.RentPayment, version int64) error {
	if version != 0 && version != p.Version {
		return fmt.Errorf("rent payment %d is at version %d, got %d: %w", p.ID, p.Version, version, database.ErrConcurrentModification)
	}
	return nil
}

func (s *PaymentService) publishPayment(eventType, fromStatus string, p *models.RentPayment, changedByID int64, reason string) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, paymentPayload(fromStatus, p, changedByID, reason)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("payment_id", p.ID).Msg("publish event error")
	}
}

func paymentPayload(fromStatus string, p *models.RentPayment, changedByID int64, reason string) events.PaymentEventPayload {
	return events.PaymentEventPayload{
		PaymentID:   p.ID,
		BookingID:   p.BookingID,
		TenantID:    p.TenantID,
		OwnerID:     p.OwnerID,
		Period:      p.Period,
		FromStatus:  fromStatus,
		Status:      p.Status,
		Amount:      p.Amount,
		LateFee:     p.LateFee,
		AmountPaid:  p.AmountPaid,
		Method:      p.PaymentMethod,
		Reason:      reason,
		ChangedByID: changedByID,
	}
}

func (s *PaymentService) enqueueSync(ctx context.Context, payment *models.RentPayment, taskType string) {
	if s.ledgerWorker == nil {
		return
	}
	if err := s.ledgerWorker.EnqueueTask(ctx, taskType, payment.ID, payment); err != nil {
		s.logger.Error().Err(err).Int64("payment_id", payment.ID).Str("task", taskType).Msg("ledger enqueue error")
	}
}
