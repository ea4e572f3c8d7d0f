// Package notify turns booking and payment events into conversation system
// messages and Telegram messages.
package notify

import (
	"context"
	"time"

	"hanapbahay/internal/events"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
)

const deliveryTimeout = 10 * time.Second

// Directory resolves the users and bookings an event refers to.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
}

// SystemPoster writes system messages into a tenant/owner conversation.
type SystemPoster interface {
	Notify(ctx context.Context, listingID, tenantID, ownerID int64, body string) error
}

type audience int

const (
	toTenant audience = 1 << iota
	toOwner
	toBoth = toTenant | toOwner
)

var bookingAudience = map[string]audience{
	events.EventBookingRequested: toOwner,
	events.EventBookingApproved:  toTenant,
	events.EventBookingRejected:  toTenant,
	events.EventBookingCancelled: toOwner,
	events.EventBookingCompleted: toBoth,
}

var paymentAudience = map[string]audience{
	events.EventPaymentsCreated:  toTenant,
	events.EventPaymentSubmitted: toOwner,
	events.EventPaymentConfirmed: toTenant,
	events.EventPaymentRejected:  toTenant,
	events.EventPaymentGateway:   toBoth,
	events.EventPaymentFailed:    toTenant,
	events.EventPaymentUnapplied: toBoth,
	events.EventPaymentOverdue:   toBoth,
	events.EventPaymentReminder:  toTenant,
	events.EventPaymentRepaired:  toBoth,
}

type Notifier struct {
	directory Directory
	poster    SystemPoster
	telegram  *TelegramChannel
	logger    *zerolog.Logger
}

// NewNotifier builds a notifier. poster and telegram may be nil to disable
// a channel.
func NewNotifier(directory Directory, poster SystemPoster, telegram *TelegramChannel, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		directory: directory,
		poster:    poster,
		telegram:  telegram,
		logger:    logger,
	}
}

// Subscribe registers the notifier for every booking and payment event.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	for eventType := range bookingAudience {
		bus.Subscribe(eventType, n.handleBooking)
	}
	for eventType := range paymentAudience {
		bus.Subscribe(eventType, n.handlePayment)
	}
}

func (n *Notifier) handleBooking(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode booking event")
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	n.deliver(ctx, p.ListingID, p.TenantID, p.OwnerID, bookingAudience[event.Type], bookingText(event.Type, p))
	return nil
}

func (n *Notifier) handlePayment(event *events.Event) error {
	var p events.PaymentEventPayload
	if err := event.Decode(&p); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode payment event")
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	booking, err := n.directory.GetBooking(ctx, p.BookingID)
	if err != nil {
		n.logger.Error().Err(err).Int64("booking_id", p.BookingID).Msg("notify: load booking error")
		return err
	}
	n.deliver(ctx, booking.ListingID, p.TenantID, p.OwnerID, paymentAudience[event.Type], paymentText(event.Type, p))
	return nil
}

// deliver posts one system message visible to both sides and a Telegram
// message to each addressed user with a linked chat.
func (n *Notifier) deliver(ctx context.Context, listingID, tenantID, ownerID int64, to audience, text string) {
	if text == "" {
		return
	}
	if n.poster != nil {
		if err := n.poster.Notify(ctx, listingID, tenantID, ownerID, text); err != nil {
			n.logger.Error().Err(err).Int64("listing_id", listingID).Msg("notify: system message error")
		}
	}
	if n.telegram == nil {
		return
	}

	var recipients []int64
	if to&toTenant != 0 {
		recipients = append(recipients, tenantID)
	}
	if to&toOwner != 0 {
		recipients = append(recipients, ownerID)
	}
	for _, userID := range recipients {
		user, err := n.directory.GetUserByID(ctx, userID)
		if err != nil {
			n.logger.Warn().Err(err).Int64("user_id", userID).Msg("notify: load user error")
			continue
		}
		if user.TelegramChatID == 0 {
			continue
		}
		if _, err := n.telegram.SendMessage(user.TelegramChatID, text); err != nil {
			n.logger.Error().Err(err).Int64("telegram_chat_id", user.TelegramChatID).Msg("notify: telegram send error")
		}
	}
}
