package domain

import (
	"context"
	"time"

	"hanapbahay/internal/database"
	"hanapbahay/internal/models"
	"hanapbahay/internal/paymongo"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type ListingRepository interface {
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	UpdateListing(ctx context.Context, listing *models.Listing) error
	UpdateListingStatus(ctx context.Context, id, fromVersion int64, status string) error
	ListListings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, error)
	DeleteListing(ctx context.Context, id int64) error
	CountActiveBookings(ctx context.Context, listingID int64) (int, error)
}

type BookingRepository interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter database.BookingFilter) ([]*models.Booking, error)
	HasActiveBooking(ctx context.Context, listingID, tenantID int64) (bool, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, fromStatus, status, note string) error
	ApproveBookingTx(ctx context.Context, bookingID, fromVersion int64, schedule []*models.RentPayment) error
	CompleteBookingTx(ctx context.Context, bookingID, fromVersion int64) error
}

type PaymentRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter database.BookingFilter) ([]*models.Booking, error)
	GetPayment(ctx context.Context, id int64) (*models.RentPayment, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (*models.RentPayment, error)
	ListPayments(ctx context.Context, filter database.PaymentFilter) ([]*models.RentPayment, error)
	ApplyPaymentTransition(ctx context.Context, t database.PaymentTransition) error
	ApplyLedgerRepair(ctx context.Context, transitions []database.PaymentTransition, missing []*models.RentPayment, actorID int64) error
	GatewayCredited(ctx context.Context, key string) (bool, error)
	ListPaymentAudit(ctx context.Context, paymentID int64) ([]*models.PaymentAuditEntry, error)
	RecordWebhookEvent(ctx context.Context, id, eventType string) (bool, error)
}

type ConversationRepository interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	GetOrCreateConversation(ctx context.Context, listingID, tenantID, ownerID int64) (*models.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]*models.Conversation, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID, beforeID int64, limit int) ([]*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID int64) error
}

type AccountRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	LinkTelegramChat(ctx context.Context, userID, chatID int64) error
	UpsertOwnerProfile(ctx context.Context, profile *models.OwnerProfile) error
	GetOwnerProfile(ctx context.Context, ownerID int64) (*models.OwnerProfile, error)
	CreatePaymentAccount(ctx context.Context, account *models.PaymentAccount) error
	UpdatePaymentAccount(ctx context.Context, account *models.PaymentAccount) error
	DeletePaymentAccount(ctx context.Context, ownerID, accountID int64) error
	GetPaymentAccount(ctx context.Context, id int64) (*models.PaymentAccount, error)
	ListPaymentAccounts(ctx context.Context, ownerID int64) ([]*models.PaymentAccount, error)
}

// CheckoutStore keeps short-lived PayMongo checkout sessions.
type CheckoutStore interface {
	SaveCheckout(ctx context.Context, session *models.CheckoutSession, ttl time.Duration) error
	GetCheckout(ctx context.Context, paymentID int64) (*models.CheckoutSession, error)
	GetCheckoutByIntent(ctx context.Context, intentID string) (*models.CheckoutSession, error)
	ClearCheckout(ctx context.Context, paymentID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req paymongo.PaymentIntentRequest, idempotencyKey string) (*paymongo.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*paymongo.PaymentIntent, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, paymentID int64, payment *models.RentPayment) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// LedgerWriter mirrors rent payments into the owner-facing spreadsheet.
type LedgerWriter interface {
	UpsertPayment(ctx context.Context, payment *models.RentPayment) error
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status string) error
	DeletePayment(ctx context.Context, paymentID int64) error
}
