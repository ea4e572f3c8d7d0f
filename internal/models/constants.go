package models

// Listing statuses.
const (
	ListingDraft     = "draft"
	ListingPublished = "published"
	ListingUnlisted  = "unlisted"
	ListingFull      = "full"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Rent payment statuses.
const (
	PaymentPending                  = "pending"
	PaymentPaid                     = "paid"
	PaymentOverdue                  = "overdue"
	PaymentPartial                  = "partial"
	PaymentPendingOwnerConfirmation = "pending_owner_confirmation"
	PaymentRejected                 = "rejected"
)

// Payment methods.
const (
	MethodGCash    = "gcash"
	MethodMaya     = "maya"
	MethodBank     = "bank"
	MethodCash     = "cash"
	MethodPayMongo = "paymongo"
	MethodAdvance  = "advance"
)

// User roles.
const (
	RoleTenant = "tenant"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

// Message kinds.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// Late fee modes.
const (
	LateFeeFixed   = "fixed"
	LateFeePercent = "percent"
)

const (
	// PeriodLayout is the layout of RentPayment.Period.
	PeriodLayout = "2006-01"

	// DateLayout is the layout used for due dates and move-in dates.
	DateLayout = "2006-01-02"

	// DefaultLeaseMonths is used when a booking does not specify a term.
	DefaultLeaseMonths = 12

	// DefaultCheckoutTTL keeps PayMongo checkout sessions for 2 hours.
	DefaultCheckoutTTL = 2 * 60 * 60

	// DefaultGraceDays before a pending payment becomes overdue.
	DefaultGraceDays = 5

	// DefaultReminderDays before the due date a reminder is sent.
	DefaultReminderDays = 3

	// ReminderHour is the local hour daily reminders go out.
	ReminderHour = 9

	// DefaultPageSize for list endpoints.
	DefaultPageSize = 20

	// MaxPageSize caps list endpoints.
	MaxPageSize = 100

	// RateLimitAttempts is the number of checkout attempts per window.
	RateLimitAttempts = 10

	// RateLimitWindow in seconds.
	RateLimitWindow = 60 * 10

	// SheetsCacheTTL is how long cached ledger sheet row indexes live, in seconds.
	SheetsCacheTTL = 60 * 60
)
