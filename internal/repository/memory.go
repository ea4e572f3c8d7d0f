package repository

import (
	"context"
	"sync"
	"time"

	"hanapbahay/internal/models"
)

type memoryCheckout struct {
	session   models.CheckoutSession
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCheckoutRepository is the in-process fallback when redis is down.
type MemoryCheckoutRepository struct {
	mu         sync.Mutex
	sessions   map[int64]memoryCheckout
	intents    map[string]int64
	rateLimits map[int64]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryCheckoutRepository() *MemoryCheckoutRepository {
	return &MemoryCheckoutRepository{
		sessions:   make(map[int64]memoryCheckout),
		intents:    make(map[string]int64),
		rateLimits: make(map[int64]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryCheckoutRepository) SaveCheckout(_ context.Context, session *models.CheckoutSession, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.PaymentID] = memoryCheckout{session: *session, expiresAt: r.now().Add(ttl)}
	if session.PaymentIntentID != "" {
		r.intents[session.PaymentIntentID] = session.PaymentID
	}
	return nil
}

func (r *MemoryCheckoutRepository) GetCheckout(_ context.Context, paymentID int64) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(paymentID), nil
}

func (r *MemoryCheckoutRepository) GetCheckoutByIntent(_ context.Context, intentID string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paymentID, ok := r.intents[intentID]
	if !ok {
		return nil, nil
	}
	return r.lookup(paymentID), nil
}

func (r *MemoryCheckoutRepository) ClearCheckout(_ context.Context, paymentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[paymentID]; ok {
		delete(r.intents, entry.session.PaymentIntentID)
	}
	delete(r.sessions, paymentID)
	return nil
}

// lookup must be called with mu held.
func (r *MemoryCheckoutRepository) lookup(paymentID int64) *models.CheckoutSession {
	entry, ok := r.sessions[paymentID]
	if !ok {
		return nil
	}
	if r.now().After(entry.expiresAt) {
		delete(r.sessions, paymentID)
		delete(r.intents, entry.session.PaymentIntentID)
		return nil
	}
	session := entry.session
	return &session
}

func (r *MemoryCheckoutRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[userID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[userID] = entry
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}
