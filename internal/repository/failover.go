package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hanapbahay/internal/domain"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
)

const failoverRecheck = time.Minute

// FailoverCheckoutRepository uses the primary store and switches to the
// fallback after an error, retrying the primary once a minute.
type FailoverCheckoutRepository struct {
	primary   domain.CheckoutStore
	fallback  domain.CheckoutStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverCheckoutRepository(primary, fallback domain.CheckoutStore, logger *zerolog.Logger) *FailoverCheckoutRepository {
	return &FailoverCheckoutRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverCheckoutRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > failoverRecheck
}

func (r *FailoverCheckoutRepository) observe(err error) {
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary checkout store recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary checkout store failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverCheckoutRepository) SaveCheckout(ctx context.Context, session *models.CheckoutSession, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SaveCheckout(ctx, session, ttl)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SaveCheckout(ctx, session, ttl)
}

func (r *FailoverCheckoutRepository) GetCheckout(ctx context.Context, paymentID int64) (*models.CheckoutSession, error) {
	if r.usePrimary() {
		session, err := r.primary.GetCheckout(ctx, paymentID)
		r.observe(err)
		if err == nil && session != nil {
			return session, nil
		}
	}
	return r.fallback.GetCheckout(ctx, paymentID)
}

func (r *FailoverCheckoutRepository) GetCheckoutByIntent(ctx context.Context, intentID string) (*models.CheckoutSession, error) {
	if r.usePrimary() {
		session, err := r.primary.GetCheckoutByIntent(ctx, intentID)
		r.observe(err)
		if err == nil && session != nil {
			return session, nil
		}
	}
	return r.fallback.GetCheckoutByIntent(ctx, intentID)
}

func (r *FailoverCheckoutRepository) ClearCheckout(ctx context.Context, paymentID int64) error {
	if r.usePrimary() {
		r.observe(r.primary.ClearCheckout(ctx, paymentID))
	}
	// Sessions written during an outage live in the fallback.
	return r.fallback.ClearCheckout(ctx, paymentID)
}

func (r *FailoverCheckoutRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
