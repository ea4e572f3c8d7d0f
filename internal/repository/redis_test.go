package repository

import (
	"context"
	"testing"
	"time"

	"hanapbahay/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCheckoutRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisCheckoutRepository(client)
	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		session := &models.CheckoutSession{
			PaymentID:       42,
			TenantID:        7,
			PaymentIntentID: "pi_42",
			ClientKey:       "pi_42_client_abc",
			Amount:          800000,
			Metadata:        models.Metadata{"period": "2025-03"},
		}
		require.NoError(t, repo.SaveCheckout(ctx, session, time.Hour))

		got, err := repo.GetCheckout(ctx, 42)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "pi_42_client_abc", got.ClientKey)
		assert.Equal(t, "2025-03", got.Metadata.GetString("period"))

		byIntent, err := repo.GetCheckoutByIntent(ctx, "pi_42")
		require.NoError(t, err)
		require.NotNil(t, byIntent)
		assert.Equal(t, int64(42), byIntent.PaymentID)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.SaveCheckout(ctx, &models.CheckoutSession{PaymentID: 43}, time.Minute))
		s.FastForward(2 * time.Minute)
		got, err := repo.GetCheckout(ctx, 43)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.GetCheckout(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
		got, err = repo.GetCheckoutByIntent(ctx, "pi_missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, repo.SaveCheckout(ctx, &models.CheckoutSession{PaymentID: 44, PaymentIntentID: "pi_44"}, time.Hour))
		require.NoError(t, repo.ClearCheckout(ctx, 44))

		got, _ := repo.GetCheckout(ctx, 44)
		assert.Nil(t, got)
		assert.False(t, s.Exists(intentKey("pi_44")))
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisCheckoutRepository(nil)
		_, err := repo.GetCheckout(ctx, 123)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
	})
}
