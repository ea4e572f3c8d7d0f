package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/models"

	"github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

type RedisCheckoutRepository struct {
	client *redis.Client
}

// NewRedisClient builds a redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCheckoutRepository(client *redis.Client) *RedisCheckoutRepository {
	return &RedisCheckoutRepository{client: client}
}

func checkoutKey(paymentID int64) string {
	return fmt.Sprintf("checkout:payment:%d", paymentID)
}

func intentKey(intentID string) string {
	return "checkout:intent:" + intentID
}

func (r *RedisCheckoutRepository) SaveCheckout(ctx context.Context, session *models.CheckoutSession, ttl time.Duration) error {
	if r.client == nil {
		return errNilClient
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, checkoutKey(session.PaymentID), data, ttl)
	if session.PaymentIntentID != "" {
		pipe.Set(ctx, intentKey(session.PaymentIntentID), session.PaymentID, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	return nil
}

func (r *RedisCheckoutRepository) GetCheckout(ctx context.Context, paymentID int64) (*models.CheckoutSession, error) {
	if r.client == nil {
		return nil, errNilClient
	}
	val, err := r.client.Get(ctx, checkoutKey(paymentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	var session models.CheckoutSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	return &session, nil
}

func (r *RedisCheckoutRepository) GetCheckoutByIntent(ctx context.Context, intentID string) (*models.CheckoutSession, error) {
	if r.client == nil {
		return nil, errNilClient
	}
	val, err := r.client.Get(ctx, intentKey(intentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout intent: %w", err)
	}
	paymentID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid checkout intent value %q: %w", val, err)
	}
	return r.GetCheckout(ctx, paymentID)
}

func (r *RedisCheckoutRepository) ClearCheckout(ctx context.Context, paymentID int64) error {
	if r.client == nil {
		return errNilClient
	}
	session, err := r.GetCheckout(ctx, paymentID)
	if err != nil {
		return err
	}
	keys := []string{checkoutKey(paymentID)}
	if session != nil && session.PaymentIntentID != "" {
		keys = append(keys, intentKey(session.PaymentIntentID))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete checkout session: %w", err)
	}
	return nil
}

// CheckRateLimit counts attempts per user in a fixed window.
func (r *RedisCheckoutRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	key := fmt.Sprintf("rate_limit:checkout:%d", userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the redis client if present.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
