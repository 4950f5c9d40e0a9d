package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domain "github.com/somba-market/commerce/internal/domain/cart"
)

const (
	cartKeyPrefix = "cart-"

	// mutateAttempts bounds the WATCH retry loop. Conflicts are transient;
	// exhausting the budget fails loudly instead of losing an update.
	mutateAttempts = 5
)

// CartRepository stores one JSON document per user under cart-{userId}
// with a sliding TTL. Mutations run inside a WATCH/MULTI cycle so a
// concurrent writer invalidates the transaction instead of being
// silently overwritten.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	raw, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis cart get: %w", err)
	}
	return decodeCart(userID, raw)
}

func (r *CartRepository) Mutate(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	key := cartKey(userID)

	var result *domain.Cart
	txn := func(tx *redis.Tx) error {
		c := domain.New(userID)
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// lazily materialized
		case err != nil:
			return fmt.Errorf("redis cart read: %w", err)
		default:
			if c, err = decodeCart(userID, raw); err != nil {
				return err
			}
		}

		if err := fn(c); err != nil {
			return err
		}

		encoded, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("redis cart encode: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = c
		return nil
	}

	for attempt := 0; attempt < mutateAttempts; attempt++ {
		err := r.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, domain.ErrConflict
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis cart delete: %w", err)
	}
	return nil
}

func (r *CartRepository) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, cartKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis cart exists: %w", err)
	}
	return n > 0, nil
}

func decodeCart(userID string, raw []byte) (*domain.Cart, error) {
	var c domain.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("redis cart decode: %w", err)
	}
	c.UserID = userID
	return &c, nil
}
