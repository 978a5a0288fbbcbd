// Package cart keeps carts and wishlists in redis, keyed by user. Carts are
// working state, not orders; they expire after 30 days of inactivity.
package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const cartTTL = 30 * 24 * time.Hour

type Item struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type Store interface {
	GetCart(ctx context.Context, userID uuid.UUID) ([]Item, error)
	SetCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) error
	ClearCart(ctx context.Context, userID uuid.UUID) error

	GetWishlist(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
}

type redisStore struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func cartKey(userID uuid.UUID) string     { return "cart:" + userID.String() }
func wishlistKey(userID uuid.UUID) string { return "wishlist:" + userID.String() }

func (s *redisStore) GetCart(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	fields, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart: failed to fetch cart: %w", err)
	}

	items := make([]Item, 0, len(fields))
	for field, raw := range fields {
		productID, err := uuid.FromString(field)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			continue
		}
		items = append(items, Item{ProductID: productID, Quantity: qty})
	}
	return items, nil
}

func (s *redisStore) SetCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	key := cartKey(userID)
	if err := s.rdb.HSet(ctx, key, productID.String(), quantity).Err(); err != nil {
		return fmt.Errorf("cart: failed to set cart item: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, cartTTL).Err(); err != nil {
		return fmt.Errorf("cart: failed to refresh cart TTL: %w", err)
	}
	return nil
}

func (s *redisStore) RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.rdb.HDel(ctx, cartKey(userID), productID.String()).Err(); err != nil {
		return fmt.Errorf("cart: failed to remove cart item: %w", err)
	}
	return nil
}

func (s *redisStore) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if err := s.rdb.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart: failed to clear cart: %w", err)
	}
	return nil
}

func (s *redisStore) GetWishlist(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	members, err := s.rdb.SMembers(ctx, wishlistKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart: failed to fetch wishlist: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.FromString(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *redisStore) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.rdb.SAdd(ctx, wishlistKey(userID), productID.String()).Err(); err != nil {
		return fmt.Errorf("cart: failed to add to wishlist: %w", err)
	}
	return nil
}

func (s *redisStore) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.rdb.SRem(ctx, wishlistKey(userID), productID.String()).Err(); err != nil {
		return fmt.Errorf("cart: failed to remove from wishlist: %w", err)
	}
	return nil
}
