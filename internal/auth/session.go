package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scooterparts/backend/internal/user"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionTTL = 7 * 24 * time.Hour

// Session is the per-login snapshot kept in redis. Tier and price category
// are captured at login time so request handlers can resolve prices without
// a user lookup.
type Session struct {
	UserID          uuid.UUID `json:"user_id"`
	Role            user.Role `json:"role"`
	Tier            user.Tier `json:"tier"`
	PriceCategoryID *string   `json:"price_category_id,omitempty"`
}

type SessionStore interface {
	Create(ctx context.Context, s Session) (string, error)
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

type redisStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) SessionStore {
	return &redisStore{rdb: rdb}
}

func sessionKey(token string) string { return "session:" + token }

func (r *redisStore) Create(ctx context.Context, s Session) (string, error) {
	tok, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("auth: failed to generate session token: %w", err)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("auth: failed to marshal session: %w", err)
	}

	if err := r.rdb.Set(ctx, sessionKey(tok.String()), payload, sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("auth: failed to store session: %w", err)
	}

	return tok.String(), nil
}

func (r *redisStore) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := r.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("auth: failed to fetch session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("auth: failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *redisStore) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("auth: failed to delete session: %w", err)
	}
	return nil
}
