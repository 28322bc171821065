package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when no refresh token is stored for a user.
var ErrNoSession = errors.New("redis: no session")

// Client wraps the Redis connection used for refresh-token sessions and the
// case-feed pub/sub.
type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis.Client.Close: %w", err)
	}
	return nil
}

func refreshKey(userID uuid.UUID) string {
	return "refresh_token:" + userID.String()
}

// SetRefreshToken stores the user's current refresh token with a TTL. A
// login overwrites any previous session for the user.
func (c *Client) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis.SetRefreshToken: %w", err)
	}
	return nil
}

// GetRefreshToken returns the stored refresh token for the user, or
// ErrNoSession when none exists (logged out or expired).
func (c *Client) GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := c.rdb.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis.GetRefreshToken: %w", ErrNoSession)
	}
	if err != nil {
		return "", fmt.Errorf("redis.GetRefreshToken: %w", err)
	}

	return token, nil
}

// DeleteRefreshToken revokes the user's session.
func (c *Client) DeleteRefreshToken(ctx context.Context, userID uuid.UUID) error {
	if err := c.rdb.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis.DeleteRefreshToken: %w", err)
	}
	return nil
}
