package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/count_attempt.lua
var countAttemptScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	attemptScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		attemptScript: redis.NewScript(countAttemptScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// AcquireLock acquires a distributed lock and returns the owner token
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// StoreSession registers a live session token
func (c *Client) StoreSession(ctx context.Context, tokenID string, userID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("session:%s", tokenID), userID, ttl).Err()
}

// SessionExists reports whether a session token is still live
func (c *Client) SessionExists(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("session:%s", tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteSession revokes a session token
func (c *Client) DeleteSession(ctx context.Context, tokenID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("session:%s", tokenID)).Err()
}

// StoreResetToken stores a single-use password reset token
func (c *Client) StoreResetToken(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("reset:%s", token), userID, ttl).Err()
}

// ConsumeResetToken returns the user bound to token and deletes it.
// ok is false when the token is unknown or expired.
func (c *Client) ConsumeResetToken(ctx context.Context, token string) (int64, bool, error) {
	val, err := c.rdb.GetDel(ctx, fmt.Sprintf("reset:%s", token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt reset token value: %w", err)
	}
	return userID, true, nil
}

// RegisterFailedLogin counts a failed login inside window and returns the count
func (c *Client) RegisterFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("login_failures:%s", email)
	result, err := c.attemptScript.Run(ctx, c.rdb, []string{key}, int64(window.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempt script failed: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return count, nil
}

// FailedLogins returns the failures counted in the current window
func (c *Client) FailedLogins(ctx context.Context, email string) (int64, error) {
	n, err := c.rdb.Get(ctx, fmt.Sprintf("login_failures:%s", email)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// ClearFailedLogins resets the failure counter
func (c *Client) ClearFailedLogins(ctx context.Context, email string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("login_failures:%s", email)).Err()
}
