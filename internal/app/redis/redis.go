package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"filingdesk/internal/app/config"

	"github.com/go-redis/redis/v8"
)

const (
	servicePrefix = "filing."

	jwtPrefix   = servicePrefix + "jwt."
	lockPrefix  = servicePrefix + "order_lock."
	eventPrefix = servicePrefix + "event."
)

type Client struct {
	cfg    config.RedisConfig
	client *redis.Client
}

func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	client := &Client{}

	client.cfg = cfg

	redisClient := redis.NewClient(&redis.Options{
		Password:    cfg.Password,
		Username:    cfg.User,
		Addr:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		DB:          0,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	client.client = redisClient

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("cant ping redis: %w", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func getJWTKey(token string) string {
	return jwtPrefix + token
}

func (c *Client) WriteJWTToBlacklist(ctx context.Context, jwtStr string, jwtTTL time.Duration) error {
	return c.client.Set(ctx, getJWTKey(jwtStr), true, jwtTTL).Err()
}

// CheckJWTInBlacklist returns nil when the token is blacklisted and
// redis.Nil when it is not.
func (c *Client) CheckJWTInBlacklist(ctx context.Context, jwtStr string) error {
	return c.client.Get(ctx, getJWTKey(jwtStr)).Err()
}

// AcquireOrderLock takes the per-submission lock held while an order is
// opened at the provider. It reports false when another request holds it.
func (c *Client) AcquireOrderLock(ctx context.Context, submissionID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, lockPrefix+submissionID, true, ttl).Result()
}

func (c *Client) ReleaseOrderLock(ctx context.Context, submissionID string) error {
	return c.client.Del(ctx, lockPrefix+submissionID).Err()
}

// MarkEventSeen records a provider webhook event id. It reports false for a
// duplicate delivery.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, eventPrefix+eventID, true, ttl).Result()
}

// Ping is used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ForgetEvent drops a dedupe marker so a failed delivery can be retried.
func (c *Client) ForgetEvent(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, eventPrefix+eventID).Err()
}
