package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mahir/loginhub/internal/model"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// RedisCache implements UserCache on a Redis instance. Profiles are stored
// as JSON under "users:<id>" with the configured TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ UserCache = (*RedisCache)(nil)

// NewRedis connects to Redis and verifies the connection with a ping.
// The client carries its own bounded pool and per-operation timeouts, so
// a slow cache can't hold a request indefinitely.
func NewRedis(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: pinging redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Close releases the client's connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) SetProfile(ctx context.Context, profile model.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("cache: encoding profile %s: %w", profile.ID, err)
	}
	if err := c.client.Set(ctx, profileKey(profile.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: setting profile %s: %w", profile.ID, err)
	}
	return nil
}

func (c *RedisCache) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: getting profile %s: %w", userID, err)
	}

	var profile model.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		// A corrupt entry is as good as a miss.
		return nil, ErrMiss
	}
	return &profile, nil
}

func (c *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache: deleting profile %s: %w", userID, err)
	}
	return nil
}

func profileKey(userID string) string {
	return "users:" + userID
}
