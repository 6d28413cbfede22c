package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/config"
	"salonbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisAvailabilityCache keeps resolved views under a per-day generation
// counter. Invalidation bumps the counter so every view of the day misses
// at once; stale keys expire on their own.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func generationKey(placeID int64, date time.Time) string {
	return fmt.Sprintf("availability:gen:%d:%s", placeID, models.DateOf(date).Format(models.DateLayout))
}

func (r *RedisAvailabilityCache) generation(ctx context.Context, placeID int64, date time.Time) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(placeID, date)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return gen, nil
}

func viewKey(q availability.Query, gen int64) string {
	return fmt.Sprintf("availability:view:%s:g%d:%s", q.DayKey(), gen, q.ViewKey())
}

func (r *RedisAvailabilityCache) Get(ctx context.Context, q availability.Query) (*availability.Result, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	gen, err := r.generation(ctx, q.PlaceID, q.Date)
	if err != nil {
		return nil, false, err
	}

	val, err := r.client.Get(ctx, viewKey(q, gen)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get availability from redis: %w", err)
	}

	var res availability.Result
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	return &res, true, nil
}

func (r *RedisAvailabilityCache) Set(ctx context.Context, q availability.Query, res *availability.Result) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	gen, err := r.generation(ctx, q.PlaceID, q.Date)
	if err != nil {
		return err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}
	if err := r.client.Set(ctx, viewKey(q, gen), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set availability in redis: %w", err)
	}
	return nil
}

func (r *RedisAvailabilityCache) InvalidateDay(ctx context.Context, placeID int64, date time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := generationKey(placeID, date)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	// The counter must outlive every view written under the previous generation.
	pipe.Expire(ctx, key, 2*r.ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
