// Package ratelimit counts requests per key in fixed redis windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Name              string
	RequestsPerWindow int
	WindowSize        time.Duration
}

func GeneralConfig() Config {
	return Config{Name: "general", RequestsPerWindow: 100, WindowSize: 15 * time.Minute}
}

func LoginConfig() Config {
	return Config{Name: "login", RequestsPerWindow: 5, WindowSize: 15 * time.Minute}
}

func UploadConfig() Config {
	return Config{Name: "upload", RequestsPerWindow: 10, WindowSize: time.Hour}
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter keeps one counter per key and window that expires with the window.
type RedisLimiter struct {
	client *redis.Client
	config Config
	prefix string
}

func NewRedisLimiter(client *redis.Client, config Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		config: config,
		prefix: "weplay:ratelimit:" + config.Name + ":",
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := l.prefix + key

	count64, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to count request: %w", err)
	}
	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read window: %w", err)
	}
	if ttl < 0 {
		if err := l.client.PExpire(ctx, redisKey, l.config.WindowSize).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to start window: %w", err)
		}
		ttl = l.config.WindowSize
	}

	count := int(count64)
	if count > l.config.RequestsPerWindow {
		return Result{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: l.config.RequestsPerWindow - count}, nil
}

func NewRedisClient(url string, password string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if password != "" {
		options.Password = password
	}
	return redis.NewClient(options), nil
}
