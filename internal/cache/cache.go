// Package cache stores finished reports in Redis so identical runs over identical bars are not
// recomputed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"WyckoffBacktester/internal/model"
)

const keyPrefix = "wyckoff:"

// Report kinds used in cache keys.
const (
	KindBacktest = "backtest"
	KindOptimize = "optimize"
)

// ReportCache is a Redis-backed report cache. Values are JSON documents with a fixed TTL.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int, ttl time.Duration) (*ReportCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Key derives a cache key from the report kind, the symbol, the bars and the run
// configuration. Any change to a bar or a setting yields a different key.
func Key(kind, symbol string, bars []model.OHLCV, cfg any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(bars); err != nil {
		return "", fmt.Errorf("fingerprint bars: %w", err)
	}
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("fingerprint config: %w", err)
	}
	return keyPrefix + kind + ":" + symbol + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Backtest returns the cached symbol report under key. A miss returns (nil, false, nil).
func (c *ReportCache) Backtest(ctx context.Context, key string) (*model.SymbolReport, bool, error) {
	return get[model.SymbolReport](ctx, c, key)
}

// PutBacktest stores rep under key.
func (c *ReportCache) PutBacktest(ctx context.Context, key string, rep *model.SymbolReport) error {
	return c.put(ctx, key, rep)
}

// Optimization returns the cached optimization report under key.
func (c *ReportCache) Optimization(ctx context.Context, key string) (*model.OptimizationReport, bool, error) {
	return get[model.OptimizationReport](ctx, c, key)
}

// PutOptimization stores rep under key. Partial reports are never cached.
func (c *ReportCache) PutOptimization(ctx context.Context, key string, rep *model.OptimizationReport) error {
	if rep.Partial {
		return nil
	}
	return c.put(ctx, key, rep)
}

func (c *ReportCache) Close() error { return c.client.Close() }

func get[T any](ctx context.Context, c *ReportCache, key string) (*T, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("decode cached report: %w", err)
	}
	return &v, true, nil
}

func (c *ReportCache) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
