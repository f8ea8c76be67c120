package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by cache reads when the key is absent.
var ErrMiss = errors.New("cache miss")

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Deduper remembers processed event ids per service.
type Deduper struct {
	Redis   *redis.Client
	Service string
	TTL     time.Duration
}

func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.Redis, DedupKey(d.Service, eventID))
}

func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	return d.Redis.Set(ctx, DedupKey(d.Service, eventID), "1", ttl).Err()
}

// Cache stores JSON values with a fixed TTL.
type Cache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (c *Cache) GetJSON(ctx context.Context, key string, out any) error {
	b, err := c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, key, b, c.TTL).Err()
}

// Delete removes exactly key; no pattern matching.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.Redis.Del(ctx, key).Err()
}

// DeleteByPrefix removes every key starting with prefix. prefix is a SCAN pattern,
// so it must never carry caller input.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.Redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.Redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
