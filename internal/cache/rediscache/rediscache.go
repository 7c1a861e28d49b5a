package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Deduper remembers keys for a TTL. The discrepancy worker uses it to drop
// billing line items that kafka redelivered.
type Deduper struct {
	c      *redis.Client
	prefix string
}

func NewDeduper(addr, prefix string) *Deduper {
	return &Deduper{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

// FirstSeen marks key as seen and reports whether it was new.
func (d *Deduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.c.SetNX(ctx, d.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	return ok, nil
}

// Forget drops key so a redelivery is processed again, e.g. after a failed handler.
func (d *Deduper) Forget(ctx context.Context, key string) error {
	if err := d.c.Del(ctx, d.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func (d *Deduper) Close() error {
	return d.c.Close()
}
