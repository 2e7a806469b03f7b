package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate remembers that the vendor URL was hit recently so another download
// inside the vendor's minimum interval goes straight to the local copy.
type Gate interface {
	// Wait returns how long until the URL may be requested again, or 0.
	Wait(ctx context.Context, url string) (time.Duration, error)
	Mark(ctx context.Context, url string, reason string) error
}

// NoopGate never blocks.
type NoopGate struct{}

func (NoopGate) Wait(context.Context, string) (time.Duration, error) { return 0, nil }
func (NoopGate) Mark(context.Context, string, string) error          { return nil }

const gateKeyPrefix = "catalogsync:source:gate:"

type RedisGate struct {
	Client   *redis.Client
	Interval time.Duration
}

// NewRedisGate accepts a redis:// URL or a bare host:port.
func NewRedisGate(redisURL string, interval time.Duration) (*RedisGate, error) {
	var opts *redis.Options
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: redisURL}
	}
	return &RedisGate{Client: redis.NewClient(opts), Interval: interval}, nil
}

func gateKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return gateKeyPrefix + hex.EncodeToString(sum[:])
}

func (g *RedisGate) Wait(ctx context.Context, url string) (time.Duration, error) {
	ttl, err := g.Client.PTTL(ctx, gateKey(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	// -2 missing key, -1 no expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (g *RedisGate) Mark(ctx context.Context, url string, reason string) error {
	if g.Interval <= 0 {
		return nil
	}
	return g.Client.Set(ctx, gateKey(url), reason, g.Interval).Err()
}

func (g *RedisGate) Close() error {
	return g.Client.Close()
}
