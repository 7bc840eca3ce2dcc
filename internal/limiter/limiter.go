// Package limiter implements a fixed-window request counter in Redis.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR and EXPIRE must run atomically.
var fixedWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

type FixedWindow struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewFixedWindow(rdb redis.Scripter, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{rdb: rdb, limit: limit, window: window, prefix: "ratelimit:"}
}

// Allow counts one hit for key and reports whether it is within the limit.
func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.prefix + key}, l.limit, windowSeconds(l.window)).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return res == 1, nil
}

func windowSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// NewClient parses a redis:// URL and checks the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
