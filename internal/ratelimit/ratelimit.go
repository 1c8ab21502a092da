// Package ratelimit builds the per-IP request limits. Every limit is a fixed window. Counters
// live in redis when a client is given, so every replica shares one budget; otherwise each
// process counts locally.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"studyhub/internal/config"
	"studyhub/internal/logging"
	"studyhub/internal/metrics"
)

type Policy struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
}

func General(cfg config.RateLimitConfig) Policy {
	return Policy{
		Name:    "general",
		Limit:   cfg.GeneralLimit,
		Window:  cfg.GeneralWindow,
		Message: "Too many requests from this IP, please try again after " + humanWindow(cfg.GeneralWindow),
	}
}

func Auth(cfg config.RateLimitConfig) Policy {
	return Policy{
		Name:    "auth",
		Limit:   cfg.AuthLimit,
		Window:  cfg.AuthWindow,
		Message: "Too many authentication attempts, please try again after " + humanWindow(cfg.AuthWindow),
	}
}

func Upload(cfg config.RateLimitConfig) Policy {
	return Policy{
		Name:    "upload",
		Limit:   cfg.UploadLimit,
		Window:  cfg.UploadWindow,
		Message: "Too many upload attempts, please try again after " + humanWindow(cfg.UploadWindow),
	}
}

func humanWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "an hour"
	case d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	case d%time.Minute == 0:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	default:
		return d.String()
	}
}

// RejectFunc writes the response for a limited request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, message string)

type Limiter struct {
	disabled bool
	redis    redis.UniversalClient
	reject   RejectFunc
}

func New(cfg config.RateLimitConfig, client redis.UniversalClient, reject RejectFunc) *Limiter {
	return &Limiter{disabled: cfg.Disabled, redis: client, reject: reject}
}

func (l *Limiter) Middleware(p Policy) func(http.Handler) http.Handler {
	if l.disabled || p.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	opts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimited(p.Name)
			logging.Ctx(r.Context()).Warn().Str("policy", p.Name).Str("remote", r.RemoteAddr).Msg("rate limited")
			l.reject(w, r, p.Message)
		}),
	}
	var counter httprate.LimitCounter = NewLocalCounter()
	if l.redis != nil {
		counter = NewRedisCounter(l.redis, "studyhub:ratelimit:"+p.Name)
	}
	opts = append(opts, httprate.WithLimitCounter(counter))
	return httprate.Limit(p.Limit, p.Window, opts...)
}

// RedisCounter is a fixed-window httprate.LimitCounter. Each window is one INCR'd key that
// expires after the window ends. It reports no previous-window count, so the limit resets
// sharply at each window boundary.
type RedisCounter struct {
	client       redis.UniversalClient
	prefix       string
	windowLength time.Duration
	timeout      time.Duration
}

var _ httprate.LimitCounter = (*RedisCounter)(nil)

func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix, timeout: 500 * time.Millisecond}
}

func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	k := c.key(key, currentWindow)
	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	pipe.Expire(ctx, k, c.windowLength*2)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.client.Get(ctx, c.key(key, currentWindow)).Int()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return n, 0, nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return c.prefix + ":" + key + ":" + strconv.FormatInt(window.Unix(), 10)
}

// LocalCounter is the in-process fixed-window counter. Like RedisCounter it never reports a
// previous-window count. Entries of past windows are dropped once a new window starts.
type LocalCounter struct {
	mu      sync.Mutex
	counts  map[string]localCount
	current time.Time
}

type localCount struct {
	window time.Time
	n      int
}

var _ httprate.LimitCounter = (*LocalCounter)(nil)

func NewLocalCounter() *LocalCounter {
	return &LocalCounter{counts: make(map[string]localCount)}
}

func (c *LocalCounter) Config(requestLimit int, windowLength time.Duration) {}

func (c *LocalCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *LocalCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if currentWindow.After(c.current) {
		c.current = currentWindow
		for k, v := range c.counts {
			if v.window.Before(currentWindow) {
				delete(c.counts, k)
			}
		}
	}
	entry := c.counts[key]
	if !entry.window.Equal(currentWindow) {
		entry = localCount{window: currentWindow}
	}
	entry.n += amount
	c.counts[key] = entry
	return nil
}

func (c *LocalCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.counts[key]
	if !ok || !entry.window.Equal(currentWindow) {
		return 0, 0, nil
	}
	return entry.n, 0, nil
}
