// Package queue delivers background jobs through asynq, or in-process when Redis is disabled.
package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/charlesng35/authhub/internal/cache"
)

const (
	DefaultConcurrency = 5
	DefaultMaxRetry    = 2
	DefaultBaseDelay   = time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultQueue       = "default"
)

// Enqueuer accepts jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) error
}

// Handler processes the JSON payload of one job. A returned error schedules a retry.
type Handler func(ctx context.Context, payload []byte) error

// Config tunes the client and worker.
type Config struct {
	Redis       cache.RedisConfig
	Concurrency int
	// MaxRetry counts retries after the first attempt.
	MaxRetry  int
	BaseDelay time.Duration
	Timeout   time.Duration
	Queue     string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetry < 0 {
		c.MaxRetry = DefaultMaxRetry
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	return c
}

// RedisConnOpt maps the shared Redis settings onto asynq connection options.
func RedisConnOpt(cfg cache.RedisConfig) asynq.RedisClientOpt {
	opts := cache.RedisOptions(cfg)
	return asynq.RedisClientOpt{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		TLSConfig:    opts.TLSConfig,
	}
}

// Backoff returns an exponential retry delay of base * 2^n, where n is the number
// of retries already performed.
func Backoff(base time.Duration) asynq.RetryDelayFunc {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		if n < 0 {
			n = 0
		}
		if n > 16 {
			n = 16
		}
		return base << uint(n)
	}
}
