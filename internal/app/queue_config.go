package app

import "github.com/charlesng35/authhub/internal/queue"

// QueueConfig converts QueueSettings into the worker configuration. The Redis
// connection comes from the cache section so both share one deployment.
func (c Config) QueueConfig() queue.Config {
	cfg := queue.Config{
		Redis:       c.Cache.RedisClientConfig(),
		Concurrency: c.Queue.Concurrency,
		MaxRetry:    c.Queue.MaxRetry,
		BaseDelay:   c.Queue.BaseDelay,
		Timeout:     c.Queue.Timeout,
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = queue.DefaultConcurrency
	}
	if cfg.MaxRetry < 0 {
		cfg.MaxRetry = queue.DefaultMaxRetry
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = queue.DefaultBaseDelay
	}
	return cfg
}
