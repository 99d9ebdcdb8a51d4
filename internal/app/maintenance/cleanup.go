package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/pkg/logger"
)

const (
	defaultSessionSpec = "@hourly"
	defaultCacheSpec   = "@every 10m"
)

// SessionExpirer invalidates sessions whose login time is before the cutoff.
type SessionExpirer interface {
	InvalidateOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExpiredPurger removes expired cache rows. Only the SQL backed store needs it;
// Redis evicts keys on its own.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance tasks such as invalidating aged sessions
// and purging expired OTP rows from the database cache.
type Cleaner struct {
	sessions SessionExpirer
	cache    ExpiredPurger
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	maxAge   time.Duration

	sessionSchedule string
	cacheSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithMaxSessionAge enables session invalidation for sessions older than maxAge.
func WithMaxSessionAge(maxAge time.Duration) Option {
	return func(cleaner *Cleaner) {
		if maxAge > 0 {
			cleaner.maxAge = maxAge
		}
	}
}

// WithSessionSchedule overrides the cron specification for session invalidation.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped. Session invalidation also needs a max age.
func NewCleaner(sessions SessionExpirer, cache ExpiredPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		cache:           cache,
		now:             time.Now,
		sessionSchedule: defaultSessionSpec,
		cacheSchedule:   defaultCacheSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) sessionsEnabled() bool {
	return c.sessions != nil && c.maxAge > 0
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.sessionsEnabled() && c.cache == nil {
		return nil
	}

	if c.sessionsEnabled() {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.expireSessions(context.Background()); err != nil {
				c.log.Warn("session invalidation failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.cache.PurgeExpired(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessionsEnabled() {
		if _, err := c.expireSessions(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.cache != nil {
		if _, err := c.cache.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) expireSessions(ctx context.Context) (int64, error) {
	count, err := c.sessions.InvalidateOlderThan(ctx, c.now().Add(-c.maxAge))
	if err == nil && count > 0 {
		c.log.Info("invalidated aged sessions", zap.Int64("count", count))
	}
	return count, err
}
