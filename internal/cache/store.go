package cache

import (
	"context"
	"time"
)

// Store represents a shared expiring key-value store used for OTP records and rate limiting.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	// CompareAndDelete removes key only while it still holds expected. It reports
	// whether this call performed the delete, so at most one concurrent caller wins.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
}
