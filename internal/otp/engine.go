package otp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/authhub/internal/cache"
	"github.com/charlesng35/authhub/internal/queue"
	"github.com/charlesng35/authhub/pkg/crypto"
	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/mail"
	"github.com/charlesng35/authhub/pkg/metrics"
)

const (
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 5 * time.Minute

	minCode = 100000
	maxCode = 999999
)

// Option customises the Engine.
type Option func(*Engine)

// WithTTL overrides the code lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(generate func() (string, error)) Option {
	return func(e *Engine) {
		if generate != nil {
			e.generate = generate
		}
	}
}

// Engine issues and verifies one-time codes.
type Engine struct {
	store    cache.Store
	queue    queue.Enqueuer
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	log      *zap.Logger
}

// NewEngine constructs an engine over store. Delivery jobs go to q.
func NewEngine(store cache.Store, q queue.Enqueuer, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("otp: store is required")
	}
	if q == nil {
		return nil, errors.New("otp: queue is required")
	}

	e := &Engine{
		store:    store,
		queue:    q,
		ttl:      DefaultTTL,
		now:      time.Now,
		generate: randomCode,
		log:      logger.WithModule("otp"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Issue stores a fresh code for email and purpose, replacing any previous one, and
// enqueues its delivery. A failed enqueue is logged; the code stays valid.
func (e *Engine) Issue(ctx context.Context, email string, purpose Purpose, templateName string) error {
	if !purpose.Valid() {
		return fmt.Errorf("otp: invalid purpose %q", purpose)
	}

	code, err := e.generate()
	if err != nil {
		return fmt.Errorf("otp: generate code: %w", err)
	}

	record, err := json.Marshal(Record{
		OTP:       code,
		ExpiresAt: e.now().Add(e.ttl).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("otp: encode record: %w", err)
	}

	if err := e.store.Set(ctx, Key(email, purpose), record, e.ttl); err != nil {
		return fmt.Errorf("otp: store code: %w", err)
	}
	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()

	payload := DeliveryPayload{
		Email: strings.TrimSpace(email),
		OTP:   code,
		Template: mail.Template{
			Name:      templateName,
			Variables: map[string]string{"otp": code},
		},
	}
	if err := e.queue.Enqueue(ctx, JobSendOTP, payload); err != nil {
		e.log.Error("enqueue otp delivery failed",
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	}
	return nil
}

// Verify consumes the code for email and purpose. It returns true at most once per
// issued code. A wrong code leaves the record in place.
func (e *Engine) Verify(ctx context.Context, email string, code string, purpose Purpose) (bool, error) {
	key := Key(email, purpose)

	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("otp: load code: %w", err)
	}
	if !ok {
		e.observe(purpose, "missing")
		return false, nil
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return false, fmt.Errorf("otp: decode record: %w", err)
	}

	if e.now().UnixMilli() > record.ExpiresAt {
		if err := e.store.Delete(ctx, key); err != nil {
			return false, fmt.Errorf("otp: delete expired code: %w", err)
		}
		e.observe(purpose, "expired")
		return false, nil
	}

	candidate := strings.TrimSpace(code)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(record.OTP)) != 1 {
		e.observe(purpose, "invalid")
		return false, nil
	}

	consumed, err := e.store.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return false, fmt.Errorf("otp: consume code: %w", err)
	}
	if !consumed {
		// another request consumed or replaced the code first
		e.observe(purpose, "invalid")
		return false, nil
	}
	e.observe(purpose, "valid")
	return true, nil
}

func (e *Engine) observe(purpose Purpose, result string) {
	metrics.OTPVerifications.WithLabelValues(string(purpose), result).Inc()
}

func randomCode() (string, error) {
	n, err := crypto.RandomIntInRange(minCode, maxCode)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}
