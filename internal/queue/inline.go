package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/metrics"
)

// ErrNoHandler is returned when a job type has no registered handler.
var ErrNoHandler = errors.New("queue: no handler registered")

// Inline runs handlers synchronously in the caller's goroutine. Retries happen
// immediately without backoff, and errors wrapping asynq.SkipRetry stop them.
type Inline struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	maxRetry int
	log      *zap.Logger
}

// NewInline constructs an Inline enqueuer that makes maxRetry+1 attempts per job.
func NewInline(maxRetry int) *Inline {
	if maxRetry < 0 {
		maxRetry = DefaultMaxRetry
	}
	return &Inline{
		handlers: make(map[string]Handler),
		maxRetry: maxRetry,
		log:      logger.WithModule("queue"),
	}
}

// Register binds handler to jobType.
func (q *Inline) Register(jobType string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue runs the handler for jobType and returns the last error once attempts are exhausted.
func (q *Inline) Enqueue(ctx context.Context, jobType string, payload any) error {
	q.mu.RLock()
	handler, ok := q.handlers[jobType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, jobType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: encode %s payload: %w", jobType, err)
	}

	for attempt := 0; ; attempt++ {
		err = handler(ctx, data)
		if err == nil {
			metrics.QueueJobs.WithLabelValues(jobType, "success").Inc()
			return nil
		}
		final := attempt >= q.maxRetry || errors.Is(err, asynq.SkipRetry) || ctx.Err() != nil
		reportFailure(q.log, jobType, attempt, q.maxRetry, final, err)
		if final {
			return err
		}
	}
}
