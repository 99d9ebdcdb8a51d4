package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/metrics"
)

// Server runs registered handlers on an asynq worker pool.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

// NewServer configures the worker pool. Jobs are not consumed until Start.
func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	log := logger.WithModule("queue")

	s := &Server{
		mux: asynq.NewServeMux(),
		log: log,
	}
	s.srv = asynq.NewServer(RedisConnOpt(cfg.Redis), asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         map[string]int{cfg.Queue: 1},
		RetryDelayFunc: Backoff(cfg.BaseDelay),
		ErrorHandler:   asynq.ErrorHandlerFunc(s.handleError),
		Logger:         log.Sugar(),
	})
	return s
}

// Register binds handler to jobType.
func (s *Server) Register(jobType string, handler Handler) {
	s.mux.HandleFunc(jobType, func(ctx context.Context, task *asynq.Task) error {
		if err := handler(ctx, task.Payload()); err != nil {
			return err
		}
		metrics.QueueJobs.WithLabelValues(jobType, "success").Inc()
		return nil
	})
}

// Start begins consuming jobs in background goroutines.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("queue: start worker: %w", err)
	}
	s.log.Info("queue worker started")
	return nil
}

// Shutdown stops fetching new jobs and waits for running handlers.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
	s.log.Info("queue worker stopped")
}

func (s *Server) handleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	final := retried >= maxRetry || errors.Is(err, asynq.SkipRetry)
	reportFailure(s.log, task.Type(), retried, maxRetry, final, err)
}

// reportFailure logs a failed attempt. A final failure drops the job.
func reportFailure(log *zap.Logger, jobType string, retried, maxRetry int, final bool, err error) {
	fields := []zap.Field{
		zap.String("type", jobType),
		zap.Int("attempt", retried+1),
		zap.Int("max_attempts", maxRetry+1),
		zap.Error(err),
	}
	if final {
		metrics.QueueJobs.WithLabelValues(jobType, "failed").Inc()
		log.Error("job failed permanently", fields...)
		return
	}
	metrics.QueueJobs.WithLabelValues(jobType, "retry").Inc()
	log.Warn("job failed, will retry", fields...)
}
