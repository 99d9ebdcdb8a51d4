package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/pkg/logger"
)

// Client enqueues jobs onto the Redis backed asynq queue.
type Client struct {
	client *asynq.Client
	cfg    Config
	log    *zap.Logger
}

// NewClient connects an asynq client using cfg.Redis.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		client: asynq.NewClient(RedisConnOpt(cfg.Redis)),
		cfg:    cfg,
		log:    logger.WithModule("queue"),
	}
}

// Enqueue serialises payload to JSON and schedules the job.
func (c *Client) Enqueue(ctx context.Context, jobType string, payload any) error {
	task, opts, err := newTask(c.cfg, jobType, payload)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", jobType, err)
	}

	c.log.Debug("job enqueued", zap.String("type", jobType), zap.String("id", info.ID))
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func newTask(cfg Config, jobType string, payload any) (*asynq.Task, []asynq.Option, error) {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return nil, nil, fmt.Errorf("queue: job type is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("queue: encode %s payload: %w", jobType, err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Queue(cfg.Queue),
		asynq.Timeout(cfg.Timeout),
	}
	return asynq.NewTask(jobType, data), opts, nil
}
