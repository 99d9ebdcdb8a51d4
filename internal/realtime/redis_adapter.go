package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/pkg/logger"
)

// RoomsChannel is the pub/sub channel shared by every node.
const RoomsChannel = "realtime:rooms"

type envelope struct {
	Node    string  `json:"node"`
	Room    string  `json:"room"`
	Message Message `json:"message"`
}

// RedisAdapter relays room broadcasts over Redis pub/sub.
type RedisAdapter struct {
	client  redis.UniversalClient
	channel string
	node    string
	log     *zap.Logger
}

// NewRedisAdapter returns an adapter publishing on RoomsChannel.
func NewRedisAdapter(client redis.UniversalClient) (*RedisAdapter, error) {
	if client == nil {
		return nil, errors.New("realtime: redis client is required")
	}
	return &RedisAdapter{
		client:  client,
		channel: RoomsChannel,
		node:    uuid.NewString(),
		log:     logger.WithModule("realtime"),
	}, nil
}

// Publish sends a broadcast to all subscribed nodes, this one included.
func (a *RedisAdapter) Publish(ctx context.Context, room string, message Message) error {
	payload, err := json.Marshal(envelope{Node: a.node, Room: room, Message: message})
	if err != nil {
		return fmt.Errorf("realtime: encode broadcast: %w", err)
	}
	if err := a.client.Publish(ctx, a.channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and hands every broadcast to deliver until ctx ends.
func (a *RedisAdapter) Run(ctx context.Context, deliver func(room string, message Message)) error {
	sub := a.client.Subscribe(ctx, a.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				a.log.Warn("invalid broadcast payload", zap.Error(err))
				continue
			}
			deliver(env.Room, env.Message)
		}
	}
}
