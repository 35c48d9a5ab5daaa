package pushbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const relayChannel = "si:pushbus:events"

// relayMessage is the wire form on the Redis channel
type relayMessage struct {
	InstanceID string     `json:"instance_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Event      Event      `json:"event"`
}

// RedisRelay mirrors bus events to other instances over Redis Pub/Sub.
// Outgoing events are queued and published in order by a single goroutine,
// so Forward never blocks the caller.
type RedisRelay struct {
	client     *redis.Client
	bus        *Bus
	instanceID string
	queue      chan relayMessage
	logger     *zap.Logger
}

// NewRedisRelay creates a relay for bus and attaches it
func NewRedisRelay(client *redis.Client, bus *Bus, queueSize int, logger *zap.Logger) *RedisRelay {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &RedisRelay{
		client:     client,
		bus:        bus,
		instanceID: uuid.NewString(),
		queue:      make(chan relayMessage, queueSize),
		logger:     logger,
	}
	bus.SetRelay(r)
	return r
}

// NewRedisClient parses url and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Forward queues ev for other instances. A full queue drops the event.
func (r *RedisRelay) Forward(userID *uuid.UUID, ev Event) {
	msg := relayMessage{InstanceID: r.instanceID, UserID: userID, Event: ev}
	select {
	case r.queue <- msg:
	default:
		r.logger.Warn("Push relay queue full, dropping event", zap.String("type", ev.Type))
	}
}

// Run publishes queued events and delivers events from other instances
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	go r.publishLoop(ctx)
	return r.subscribeWithReconnect(ctx)
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			data, err := json.Marshal(msg)
			if err != nil {
				r.logger.Error("Failed to marshal relay event", zap.Error(err))
				continue
			}
			if err := r.client.Publish(ctx, relayChannel, data).Err(); err != nil {
				r.logger.Warn("Failed to publish relay event",
					zap.String("type", msg.Event.Type),
					zap.Error(err))
			}
		}
	}
}

// subscribeWithReconnect wraps subscribe with reconnection and exponential backoff
func (r *RedisRelay) subscribeWithReconnect(ctx context.Context) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warn("Push relay subscription disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (r *RedisRelay) subscribe(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", relayChannel, err)
	}
	r.logger.Info("Push relay subscribed", zap.String("channel", relayChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

// deliver hands a remote event to local subscribers. Events from this
// instance are skipped since they were delivered locally already.
func (r *RedisRelay) deliver(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("Failed to unmarshal relay event", zap.Error(err))
		return
	}
	if msg.InstanceID == r.instanceID {
		return
	}
	if msg.UserID != nil {
		r.bus.PublishLocal(*msg.UserID, msg.Event)
		return
	}
	r.bus.BroadcastLocal(msg.Event)
}
