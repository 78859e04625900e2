package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leaftrace/anomalyd/internal/logging"
)

// RedisPublisher relays events over a Redis pub/sub channel so that every
// replica's websocket clients see anomalies detected anywhere.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	origin  string
	timeout time.Duration
	wg      sync.WaitGroup
}

const redisPublishTimeout = 2 * time.Second

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(ctx context.Context, addr, password string, db int, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisPublisher(client, channel), nil
}

func newRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		timeout: redisPublishTimeout,
	}
}

// Origin returns the identifier stamped on events published by this replica
func (p *RedisPublisher) Origin() string {
	return p.origin
}

// Publish implements Publisher. The round trip happens in the background
// with its own deadline so callers never wait on Redis.
func (p *RedisPublisher) Publish(_ context.Context, evt Event) {
	if evt.Origin == "" {
		evt.Origin = p.origin
	}
	if evt.Origin != p.origin {
		// Relayed from another replica; publishing again would loop.
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		logging.Warnf("Failed to marshal event %s for redis: %v", evt.Type, err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
			logging.Warnf("Failed to publish event %s for anomaly %s to redis: %v", evt.Type, evt.AnomalyID, err)
		}
	}()
}

// Relay subscribes to the channel and forwards events produced by other
// replicas to local. It blocks until ctx is cancelled.
func (p *RedisPublisher) Relay(ctx context.Context, local Publisher) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}
	logging.Infof("Relaying anomaly events from redis channel %s", p.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := decodeEvent(msg.Payload)
			if err != nil {
				logging.Warnf("Dropping malformed event from redis: %v", err)
				continue
			}
			if evt.Origin == p.origin {
				continue
			}
			local.Publish(ctx, evt)
		}
	}
}

// Close waits for in-flight publishes and closes the Redis connection
func (p *RedisPublisher) Close() error {
	p.wg.Wait()
	return p.client.Close()
}

func decodeEvent(payload string) (Event, error) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return Event{}, err
	}
	if evt.Type == "" || evt.AnomalyID == "" {
		return Event{}, fmt.Errorf("event missing type or anomaly id")
	}
	return evt, nil
}
