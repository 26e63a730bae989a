package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisEnvelope is what travels over the shared pub/sub channel.
type redisEnvelope struct {
	Origin           string          `json:"origin"`
	Topic            string          `json:"topic"`
	ExcludePrincipal string          `json:"exclude,omitempty"`
	UnlessSubscribed string          `json:"unlessSubscribed,omitempty"`
	Frame            json.RawMessage `json:"frame"`
}

// RedisFanout mirrors publishes across gateway instances through one Redis
// pub/sub channel. Local subscribers are served directly; envelopes that come
// back from this instance are dropped on receipt.
type RedisFanout struct {
	local    *LocalFanout
	client   *redis.Client
	channel  string
	instance string
	logger   *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisFanout builds a Redis-backed fan-out. Run must be started to
// receive publishes from other instances.
func NewRedisFanout(client *redis.Client, channel string, logger *zap.Logger) *RedisFanout {
	return &RedisFanout{
		local:    NewLocalFanout(),
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Subscribe adds a local subscriber.
func (f *RedisFanout) Subscribe(topic string, sub Subscriber) { f.local.Subscribe(topic, sub) }

// Unsubscribe removes a local subscriber.
func (f *RedisFanout) Unsubscribe(topic, subscriberID string) { f.local.Unsubscribe(topic, subscriberID) }

// Publish delivers locally, then forwards to the other instances.
func (f *RedisFanout) Publish(ctx context.Context, topic string, frame []byte, opts PublishOptions) error {
	if err := f.local.Publish(ctx, topic, frame, opts); err != nil {
		return err
	}
	payload, err := encodeEnvelope(redisEnvelope{
		Origin:           f.instance,
		Topic:            topic,
		ExcludePrincipal: opts.ExcludePrincipal,
		UnlessSubscribed: opts.UnlessSubscribedTo,
		Frame:            frame,
	})
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the shared channel and delivers remote publishes until
// ctx is cancelled or Close is called.
func (f *RedisFanout) Run(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	f.mu.Lock()
	f.pubsub = pubsub
	f.mu.Unlock()
	if _, err := pubsub.Receive(ctx); err != nil {
		f.releasePubSub(pubsub)
		return fmt.Errorf("redis subscribe %s: %w", f.channel, err)
	}
	defer f.releasePubSub(pubsub)
	f.logger.Info("chat fan-out subscribed", zap.String("channel", f.channel), zap.String("instance", f.instance))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handleRemote(ctx, msg.Payload)
		}
	}
}

func (f *RedisFanout) handleRemote(ctx context.Context, payload string) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		f.logger.Warn("dropping malformed fan-out envelope", zap.Error(err))
		return
	}
	if env.Origin == f.instance {
		return
	}
	_ = f.local.Publish(ctx, env.Topic, env.Frame, PublishOptions{
		ExcludePrincipal:   env.ExcludePrincipal,
		UnlessSubscribedTo: env.UnlessSubscribed,
	})
}

// releasePubSub closes ps and forgets it if it is still the active
// subscription.
func (f *RedisFanout) releasePubSub(ps *redis.PubSub) {
	f.mu.Lock()
	if f.pubsub == ps {
		f.pubsub = nil
	}
	f.mu.Unlock()
	_ = ps.Close()
}

// Close stops the subscription and drops local subscribers.
func (f *RedisFanout) Close() error {
	var err error
	f.mu.Lock()
	if f.pubsub != nil {
		err = f.pubsub.Close()
		f.pubsub = nil
	}
	f.mu.Unlock()
	return errors.Join(err, f.local.Close())
}

func encodeEnvelope(env redisEnvelope) (string, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEnvelope(payload string) (redisEnvelope, error) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, err
	}
	if env.Topic == "" || len(env.Frame) == 0 {
		return env, errors.New("envelope missing topic or frame")
	}
	return env, nil
}
