// Package redisbroker bridges the notify.Broker interface over Redis pub/sub
// so several application processes can share one room space. Local
// subscriptions still go through an in-process hub; publishes travel through
// Redis and come back to every process, including this one.
package redisbroker

import (
	"context"
	"encoding/json"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trackline/backend/notify"
)

const channelPrefix = "notify:"

type envelope struct {
	Room  string       `json:"room"`
	Event notify.Event `json:"event"`
}

type Broker struct {
	client *redislib.Client
	local  *notify.Hub
	pubsub *redislib.PubSub
	logger *zap.Logger
	cancel context.CancelFunc
}

// New starts the Redis-backed broker. The local hub handles fan-out to this
// process's subscribers; the pattern subscription feeds it events published
// anywhere.
func New(client *redislib.Client, local *notify.Hub, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		client: client,
		local:  local,
		pubsub: client.PSubscribe(ctx, channelPrefix+"*"),
		logger: logger,
		cancel: cancel,
	}
	go b.receive(ctx)
	return b
}

func (b *Broker) Subscribe(room, subscriberID string, fn notify.HandlerFunc) {
	b.local.Subscribe(room, subscriberID, fn)
}

func (b *Broker) Unsubscribe(room, subscriberID string) {
	b.local.Unsubscribe(room, subscriberID)
}

func (b *Broker) Publish(ctx context.Context, room string, event notify.Event) error {
	payload, err := json.Marshal(envelope{Room: room, Event: event})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+room, payload).Err()
}

func (b *Broker) Close() error {
	b.cancel()
	if err := b.pubsub.Close(); err != nil {
		return err
	}
	return b.local.Close()
}

func (b *Broker) receive(ctx context.Context) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("malformed broker message", zap.Error(err))
				continue
			}
			if err := b.local.Publish(ctx, env.Room, env.Event); err != nil {
				b.logger.Warn("local dispatch failed", zap.String("room", env.Room), zap.Error(err))
			}
		}
	}
}
