// Package notify carries workout change notifications from the CRM's
// workout editor to the TV engine over Redis pub/sub. A message carries no
// payload guarantee beyond "something changed" — consumers always reload
// from the detail store rather than trusting the message body.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notifier subscribes to per-workout change channels.
type Notifier interface {
	Subscribe(ctx context.Context, workoutID uuid.UUID) Subscription
}

// Subscription is one open per-workout subscription. Close is idempotent.
type Subscription interface {
	Events() <-chan struct{}
	Close()
}

// RedisNotifier implements Notifier over Redis pub/sub, one channel per
// workout id.
type RedisNotifier struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisNotifier(client *redis.Client, log *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, log: log}
}

// Channel returns the pub/sub channel name for a workout.
func Channel(workoutID uuid.UUID) string {
	return "workout:" + workoutID.String() + ":changes"
}

// Publish announces a mutation of the workout's exercises or sets. The CRM
// side calls this after every write; the body is advisory only.
func (n *RedisNotifier) Publish(ctx context.Context, workoutID uuid.UUID, what string) error {
	return n.client.Publish(ctx, Channel(workoutID), what).Err()
}

// Subscribe opens a subscription scoped to one workout id. Transport-level
// reconnects are delegated to go-redis; the engine re-subscribes fresh on
// every workout-id change instead of retrying here.
func (n *RedisNotifier) Subscribe(ctx context.Context, workoutID uuid.UUID) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := n.client.Subscribe(ctx, Channel(workoutID))

	sub := &redisSubscription{
		events: make(chan struct{}, 1),
		cancel: cancel,
		pubsub: pubsub,
	}

	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			n.log.Debug("workout change notification", "channel", msg.Channel)
			// Coalesce: one pending event is enough, the reload reads
			// everything from scratch anyway.
			select {
			case sub.events <- struct{}{}:
			default:
			}
		}
	}()

	return sub
}

type redisSubscription struct {
	events    chan struct{}
	cancel    context.CancelFunc
	pubsub    *redis.PubSub
	closeOnce sync.Once
}

func (s *redisSubscription) Events() <-chan struct{} {
	return s.events
}

func (s *redisSubscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
}
