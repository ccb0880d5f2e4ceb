package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis pub/sub channel shared by every console process.
const DefaultChannel = "rh:identity"

const (
	kindIdentity = "identity"
	kindRefresh  = "refresh"
)

type relayMessage struct {
	Kind        string `json:"kind"`
	Origin      string `json:"origin"`
	Event       *Event `json:"event,omitempty"`
	PrincipalID string `json:"principal_id,omitempty"`
}

// RefreshFunc re-fetches the grants of every workspace owned by principalID.
type RefreshFunc func(ctx context.Context, principalID string) error

// RedisRelay fans identity events out to every process through redis pub/sub
// and re-publishes remote events into the local Hub.
type RedisRelay struct {
	client    *redis.Client
	hub       *Hub
	channel   string
	origin    string
	logger    *slog.Logger
	onRefresh RefreshFunc
}

// NewRedisRelay constructs a relay bound to hub. A nil hub is allowed for
// publish-only use.
func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisRelay{
		client:  client,
		hub:     hub,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// WithChannel overrides the pub/sub channel.
func (r *RedisRelay) WithChannel(channel string) *RedisRelay {
	if channel != "" {
		r.channel = channel
	}
	return r
}

// OnRefresh installs the handler for refresh broadcasts.
func (r *RedisRelay) OnRefresh(fn RefreshFunc) {
	r.onRefresh = fn
}

// Subscribe registers fn on the local hub.
func (r *RedisRelay) Subscribe(fn func(Event)) func() {
	if r.hub == nil {
		return func() {}
	}
	return r.hub.Subscribe(fn)
}

// Publish delivers ev locally first, then to the other processes.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	if r.hub != nil {
		if err := r.hub.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return r.send(ctx, relayMessage{Kind: kindIdentity, Event: &ev})
}

// BroadcastRefresh asks every process to refresh the grants of principalID,
// including this one.
func (r *RedisRelay) BroadcastRefresh(ctx context.Context, principalID string) error {
	if r.onRefresh != nil {
		if err := r.onRefresh(ctx, principalID); err != nil {
			r.logger.Warn("local refresh", slog.String("principal", principalID), slog.Any("error", err))
		}
	}
	return r.send(ctx, relayMessage{Kind: kindRefresh, PrincipalID: principalID})
}

func (r *RedisRelay) send(ctx context.Context, msg relayMessage) error {
	msg.Origin = r.origin
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("identity: encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("identity: publish: %w", err)
	}
	return nil
}

// Listen subscribes to the relay channel and returns once the subscription is
// confirmed. Messages are consumed on a background goroutine until ctx ends.
func (r *RedisRelay) Listen(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("identity: subscribe %s: %w", r.channel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.dispatch(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisRelay) dispatch(ctx context.Context, payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("decode relay message", slog.Any("error", err))
		return
	}
	if msg.Origin == r.origin {
		return
	}
	switch msg.Kind {
	case kindIdentity:
		if msg.Event == nil || r.hub == nil {
			return
		}
		_ = r.hub.Publish(ctx, *msg.Event)
	case kindRefresh:
		if r.onRefresh == nil || msg.PrincipalID == "" {
			return
		}
		if err := r.onRefresh(ctx, msg.PrincipalID); err != nil {
			r.logger.Warn("relayed refresh", slog.String("principal", msg.PrincipalID), slog.Any("error", err))
		}
	default:
		r.logger.Debug("ignore relay message", slog.String("kind", msg.Kind))
	}
}

var (
	_ Source    = (*RedisRelay)(nil)
	_ Publisher = (*RedisRelay)(nil)
)
