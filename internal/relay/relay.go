// Package relay fans room events out to every server instance through Redis pub/sub.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultChannel = "chat:room-events"

const (
	kindBroadcast = "broadcast"
	kindEvict     = "evict"
)

// Local 是本进程内真正持有连接的一端，通常是 ws.Hub。
type Local interface {
	Broadcast(roomID uint, payload []byte)
	Evict(roomID, userID uint)
}

type envelope struct {
	Kind    string          `json:"kind"`
	RoomID  uint            `json:"room_id"`
	UserID  uint            `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Redis 实现 service.Notifier：事件先发布到 Redis，再由每个实例的 Run 投递给本地 Hub。
type Redis struct {
	client  *redis.Client
	channel string
	local   Local
}

func New(url, channel string, local Local) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("relay: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("relay: ping: %w", err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: c, channel: channel, local: local}, nil
}

func (r *Redis) Broadcast(roomID uint, payload []byte) {
	if err := r.publish(envelope{Kind: kindBroadcast, RoomID: roomID, Payload: payload}); err != nil {
		log.Warn().Err(err).Uint("room_id", roomID).Msg("relay: publish broadcast, delivering locally")
		r.local.Broadcast(roomID, payload)
	}
}

func (r *Redis) Evict(roomID, userID uint) {
	if err := r.publish(envelope{Kind: kindEvict, RoomID: roomID, UserID: userID}); err != nil {
		log.Warn().Err(err).Uint("room_id", roomID).Msg("relay: publish evict, evicting locally")
		r.local.Evict(roomID, userID)
	}
}

func (r *Redis) publish(env envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Publish(ctx, r.channel, b).Err()
}

// Run 订阅频道并把事件投递给本地 Hub，直到 ctx 结束。
func (r *Redis) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
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
			if err := r.dispatch([]byte(msg.Payload)); err != nil {
				log.Warn().Err(err).Msg("relay: dispatch")
			}
		}
	}
}

func (r *Redis) dispatch(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("relay: decode: %w", err)
	}
	switch env.Kind {
	case kindBroadcast:
		r.local.Broadcast(env.RoomID, env.Payload)
	case kindEvict:
		r.local.Evict(env.RoomID, env.UserID)
	default:
		return fmt.Errorf("relay: unknown kind %q", env.Kind)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
