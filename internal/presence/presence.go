// Package presence wraps the pub/sub broker behind a small capability
// interface. The broker is never a source of truth: when Redis is not
// configured or unreachable, the Noop implementation stands in and the rest
// of the app keeps working (online badges show offline, live pushes are
// skipped until clients resync over HTTP).
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker is everything the messaging and realtime features need from the
// pub/sub layer.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	SetOnline(ctx context.Context, userID int) error
	SetOffline(ctx context.Context, userID int) error
}

// OnlineKey is the ephemeral key marking a user as connected.
func OnlineKey(userID int) string {
	return fmt.Sprintf("user_online_%d", userID)
}

// UserChannel is the pub/sub channel carrying live updates for one user.
func UserChannel(userID int) string {
	return fmt.Sprintf("user_%d", userID)
}

// Online keys expire on their own so a crashed gateway can't leave users
// stuck "online" forever.
const onlineTTL = 5 * time.Minute

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) SetOnline(ctx context.Context, userID int) error {
	return r.client.Set(ctx, OnlineKey(userID), "1", onlineTTL).Err()
}

func (r *Redis) SetOffline(ctx context.Context, userID int) error {
	return r.client.Del(ctx, OnlineKey(userID)).Err()
}

// Noop is the stand-in used when no broker is available.
type Noop struct{}

func (Noop) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (Noop) Exists(ctx context.Context, key string) (bool, error)              { return false, nil }
func (Noop) SetOnline(ctx context.Context, userID int) error                   { return nil }
func (Noop) SetOffline(ctx context.Context, userID int) error                  { return nil }
