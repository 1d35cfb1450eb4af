/*
Package presence tracks which identities currently hold at least one open connection.

The store keeps a per-identity connection count but exposes set-like
cardinality: an identity is counted once no matter how many sockets it has
open, and closing one of two connections does not erase presence for the one
still open. The package provides a Redis-backed store shared across server
processes and an in-memory store for single-node deployments and tests.
Both satisfy chat.PresenceStore.
*/
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveUsersKey is the Redis hash mapping identity IDs to their open-connection counts.
const ActiveUsersKey = "chat:active_users"

// removeScript decrements an identity's connection count and clears the field
// once it reaches zero, atomically, so concurrent removes across processes
// cannot leave a stale entry.
var removeScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if v <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return v
`)

// Redis is a presence store backed by a shared Redis hash, safe for concurrent
// use from many connection handlers across multiple server processes.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at addr and verifies the connection
// with a ping before returning the store.
func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	return &Redis{client: client}, nil
}

// Add registers one more open connection for the identity.
func (r *Redis) Add(ctx context.Context, identityID string) error {
	return r.client.HIncrBy(ctx, ActiveUsersKey, identityID, 1).Err()
}

// Remove unregisters one connection for the identity. The identity stays
// present while other connections remain; removing an absent identity is a no-op.
func (r *Redis) Remove(ctx context.Context, identityID string) error {
	return removeScript.Run(ctx, r.client, []string{ActiveUsersKey}, identityID).Err()
}

// Count returns the number of distinct identities with at least one open connection.
func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, ActiveUsersKey).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
