package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it is still held by the same token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSyncLock keeps two coordinators from syncing the same source window at the same time.
type RedisSyncLock struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

func NewRedisSyncLock(client *redis.Client, ttl time.Duration) *RedisSyncLock {
	return &RedisSyncLock{
		client:    client,
		ttl:       ttl,
		keyPrefix: "returns:sync:",
	}
}

// Acquire takes the lock for key. ok is false when another holder owns it.
func (l *RedisSyncLock) Acquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	fullKey := l.keyPrefix + key

	ok, err = l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sync lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}
	return release, true, nil
}
