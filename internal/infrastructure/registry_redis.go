package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds the caller's session ID
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript resets the key's TTL only if it still holds the caller's session ID
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisRegistry is a domain.SessionRegistry shared across server instances.
// Registrations expire after the configured TTL so a crashed instance
// cannot lock a requester out forever. The coordinator refreshes the TTL on
// every stage change, so only a single stage longer than the TTL can lose
// the slot.
type RedisRegistry struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisRegistry connects to redis and verifies the connection
func NewRedisRegistry(ctx context.Context, config *domain.SessionConfig, logger *zap.Logger) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.RedisAddr, err)
	}

	logger.Info("Connected to redis session registry", zap.String("addr", config.RedisAddr))
	return NewRedisRegistryWithClient(client, config.KeyPrefix, config.TTL, logger), nil
}

// NewRedisRegistryWithClient wraps an existing client
func NewRedisRegistryWithClient(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisRegistry {
	return &RedisRegistry{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (r *RedisRegistry) key(requesterID string) string {
	return r.keyPrefix + requesterID
}

// Acquire sets the requester key with NX so only one session can hold it
func (r *RedisRegistry) Acquire(ctx context.Context, requesterID, sessionID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(requesterID), sessionID, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire session slot: %w", err)
	}
	return ok, nil
}

// Refresh resets the TTL of the requester key if sessionID still owns it
func (r *RedisRegistry) Refresh(ctx context.Context, requesterID, sessionID string) (bool, error) {
	refreshed, err := refreshScript.Run(ctx, r.client, []string{r.key(requesterID)}, sessionID, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh session slot: %w", err)
	}
	return refreshed == 1, nil
}

// Release deletes the requester key if sessionID still owns it
func (r *RedisRegistry) Release(ctx context.Context, requesterID, sessionID string) error {
	deleted, err := releaseScript.Run(ctx, r.client, []string{r.key(requesterID)}, sessionID).Int()
	if err != nil {
		return fmt.Errorf("failed to release session slot: %w", err)
	}
	if deleted == 0 {
		r.logger.Debug("Session slot already released or taken over",
			zap.String("requester_id", requesterID),
			zap.String("session_id", sessionID))
	}
	return nil
}

// Close closes the redis client
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
