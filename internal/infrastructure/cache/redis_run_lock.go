package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/erp/migrator/internal/domain/migration"
)

const defaultRunLockPrefix = "migrator:lock:"

// releaseScript deletes the key only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements migration.RunLock using Redis.
// It guards runs started from different hosts against the same store.
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRunLock connects to Redis and verifies the connection
func NewRedisRunLock(cfg RedisConfig, ttl time.Duration) (*RedisRunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockWithClient(client, "", ttl), nil
}

// NewRedisRunLockWithClient creates a lock with an existing Redis client
func NewRedisRunLockWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = defaultRunLockPrefix
	}
	return &RedisRunLock{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		tokens:    make(map[string]string),
	}
}

// Acquire takes the lock with SET NX and a TTL, so a crashed run frees it
// after the TTL.
func (l *RedisRunLock) Acquire(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", key, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release drops the lock if this instance still holds it
func (l *RedisRunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

var _ migration.RunLock = (*RedisRunLock)(nil)
