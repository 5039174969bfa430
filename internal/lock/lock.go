// Package lock keeps two monitor runs from overlapping, using a Redis key.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/regwatch/internal/config"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
)

const (
	// DefaultKey is the Redis key guarding monitor runs.
	DefaultKey = "regwatch:run-lock"
	// DefaultTTL bounds how long a crashed run can block the next one.
	DefaultTTL = 30 * time.Minute

	connectionTimeout = 5 * time.Second
	releaseTimeout    = 5 * time.Second
)

var (
	// ErrLocked is returned when another run holds the lock.
	ErrLocked = errors.New("another run holds the lock")
	// ErrEmptyAddress is returned when Redis address is not configured.
	ErrEmptyAddress = errors.New("redis address is required")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RunLock is a single-holder lock with a TTL. It implements monitor.Locker.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    logger.Logger
}

// New creates a RunLock on key. Zero values fall back to the defaults.
func New(client *redis.Client, key string, ttl time.Duration, log logger.Logger) *RunLock {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RunLock{client: client, key: key, ttl: ttl, log: log}
}

// Acquire takes the lock without waiting. The returned release deletes the
// key only while this holder's token is still stored.
func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return func() {}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return func() {}, ErrLocked
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		n, relErr := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Int()
		if relErr != nil {
			l.log.Warn("Failed to release run lock", logger.String("key", l.key), logger.Error(relErr))
			return
		}
		if n == 0 {
			l.log.Warn("Run lock expired before release", logger.String("key", l.key))
		}
	}
	return release, nil
}
