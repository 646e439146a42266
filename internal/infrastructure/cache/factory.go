package cache

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/config"
)

// CloseableRunLock is a run lock holding a connection
type CloseableRunLock interface {
	migration.RunLock
	io.Closer
}

// RunLockFactory creates run locks based on configuration
type RunLockFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockFactoryOption is a functional option for configuring the factory
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory lock
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a new factory
func NewRunLockFactory(cfg config.RedisConfig, ttl time.Duration, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateLock returns a Redis lock when Redis is enabled and reachable,
// otherwise an in-memory lock if fallback is allowed.
func (f *RunLockFactory) CreateLock() (CloseableRunLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Debug("Redis disabled, using in-memory run lock")
		return NewInMemoryRunLock(f.ttl), nil
	}

	lock, err := NewRedisRunLock(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.ttl)
	if err == nil {
		f.logger.Info("using Redis run lock", zap.String("addr", f.redisConfig.RedisAddr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for run lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Runs started from other hosts are not excluded.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(f.ttl), nil
}
