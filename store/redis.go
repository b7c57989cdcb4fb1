package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRedisKey is the list key holding the ordered names.
const defaultRedisKey = "gibson:enum:names"

// RedisOptions configures the Redis connection for a RedisStore.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Key is the Redis list key holding the ordered name list.
	// Default: "gibson:enum:names"
	Key string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// Logger reports store resets. Default: slog.Default()
	Logger *slog.Logger
}

// RedisStore persists the ordered name list in a Redis list, element i
// mapping to id i+1. It is a drop-in alternative to FileStore for
// deployments where components share a Redis instance and the enum file
// would otherwise live on ephemeral disk.
//
// Rewrites replace the whole list in a single transactional pipeline, so
// concurrent readers of the key never observe a partial list.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisStore creates a Redis-backed enum store and verifies connectivity.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = defaultRedisKey
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		key:    opts.Key,
		logger: opts.Logger,
	}, nil
}

// Load reads the stored name list. A corrupt list (blank or duplicate
// entries) is reset to empty rather than surfaced, matching the file
// backend's self-healing behavior. Connection failures are returned as
// errors since they say nothing about the stored data.
func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	names, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read enum list: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	if err := validateNames(names); err != nil {
		s.logger.Warn("enum store corrupt, resetting", "key", s.key, "error", err)
		if err := s.Rewrite(ctx, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return names, nil
}

// Rewrite replaces the stored list with the given names in one
// transactional pipeline.
func (s *RedisStore) Rewrite(ctx context.Context, names []string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(names) > 0 {
		args := make([]interface{}, len(names))
		for i, name := range names {
			args[i] = name
		}
		pipe.RPush(ctx, s.key, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rewrite enum list: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
