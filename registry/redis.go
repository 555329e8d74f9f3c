package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/toolroute/toolroute/core"
)

// RedisSource provides a Redis-backed RegistrySource so the executor
// catalog survives process restarts and can be shared across instances.
type RedisSource struct {
	client    *redis.Client
	namespace string
	logger    core.Logger
}

// NewRedisSource creates a Redis registry source.
func NewRedisSource(redisURL, namespace string) (*RedisSource, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", core.ErrInvalidConfiguration)
	}

	// Production-grade connection settings
	opt.PoolSize = 10
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.MinRetryBackoff = time.Millisecond * 100
	opt.MaxRetryBackoff = time.Second * 1
	opt.DialTimeout = time.Second * 5
	opt.ReadTimeout = time.Second * 5
	opt.WriteTimeout = time.Second * 5
	opt.PoolTimeout = time.Second * 10

	client := redis.NewClient(opt)

	// Connection verification with retry
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			break
		}
		if i < 2 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis after retries: %w", core.ErrConnectionFailed)
	}

	return &RedisSource{
		client:    client,
		namespace: namespace,
		logger:    &core.NoOpLogger{},
	}, nil
}

// SetLogger sets the logger provider.
func (s *RedisSource) SetLogger(logger core.Logger) {
	if logger == nil {
		s.logger = &core.NoOpLogger{}
	} else {
		s.logger = logger
	}
}

func (s *RedisSource) executorKey(id string) string {
	return fmt.Sprintf("%s:executors:%s", s.namespace, id)
}

func (s *RedisSource) indexKey() string {
	return fmt.Sprintf("%s:executors", s.namespace)
}

// Append stores an executor descriptor and updates the id and category
// indexes atomically. Registry entries do not expire.
func (s *RedisSource) Append(ctx context.Context, d *core.ExecutorDescriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		s.logger.Error("Failed to marshal executor descriptor", map[string]interface{}{
			"operation":   "redis_append",
			"executor_id": d.ID,
			"error":       err.Error(),
		})
		return fmt.Errorf("failed to marshal descriptor %s: %w", d.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.executorKey(d.ID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), d.ID)
	for cat := range d.Affinities {
		pipe.SAdd(ctx, fmt.Sprintf("%s:categories:%s", s.namespace, cat), d.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to store executor atomically", map[string]interface{}{
			"operation":   "redis_append",
			"executor_id": d.ID,
			"error":       err.Error(),
		})
		return fmt.Errorf("failed to store executor %s: %w", d.ID, err)
	}

	s.logger.Debug("Executor stored", map[string]interface{}{
		"operation":   "redis_append",
		"executor_id": d.ID,
	})
	return nil
}

// ListActive returns all stored executors that are currently active.
// Entries that fail to decode are skipped with a warning rather than
// failing the whole listing.
func (s *RedisSource) ListActive(ctx context.Context) ([]*core.ExecutorDescriptor, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executor ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.executorKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executors: %w", err)
	}

	out := make([]*core.ExecutorDescriptor, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // expired or missing entry
		}
		var d core.ExecutorDescriptor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			s.logger.Warn("Skipping undecodable executor entry", map[string]interface{}{
				"operation":   "redis_list",
				"executor_id": ids[i],
				"error":       err.Error(),
			})
			continue
		}
		if !d.Active {
			continue
		}
		out = append(out, &d)
	}
	return out, nil
}

// Close releases the Redis connection pool.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
