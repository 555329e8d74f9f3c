package learning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/toolroute/toolroute/core"
)

// casRetries bounds optimistic-concurrency retries before a write
// conflict is surfaced. Conflicts are never dropped silently.
const casRetries = 5

// readTimeout bounds scorer-path reads. Weight reads are allowed to be
// slightly stale, so a failed read degrades to the neutral weight
// instead of failing the request.
const readTimeout = 2 * time.Second

// RedisStore is the durable Store implementation. Weights and patterns
// are the only state that must survive a restart to preserve learning,
// so this is the store to use in production. Writes use WATCH-based
// compare-and-swap; concurrent recorder instances never lose updates.
type RedisStore struct {
	client    *redis.Client
	namespace string
	logger    core.Logger
}

// NewRedisStore creates a Redis-backed learned-state store.
func NewRedisStore(redisURL, namespace string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", core.ErrInvalidConfiguration)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = time.Second * 5
	opt.ReadTimeout = time.Second * 5
	opt.WriteTimeout = time.Second * 5

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", core.ErrConnectionFailed)
	}

	return &RedisStore{
		client:    client,
		namespace: namespace,
		logger:    &core.NoOpLogger{},
	}, nil
}

// SetLogger sets the logger provider.
func (s *RedisStore) SetLogger(logger core.Logger) {
	if logger == nil {
		s.logger = &core.NoOpLogger{}
	} else {
		s.logger = logger
	}
}

func (s *RedisStore) weightKey(id string) string {
	return fmt.Sprintf("%s:weight:%s", s.namespace, id)
}

func (s *RedisStore) weightIndexKey() string {
	return fmt.Sprintf("%s:weight_ids", s.namespace)
}

func (s *RedisStore) patternKey(key string) string {
	return fmt.Sprintf("%s:pattern:%s", s.namespace, key)
}

func (s *RedisStore) patternIndexKey(primary string) string {
	return fmt.Sprintf("%s:pattern_index:%s", s.namespace, primary)
}

func (s *RedisStore) statsKey(id string) string {
	return fmt.Sprintf("%s:stats:%s", s.namespace, id)
}

func (s *RedisStore) recordsKey() string {
	return fmt.Sprintf("%s:records", s.namespace)
}

// Weight returns the learned multiplier for an executor. Reads are
// eventually consistent: on any error the neutral 1.0 is returned so a
// Redis hiccup degrades scoring instead of failing requests.
func (s *RedisStore) Weight(executorID string) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.weightKey(executorID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("Weight read failed, using neutral", map[string]interface{}{
				"operation":   "weight_read",
				"executor_id": executorID,
				"error":       err.Error(),
			})
		}
		return 1.0
	}
	w, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 1.0
	}
	return w
}

// PatternBoost checks the executor's pattern index for a well-sampled,
// high-success bucket matching the request's features.
func (s *RedisStore) PatternBoost(executorID string, bucket core.FeatureBucket) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	keys, err := s.client.SMembers(ctx, s.patternIndexKey(executorID)).Result()
	if err != nil {
		return 1.0
	}

	bucketSuffix := ":" + bucket.Key()
	boost := 1.0
	for _, key := range keys {
		if !strings.HasSuffix(key, bucketSuffix) {
			continue
		}
		fields, err := s.client.HGetAll(ctx, s.patternKey(key)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		stats := parsePatternStats(fields)
		if stats.Count < minPatternSamples {
			continue
		}
		if rate := stats.SuccessRate(); rate > patternSuccessFloor {
			candidate := 1.0 + patternBoostRate*rate
			if candidate > boost {
				boost = candidate
			}
		}
	}
	return boost
}

// ApplyWeight transforms one executor's weight under WATCH so concurrent
// updates retry instead of overwriting each other.
func (s *RedisStore) ApplyWeight(ctx context.Context, executorID string, update func(float64) float64) error {
	key := s.weightKey(executorID)

	txf := func(tx *redis.Tx) error {
		current := 1.0
		val, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if parsed, perr := strconv.ParseFloat(val, 64); perr == nil {
				current = parsed
			}
		}
		next := update(current)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, strconv.FormatFloat(next, 'f', -1, 64), 0)
			pipe.SAdd(ctx, s.weightIndexKey(), executorID)
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to update weight for %s: %w", executorID, err)
		}
		// Contended key, retry the optimistic transaction
	}

	s.logger.Warn("Weight update conflict not resolved", map[string]interface{}{
		"operation":   "weight_update",
		"executor_id": executorID,
		"retries":     casRetries,
	})
	return fmt.Errorf("weight update for %s: %w", executorID, core.ErrWeightConflict)
}

// DecayAll applies one decay step to every known weight.
func (s *RedisStore) DecayAll(ctx context.Context, decay func(float64) float64) error {
	ids, err := s.client.SMembers(ctx, s.weightIndexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list weight ids: %w", err)
	}
	for _, id := range ids {
		if err := s.ApplyWeight(ctx, id, decay); err != nil {
			return err
		}
	}
	return nil
}

// RecordPattern folds one sample into a pattern bucket under WATCH.
func (s *RedisStore) RecordPattern(ctx context.Context, key PatternKey, success bool, score float64) error {
	keyStr := key.String()
	redisKey := s.patternKey(keyStr)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, redisKey).Result()
		if err != nil {
			return err
		}
		stats := parsePatternStats(fields)

		stats.Count++
		if success {
			stats.SuccessCount++
		}
		stats.AvgScore += (score - stats.AvgScore) / float64(stats.Count)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey,
				"count", strconv.FormatInt(stats.Count, 10),
				"success_count", strconv.FormatInt(stats.SuccessCount, 10),
				"avg_score", strconv.FormatFloat(stats.AvgScore, 'f', -1, 64),
			)
			pipe.SAdd(ctx, s.patternIndexKey(key.Primary), keyStr)
			pipe.Incr(ctx, s.recordsKey())
			return nil
		})
		return err
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to record pattern %s: %w", keyStr, err)
		}
	}
	return fmt.Errorf("pattern record %s: %w", keyStr, core.ErrWeightConflict)
}

// RecordExecutorOutcome updates per-executor totals. Plain increments
// are already atomic in Redis, so no WATCH is needed here.
func (s *RedisStore) RecordExecutorOutcome(ctx context.Context, executorID string, success bool, score float64) error {
	key := s.statsKey(executorID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	if success {
		pipe.HIncrBy(ctx, key, "success", 1)
	}
	pipe.HIncrByFloat(ctx, key, "score_sum", score)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", executorID, err)
	}
	return nil
}

// Stats returns the aggregate learned-state view.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	ids, err := s.client.SMembers(ctx, s.weightIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list weight ids: %w", err)
	}

	out := &Stats{
		Weights:   make(map[string]float64, len(ids)),
		Executors: make(map[string]*ExecutorStats, len(ids)),
	}

	records, err := s.client.Get(ctx, s.recordsKey()).Int64()
	if err == nil {
		out.TotalRecords = records
	}

	for _, id := range ids {
		val, err := s.client.Get(ctx, s.weightKey(id)).Result()
		if err == nil {
			if w, perr := strconv.ParseFloat(val, 64); perr == nil {
				out.Weights[id] = w
			}
		}

		fields, err := s.client.HGetAll(ctx, s.statsKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		es := &ExecutorStats{}
		es.Total, _ = strconv.ParseInt(fields["total"], 10, 64)
		es.Success, _ = strconv.ParseInt(fields["success"], 10, 64)
		if sum, perr := strconv.ParseFloat(fields["score_sum"], 64); perr == nil && es.Total > 0 {
			es.AvgScore = sum / float64(es.Total)
		}
		out.Executors[id] = es

		if count, err := s.client.SCard(ctx, s.patternIndexKey(id)).Result(); err == nil {
			out.PatternCount += int(count)
		}
	}
	return out, nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parsePatternStats(fields map[string]string) PatternStats {
	var stats PatternStats
	stats.Count, _ = strconv.ParseInt(fields["count"], 10, 64)
	stats.SuccessCount, _ = strconv.ParseInt(fields["success_count"], 10, 64)
	stats.AvgScore, _ = strconv.ParseFloat(fields["avg_score"], 64)
	return stats
}
