// Package publish writes the versioned run result and its trace to a
// shared Redis store under bounded TTLs, and provides the advisory
// run-level lock that keeps concurrent runs from interleaving.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ignitelab/ignite/internal/domain"
)

// ErrRunInProgress is returned when another run holds the strategy lock.
var ErrRunInProgress = errors.New("a run for this strategy is already in progress")

// Key layout, keyed by run strategy.
func resultKey(strategy string) string { return "contenders.latest:" + strategy }
func traceKey(strategy string) string  { return "contenders.trace:" + strategy }
func lockKey(strategy string) string   { return "contenders.lock:" + strategy }

// Store is the Redis-backed publish interface consumed by downstream
// readers. Results are written once per run; stale entries expire
// rather than persist.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store { return &Store{client: client} }

func Dial(addr string) *Store {
	return NewStore(redis.NewClient(&redis.Options{Addr: addr}))
}

// PublishResult writes the complete result contract under its TTL.
func (s *Store) PublishResult(ctx context.Context, strategy string, result *domain.ScanResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.client.Set(ctx, resultKey(strategy), payload, ttl).Err(); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	log.Info().Str("strategy", strategy).
		Str("status", string(result.Status)).
		Int("count", result.Count).
		Dur("ttl", ttl).
		Msg("run result published")
	return nil
}

// PublishTrace writes the companion per-stage trace under its own TTL.
func (s *Store) PublishTrace(ctx context.Context, strategy string, stats domain.PipelineStats, ttl time.Duration) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	if err := s.client.Set(ctx, traceKey(strategy), payload, ttl).Err(); err != nil {
		return fmt.Errorf("publish trace: %w", err)
	}
	return nil
}

// LatestResult reads back the current contract, if any.
func (s *Store) LatestResult(ctx context.Context, strategy string) (*domain.ScanResult, error) {
	payload, err := s.client.Get(ctx, resultKey(strategy)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var result domain.ScanResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// AcquireRunLock takes the TTL-bounded advisory lock for one strategy.
// A run exceeding the TTL is treated as failed and its lock becomes
// reclaimable on expiry. The returned release is token-checked so a
// timed-out run cannot release its successor's lock.
func (s *Store) AcquireRunLock(ctx context.Context, strategy string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKey(strategy), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	release := func() {
		// Best effort: expiry reclaims the lock if this fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, s.client, []string{lockKey(strategy)}, token).Err(); err != nil {
			log.Warn().Err(err).Str("strategy", strategy).Msg("run lock release failed")
		}
	}
	return release, nil
}

// Ping verifies store connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
