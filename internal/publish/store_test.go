package publish

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitelab/ignite/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func sampleResult() *domain.ScanResult {
	return &domain.ScanResult{
		Schema:    domain.SchemaVersion,
		Regime:    "regular",
		Status:    domain.StatusLive,
		Timestamp: time.Date(2025, time.March, 12, 14, 0, 0, 0, time.UTC),
		Items: []domain.CompositeCandidate{
			{Symbol: "ABVX", TotalScore: 82.5, Confidence: 0.74, ActionTag: domain.ActionTradeReady},
		},
		Count: 1,
	}
}

func TestPublishAndReadBack(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PublishResult(ctx, "explosive", sampleResult(), 5*time.Minute))

	got, err := store.LatestResult(ctx, "explosive")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.SchemaVersion, got.Schema)
	assert.Equal(t, "ABVX", got.Items[0].Symbol)
	assert.Equal(t, domain.ActionTradeReady, got.Items[0].ActionTag)

	ttl := mr.TTL("contenders.latest:explosive")
	assert.Equal(t, 5*time.Minute, ttl)
}

func TestResultExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PublishResult(ctx, "explosive", sampleResult(), 5*time.Minute))
	mr.FastForward(6 * time.Minute)

	got, err := store.LatestResult(ctx, "explosive")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestResultMissingIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.LatestResult(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStrategiesIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PublishResult(ctx, "explosive", sampleResult(), time.Minute))

	got, err := store.LatestResult(ctx, "swing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPublishTrace(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	stats := domain.PipelineStats{
		RunID:    "run-1",
		Universe: 12,
		Stages: map[string]domain.StageTrace{
			"hard_gate": {In: 10, Out: 4, Rejections: map[string]int{"spread_max": 6}},
		},
	}
	require.NoError(t, store.PublishTrace(ctx, "explosive", stats, 10*time.Minute))
	assert.True(t, mr.Exists("contenders.trace:explosive"))
	assert.Equal(t, 10*time.Minute, mr.TTL("contenders.trace:explosive"))
}

func TestRunLockExcludesConcurrentRuns(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	release, err := store.AcquireRunLock(ctx, "explosive", time.Minute)
	require.NoError(t, err)

	_, err = store.AcquireRunLock(ctx, "explosive", time.Minute)
	assert.ErrorIs(t, err, ErrRunInProgress)

	release()

	release2, err := store.AcquireRunLock(ctx, "explosive", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestRunLockExpiresWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.AcquireRunLock(ctx, "explosive", time.Minute)
	require.NoError(t, err)

	// A crashed run never releases; expiry reclaims the lock.
	mr.FastForward(2 * time.Minute)

	release, err := store.AcquireRunLock(ctx, "explosive", time.Minute)
	require.NoError(t, err)
	release()
}

func TestStaleReleaseCannotFreeSuccessorLock(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	release1, err := store.AcquireRunLock(ctx, "explosive", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute) // first holder timed out

	_, err = store.AcquireRunLock(ctx, "explosive", time.Minute)
	require.NoError(t, err)

	// The stale release is token-checked: the new holder keeps the lock.
	release1()
	_, err = store.AcquireRunLock(ctx, "explosive", time.Minute)
	assert.ErrorIs(t, err, ErrRunInProgress)
}
