package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
	"github.com/ignitelab/ignite/internal/providers"
	"github.com/ignitelab/ignite/internal/telemetry"
)

var errRunHeld = errors.New("a run for this strategy is already in progress")

// regularHours is a Wednesday 11:00 New York (EDT), i.e. 15:00 UTC.
var regularHours = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

// overnightHours is 02:00 New York the same day.
var overnightHours = time.Date(2025, time.March, 12, 6, 0, 0, 0, time.UTC)

// fakeCollector serves canned responses and counts calls.
type fakeCollector struct {
	calls     atomic.Int64
	responses map[string][]providers.Response
	err       error
	block     bool // wait for ctx cancellation instead of answering
}

func (f *fakeCollector) Collect(ctx context.Context, symbol string) ([]providers.Response, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[symbol], nil
}

func (f *fakeCollector) HealthReport() map[string]providers.Health {
	return map[string]providers.Health{"fake": providers.Healthy}
}

// fakePublisher records publishes and hands out a working lock.
type fakePublisher struct {
	results  []*domain.ScanResult
	lockErr  error
	released atomic.Int64
}

func (f *fakePublisher) PublishResult(_ context.Context, _ string, result *domain.ScanResult, _ time.Duration) error {
	f.results = append(f.results, result)
	return nil
}

func (f *fakePublisher) PublishTrace(context.Context, string, domain.PipelineStats, time.Duration) error {
	return nil
}

func (f *fakePublisher) AcquireRunLock(context.Context, string, time.Duration) (func(), error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return func() { f.released.Add(1) }, nil
}

// passingResponses produces fresh multi-tier data that clears every
// default gate.
func passingResponses(symbol string, asOf time.Time) []providers.Response {
	return []providers.Response{
		{
			Provider: "rt", Tier: domain.TierRealtime, Kind: providers.KindQuote,
			Symbol: symbol, AsOf: asOf, IngestedAt: asOf, Confidence: 1.0,
			Fields: map[domain.FieldName]float64{
				domain.FieldPrice:          12.40,
				domain.FieldSessionVolume:  2_000_000,
				domain.FieldAvgVolume30d:   500_000,
				domain.FieldRelVolume30d:   4.0,
				domain.FieldVWAP:           12.10,
				domain.FieldSpreadBps:      25,
				domain.FieldValueTradedUSD: 24_000_000,
				domain.FieldATRPct:         0.05,
			},
		},
		{
			Provider: "reg", Tier: domain.TierRegulatory, Kind: providers.KindShortInterest,
			Symbol: symbol, AsOf: asOf.Add(-24 * time.Hour), IngestedAt: asOf, Confidence: 1.0,
			Fields: map[domain.FieldName]float64{
				domain.FieldShortInterestPct: 22,
				domain.FieldDaysToCover:      4.0,
				domain.FieldFloatRotationPct: 90,
			},
		},
		{
			Provider: "agg", Tier: domain.TierAggregator, Kind: providers.KindOptions,
			Symbol: symbol, AsOf: asOf.Add(-time.Hour), IngestedAt: asOf, Confidence: 1.0,
			Fields: map[domain.FieldName]float64{
				domain.FieldGammaPressure: 0.8,
				domain.FieldCallPutRatio:  2.6,
				domain.FieldOISkew:        0.7,
			},
		},
	}
}

func newTestRunner(t *testing.T, collector Collector, now time.Time, opts ...Option) *Runner {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	opts = append(opts, WithClock(func() time.Time { return now }))
	r, err := NewRunner(cfg, collector, telemetry.NewMetrics(), opts...)
	require.NoError(t, err)
	return r
}

func TestOvernightSuspendsWithoutProviderCalls(t *testing.T) {
	collector := &fakeCollector{}
	r := newTestRunner(t, collector, overnightHours)

	result, err := r.Run(context.Background(), []string{"ABVX", "BKSY"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusClosed, result.Status)
	assert.Equal(t, domain.ReasonOvernight, result.Reason)
	assert.Equal(t, "overnight", result.Regime)
	assert.Empty(t, result.Items)
	assert.Empty(t, result.ExplosiveTop)
	assert.Equal(t, domain.SchemaVersion, result.Schema)

	// Suspension means suspension: no adapter was consulted.
	assert.Zero(t, collector.calls.Load())
}

func TestLiveRunProducesRankedCandidates(t *testing.T) {
	collector := &fakeCollector{responses: map[string][]providers.Response{
		"ABVX": passingResponses("ABVX", regularHours),
		"BKSY": passingResponses("BKSY", regularHours),
	}}
	r := newTestRunner(t, collector, regularHours)

	result, err := r.Run(context.Background(), []string{"ABVX", "BKSY"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLive, result.Status)
	assert.Equal(t, "regular", result.Regime)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Count)

	for _, item := range result.Items {
		assert.Greater(t, item.TotalScore, 0.0)
		assert.Greater(t, item.Confidence, 0.0)
		assert.NotEmpty(t, item.ActionTag)
		assert.Len(t, item.Detectors, 5)
	}

	// Identical inputs tie on score and confidence: symbol order decides.
	assert.Equal(t, "ABVX", result.Items[0].Symbol)
	assert.Equal(t, "BKSY", result.Items[1].Symbol)

	stats := result.PipelineStats
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.Universe)
	assert.Equal(t, 2, stats.Stages[domain.StageNormalize].In)
	assert.Equal(t, 2, stats.Stages[domain.StageHardGate].Out)
}

func TestRunIsDeterministic(t *testing.T) {
	collector := &fakeCollector{responses: map[string][]providers.Response{
		"ABVX": passingResponses("ABVX", regularHours),
		"BKSY": passingResponses("BKSY", regularHours),
		"CRDO": passingResponses("CRDO", regularHours),
	}}
	r := newTestRunner(t, collector, regularHours)

	universe := []string{"CRDO", "ABVX", "BKSY"}
	first, err := r.Run(context.Background(), universe)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), universe)
	require.NoError(t, err)

	require.Equal(t, len(first.Items), len(second.Items))
	for i := range first.Items {
		assert.Equal(t, first.Items[i].Symbol, second.Items[i].Symbol)
		assert.Equal(t, first.Items[i].TotalScore, second.Items[i].TotalScore)
	}
}

func TestHardGateFailureSkipsDetectors(t *testing.T) {
	wide := passingResponses("WIDE", regularHours)
	wide[0].Fields[domain.FieldSpreadBps] = 500 // fails spread_max

	collector := &fakeCollector{responses: map[string][]providers.Response{
		"WIDE": wide,
		"ABVX": passingResponses("ABVX", regularHours),
	}}
	r := newTestRunner(t, collector, regularHours)

	result, err := r.Run(context.Background(), []string{"WIDE", "ABVX"})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "ABVX", result.Items[0].Symbol)

	hardGate := result.PipelineStats.Stages[domain.StageHardGate]
	assert.Equal(t, 2, hardGate.In)
	assert.Equal(t, 1, hardGate.Out)
	assert.Equal(t, 1, hardGate.Rejections[domain.GateSpreadMax])

	// The rejected symbol surfaces by name with its failed-gate list, not
	// only as a histogram bucket.
	require.Len(t, result.PipelineStats.GateFailures, 1)
	failure := result.PipelineStats.GateFailures[0]
	assert.Equal(t, "WIDE", failure.Symbol)
	assert.Equal(t, domain.ActionRejected, failure.Action)
	assert.Contains(t, failure.GateIDs, domain.GateSpreadMax)

	// The rejected symbol never reached detect.
	assert.Equal(t, 1, result.PipelineStats.Stages[domain.StageDetect].In)
}

func TestNoPriceSymbolRejected(t *testing.T) {
	noPrice := passingResponses("NOPX", regularHours)
	delete(noPrice[0].Fields, domain.FieldPrice)

	collector := &fakeCollector{responses: map[string][]providers.Response{"NOPX": noPrice}}
	r := newTestRunner(t, collector, regularHours)

	result, err := r.Run(context.Background(), []string{"NOPX"})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 1,
		result.PipelineStats.Stages[domain.StageNormalize].Rejections[domain.ReasonNoPriceData])
}

func TestAggregateStalenessFailsClosed(t *testing.T) {
	// Price is fresh but every other required quote field is hours old:
	// well past the 40% coverage limit during market hours.
	stale := passingResponses("ABVX", regularHours)
	stale[0].Fields = map[domain.FieldName]float64{domain.FieldPrice: 12.40}
	stale = append(stale, providers.Response{
		Provider: "rt", Tier: domain.TierRealtime, Kind: providers.KindQuote,
		Symbol: "ABVX", AsOf: regularHours.Add(-2 * time.Hour), IngestedAt: regularHours,
		Confidence: 1.0,
		Fields: map[domain.FieldName]float64{
			domain.FieldSessionVolume:  2_000_000,
			domain.FieldAvgVolume30d:   500_000,
			domain.FieldRelVolume30d:   4.0,
			domain.FieldVWAP:           12.10,
			domain.FieldSpreadBps:      25,
			domain.FieldValueTradedUSD: 24_000_000,
		},
	})

	collector := &fakeCollector{responses: map[string][]providers.Response{"ABVX": stale}}
	r := newTestRunner(t, collector, regularHours)

	result, err := r.Run(context.Background(), []string{"ABVX"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusStaleData, result.Status)
	assert.Equal(t, domain.ReasonStaleData, result.Reason)
	assert.Empty(t, result.Items)
	assert.InDelta(t, 120.0, result.AgeMinutes, 1.0)
}

func TestPrimaryDownReportsReadiness(t *testing.T) {
	collector := &fakeCollector{err: providers.ErrPrimaryDown}
	r := newTestRunner(t, collector, regularHours)

	result, err := r.Run(context.Background(), []string{"ABVX", "BKSY"})
	require.ErrorIs(t, err, ErrReadiness)
	require.NotNil(t, result)
	assert.Equal(t, domain.StatusStaleData, result.Status)
	assert.Equal(t, domain.ReasonProviderDown, result.Reason)
}

func TestLatencyBudgetEmitsDegradedContract(t *testing.T) {
	collector := &fakeCollector{block: true}

	cfg := config.Default()
	cfg.Workers = 2
	cfg.LatencyBudget = config.Duration(20 * time.Millisecond)
	r, err := NewRunner(cfg, collector, telemetry.NewMetrics(),
		WithClock(func() time.Time { return regularHours }))
	require.NoError(t, err)

	result, err := r.Run(context.Background(), []string{"ABVX", "BKSY", "CRDO"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStaleData, result.Status)
	assert.Equal(t, domain.ReasonRunTimeout, result.Reason)
	assert.Empty(t, result.Items)
}

func TestRunLockConflictAborts(t *testing.T) {
	collector := &fakeCollector{responses: map[string][]providers.Response{
		"ABVX": passingResponses("ABVX", regularHours),
	}}
	pub := &fakePublisher{lockErr: errRunHeld}
	r := newTestRunner(t, collector, regularHours, WithPublisher(pub))

	_, err := r.Run(context.Background(), []string{"ABVX"})
	assert.ErrorIs(t, err, errRunHeld)
	assert.Zero(t, collector.calls.Load())
}

func TestPublisherReceivesResultAndLockReleases(t *testing.T) {
	collector := &fakeCollector{responses: map[string][]providers.Response{
		"ABVX": passingResponses("ABVX", regularHours),
	}}
	pub := &fakePublisher{}
	r := newTestRunner(t, collector, regularHours, WithPublisher(pub))

	result, err := r.Run(context.Background(), []string{"ABVX"})
	require.NoError(t, err)

	require.Len(t, pub.results, 1)
	assert.Equal(t, result, pub.results[0])
	assert.Equal(t, int64(1), pub.released.Load())
}

func TestFabricatedRelVolDropsCandidate(t *testing.T) {
	fabricated := passingResponses("FABX", regularHours)
	fabricated[0].Fields[domain.FieldRelVolume30d] = 1.0 // banned literal
	fabricated[0].Provider = ""                          // no source attribution

	collector := &fakeCollector{responses: map[string][]providers.Response{"FABX": fabricated}}
	r := newTestRunner(t, collector, regularHours)

	result, err := r.Run(context.Background(), []string{"FABX"})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 1,
		result.PipelineStats.Stages[domain.StageFabrication].Rejections[domain.ReasonFabricatedValue])
}

func TestFabricatedRelVolKeepsCandidateWhenGateDisabled(t *testing.T) {
	fabricated := passingResponses("FABX", regularHours)
	fabricated[0].Fields[domain.FieldRelVolume30d] = 1.0 // banned literal
	fabricated[0].Provider = ""                          // no source attribution

	collector := &fakeCollector{responses: map[string][]providers.Response{"FABX": fabricated}}

	cfg := config.Default()
	cfg.Workers = 2
	cfg.Gates.MinRelVol = 0 // rel-vol gate off: the field drops, the candidate stays
	r, err := NewRunner(cfg, collector, telemetry.NewMetrics(),
		WithClock(func() time.Time { return regularHours }))
	require.NoError(t, err)

	result, err := r.Run(context.Background(), []string{"FABX"})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "FABX", result.Items[0].Symbol)
	assert.Equal(t, 1,
		result.PipelineStats.Stages[domain.StageFabrication].Rejections[domain.ReasonFabricatedValue])
}
