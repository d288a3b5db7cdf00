package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitelab/ignite/internal/domain"
)

// flakyAdapter fails every fetch.
type flakyAdapter struct {
	name string
	tier domain.Tier
	kind Kind
}

func (f *flakyAdapter) Name() string      { return f.name }
func (f *flakyAdapter) Tier() domain.Tier { return f.tier }
func (f *flakyAdapter) Kinds() []Kind     { return []Kind{f.kind} }
func (f *flakyAdapter) Health() Health    { return Healthy }
func (f *flakyAdapter) Fetch(context.Context, string) ([]Response, error) {
	return nil, errors.New("upstream 503")
}

func fastGuard(name string) GuardConfig {
	gc := DefaultGuardConfig(name)
	gc.RequestsPerSec = 10_000
	gc.Burst = 10_000
	return gc
}

func TestSimSuiteIsDeterministic(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC) }
	a := NewSimAdapter("sim-quotes", domain.TierRealtime, []Kind{KindQuote}, clock)

	first, err := a.Fetch(context.Background(), "ABVX")
	require.NoError(t, err)
	second, err := a.Fetch(context.Background(), "ABVX")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := a.Fetch(context.Background(), "BKSY")
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Fields[domain.FieldPrice], other[0].Fields[domain.FieldPrice])
}

func TestCollectMergesAllAdapters(t *testing.T) {
	f := NewFacade()
	for _, a := range NewSimSuite(nil) {
		f.Register(a, fastGuard(a.Name()))
	}

	responses, err := f.Collect(context.Background(), "ABVX")
	require.NoError(t, err)

	providersSeen := map[string]bool{}
	for _, r := range responses {
		providersSeen[r.Provider] = true
		assert.Equal(t, "ABVX", r.Symbol)
	}
	assert.Len(t, providersSeen, 3)
}

func TestEnrichmentFailureDegradesNotFails(t *testing.T) {
	f := NewFacade()
	f.Register(NewSimSuite(nil)[0], fastGuard("sim-quotes"))
	f.Register(&flakyAdapter{name: "flaky-news", tier: domain.TierAggregator, kind: KindNews},
		fastGuard("flaky-news"))

	responses, err := f.Collect(context.Background(), "ABVX")
	require.NoError(t, err)
	assert.NotEmpty(t, responses)
}

func TestPrimaryDownIsTerminal(t *testing.T) {
	f := NewFacade()
	f.Register(&flakyAdapter{name: "flaky-quotes", tier: domain.TierRealtime, kind: KindQuote},
		fastGuard("flaky-quotes"))

	_, err := f.Collect(context.Background(), "ABVX")
	assert.ErrorIs(t, err, ErrPrimaryDown)
}

func TestBreakerOpensAndHealthReportsFailed(t *testing.T) {
	gc := fastGuard("flaky-quotes")
	gc.MinRequests = 3
	gc.FailureRatio = 0.5

	f := NewFacade()
	f.Register(&flakyAdapter{name: "flaky-quotes", tier: domain.TierRealtime, kind: KindQuote}, gc)

	for i := 0; i < 10; i++ {
		_, _ = f.Collect(context.Background(), "ABVX")
	}

	report := f.HealthReport()
	assert.Equal(t, Failed, report["flaky-quotes"])
}

func TestStreamAdapterNoQuoteNoData(t *testing.T) {
	s := NewStreamAdapter("stream", "ws://localhost:0/quotes")
	assert.Equal(t, Degraded, s.Health())

	_, err := s.Fetch(context.Background(), "ABVX")
	assert.Error(t, err)
}
