package gates

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
)

// fixedAges satisfies AgePolicy with one bound for every field.
type fixedAges struct{ bound time.Duration }

func (f fixedAges) MaxAge(domain.FieldName, bool) time.Duration { return f.bound }

var softNow = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

func tierField(v float64, tier domain.Tier, conf float64) *domain.Field {
	return &domain.Field{Value: v, Source: "src", Tier: tier, AsOf: softNow, Confidence: conf}
}

// fullSnapshot has fresh contributions from both required tiers.
func fullSnapshot() *domain.TickerSnapshot {
	return &domain.TickerSnapshot{
		Symbol:           "ABVX",
		Price:            tierField(10, domain.TierRealtime, 0.95),
		SessionVolume:    tierField(1e6, domain.TierRealtime, 0.95),
		ShortInterestPct: tierField(22, domain.TierRegulatory, 0.90),
	}
}

func TestCleanSnapshotUnpenalized(t *testing.T) {
	a := NewAdjuster(config.Default().Soft, fixedAges{time.Minute})

	adjusted, flags := a.Adjust(0.80, fullSnapshot(), true, softNow)
	assert.InDelta(t, 0.80, adjusted, 1e-9)
	assert.Empty(t, flags)
}

func TestStalenessPenaltyMonotonic(t *testing.T) {
	cfg := config.Default().Soft
	a := NewAdjuster(cfg, fixedAges{time.Minute})

	snapAt := func(age time.Duration) *domain.TickerSnapshot {
		snap := fullSnapshot()
		snap.Price.AsOf = softNow.Add(-age)
		snap.Price.Stale = true
		return snap
	}

	oneHour, _ := a.Adjust(0.80, snapAt(time.Minute+time.Hour), true, softNow)
	threeHours, _ := a.Adjust(0.80, snapAt(time.Minute+3*time.Hour), true, softNow)
	assert.Less(t, threeHours, oneHour)
	assert.Less(t, oneHour, 0.80)

	// One hour beyond the bound: one 10% haircut.
	assert.InDelta(t, 0.80*math.Pow(0.9, 1), oneHour, 1e-9)
}

func TestStalenessHoursCapped(t *testing.T) {
	cfg := config.Default().Soft
	a := NewAdjuster(cfg, fixedAges{time.Minute})

	snap := fullSnapshot()
	snap.Price.AsOf = softNow.Add(-100 * time.Hour)
	snap.Price.Stale = true

	adjusted, flags := a.Adjust(0.80, snap, true, softNow)
	assert.InDelta(t, 0.80*math.Pow(0.9, cfg.AgePenaltyCapHours), adjusted, 1e-6)
	assert.Contains(t, flags, "stale:price")
}

func TestMissingProviderPenalty(t *testing.T) {
	a := NewAdjuster(config.Default().Soft, fixedAges{time.Minute})

	snap := fullSnapshot()
	snap.ShortInterestPct = nil // regulatory tier no longer contributes

	adjusted, flags := a.Adjust(0.80, snap, true, softNow)
	assert.InDelta(t, 0.80*0.85, adjusted, 1e-9)
	assert.Contains(t, flags, "missing_provider:regulatory")
}

func TestLowFieldConfidencePenaltyAppliedOnce(t *testing.T) {
	a := NewAdjuster(config.Default().Soft, fixedAges{time.Minute})

	snap := fullSnapshot()
	snap.Price.Confidence = 0.30
	snap.SessionVolume.Confidence = 0.20 // second low-conf field: still one penalty

	adjusted, flags := a.Adjust(0.80, snap, true, softNow)
	assert.InDelta(t, 0.80*0.80, adjusted, 1e-9)

	count := 0
	for _, f := range flags {
		if f == "low_field_confidence" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestConfidenceFloored(t *testing.T) {
	cfg := config.Default().Soft
	a := NewAdjuster(cfg, fixedAges{time.Minute})

	snap := &domain.TickerSnapshot{
		Symbol: "ABVX",
		Price:  tierField(10, domain.TierAggregator, 0.10),
	}
	snap.Price.Stale = true
	snap.Price.AsOf = softNow.Add(-200 * time.Hour)

	adjusted, _ := a.Adjust(0.15, snap, true, softNow)
	assert.Equal(t, cfg.Floor, adjusted)
}

func TestSoftGatesNeverZeroScore(t *testing.T) {
	// The adjuster touches confidence only; a caller's score is its own.
	a := NewAdjuster(config.Default().Soft, fixedAges{time.Minute})
	adjusted, _ := a.Adjust(1.0, fullSnapshot(), true, softNow)
	assert.Greater(t, adjusted, 0.0)
}
