package composite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
)

var scoreTime = time.Date(2025, time.March, 12, 14, 0, 0, 0, time.UTC)

func results(vol, sq, cat, opt, tech float64) map[string]domain.DetectorResult {
	return map[string]domain.DetectorResult{
		domain.DetectorVolumeMomentum: {Detector: domain.DetectorVolumeMomentum, Score: vol, Confidence: 0.9},
		domain.DetectorSqueeze:        {Detector: domain.DetectorSqueeze, Score: sq, Confidence: 0.9},
		domain.DetectorCatalyst:       {Detector: domain.DetectorCatalyst, Score: cat, Confidence: 0.9},
		domain.DetectorOptionsFlow:    {Detector: domain.DetectorOptionsFlow, Score: opt, Confidence: 0.9},
		domain.DetectorTechnical:      {Detector: domain.DetectorTechnical, Score: tech, Confidence: 0.9},
	}
}

func defaultScorer() *Scorer { return NewScorer(config.Default().Tiering) }

func TestScoreIsPlainWeightedSum(t *testing.T) {
	s := defaultScorer()
	w := config.Default().Weights

	c := s.Score("ABVX", results(1, 1, 1, 1, 1), w, 0.8, nil, "regular", scoreTime)
	assert.InDelta(t, 100.0, c.TotalScore, 1e-9)

	// A zero-confidence detector still contributes its score: the weighted
	// sum is never renormalized over present detectors.
	c = s.Score("ABVX", results(1, 1, 0, 1, 1), w, 0.8, nil, "regular", scoreTime)
	assert.InDelta(t, 80.0, c.TotalScore, 1e-9)
}

func TestTierAssignment(t *testing.T) {
	s := defaultScorer()
	w := config.Default().Weights

	cases := []struct {
		vol  float64
		want domain.ActionTag
	}{
		// volume weight 0.35: these land the total at 100*vol since all
		// detectors share the score.
		{0.80, domain.ActionTradeReady}, // 80
		{0.75, domain.ActionTradeReady}, // boundary inclusive
		{0.72, domain.ActionWatchlist},
		{0.70, domain.ActionWatchlist}, // boundary inclusive
		{0.50, domain.ActionMonitor},
	}
	for _, tc := range cases {
		c := s.Score("ABVX", results(tc.vol, tc.vol, tc.vol, tc.vol, tc.vol), w, 0.8, nil, "regular", scoreTime)
		assert.Equal(t, tc.want, c.ActionTag, "vol=%.2f total=%.2f", tc.vol, c.TotalScore)
	}
}

func TestConfidenceIndependentOfScore(t *testing.T) {
	s := defaultScorer()
	w := config.Default().Weights

	c := s.Score("ABVX", results(1, 1, 1, 1, 1), w, 0.12, []string{"stale:vwap"}, "regular", scoreTime)
	assert.InDelta(t, 100.0, c.TotalScore, 1e-9)
	assert.InDelta(t, 0.12, c.Confidence, 1e-9)
	assert.Contains(t, c.RiskFlags, "stale:vwap")
}

func TestRankDeterministicTieBreak(t *testing.T) {
	candidates := []domain.CompositeCandidate{
		{Symbol: "CCC", TotalScore: 80.001, Confidence: 0.5}, // rounds to 80.00
		{Symbol: "AAA", TotalScore: 80.0, Confidence: 0.5},
		{Symbol: "BBB", TotalScore: 80.0, Confidence: 0.9},
		{Symbol: "DDD", TotalScore: 85.0, Confidence: 0.1},
	}

	Rank(candidates)

	// Score first, then confidence, then symbol. 80.001 rounds into the
	// tie and loses on confidence+symbol ordering.
	assert.Equal(t, "DDD", candidates[0].Symbol)
	assert.Equal(t, "BBB", candidates[1].Symbol)
	assert.Equal(t, "AAA", candidates[2].Symbol)
	assert.Equal(t, "CCC", candidates[3].Symbol)
}

func TestRankReproducible(t *testing.T) {
	build := func() []domain.CompositeCandidate {
		return []domain.CompositeCandidate{
			{Symbol: "B", TotalScore: 72, Confidence: 0.6},
			{Symbol: "A", TotalScore: 72, Confidence: 0.6},
			{Symbol: "C", TotalScore: 90, Confidence: 0.2},
		}
	}
	a, b := build(), build()
	Rank(a)
	Rank(b)
	assert.Equal(t, a, b)
}

func TestPromoteSoftPass(t *testing.T) {
	s := defaultScorer()
	candidates := []domain.CompositeCandidate{
		{Symbol: "NEAR", TotalScore: 68.5, ActionTag: domain.ActionMonitor},
		{Symbol: "FAR", TotalScore: 60.0, ActionTag: domain.ActionMonitor},
		{Symbol: "ALSO", TotalScore: 69.0, ActionTag: domain.ActionMonitor},
	}

	out := s.PromoteSoftPass(candidates, 1, 2.0)

	// Only the first eligible near-miss is promoted, flagged, and the
	// input slice is untouched.
	assert.Equal(t, domain.ActionWatchlist, out[0].ActionTag)
	assert.Contains(t, out[0].RiskFlags, "soft_pass")
	assert.Equal(t, domain.ActionMonitor, out[1].ActionTag)
	assert.Equal(t, domain.ActionMonitor, out[2].ActionTag)
	assert.Equal(t, domain.ActionMonitor, candidates[0].ActionTag)
}

func TestPromoteSoftPassOrderIndependent(t *testing.T) {
	s := defaultScorer()
	a := domain.CompositeCandidate{Symbol: "AAAA", TotalScore: 69.5, Confidence: 0.6, ActionTag: domain.ActionMonitor}
	b := domain.CompositeCandidate{Symbol: "BBBB", TotalScore: 68.5, Confidence: 0.6, ActionTag: domain.ActionMonitor}

	// Both near misses fit the margin; only one promotion is budgeted.
	// Whichever arrival order the workers produced, ranking first means
	// the higher-scored candidate wins the slot.
	for _, arrival := range [][]domain.CompositeCandidate{{a, b}, {b, a}} {
		items := append([]domain.CompositeCandidate(nil), arrival...)
		Rank(items)
		out := s.PromoteSoftPass(items, 1, 2.0)

		require.Len(t, out, 2)
		assert.Equal(t, "AAAA", out[0].Symbol)
		assert.Equal(t, domain.ActionWatchlist, out[0].ActionTag)
		assert.Equal(t, domain.ActionMonitor, out[1].ActionTag)
	}
}

func TestPromoteSoftPassDisabled(t *testing.T) {
	s := defaultScorer()
	candidates := []domain.CompositeCandidate{
		{Symbol: "NEAR", TotalScore: 69.5, ActionTag: domain.ActionMonitor},
	}
	out := s.PromoteSoftPass(candidates, 0, 2.0)
	assert.Equal(t, domain.ActionMonitor, out[0].ActionTag)
}

// The trade-ready promotion shape: a surging candidate whose missing
// optional inputs lower confidence but whose score clears watchlist.
func TestWatchlistWithDegradedConfidence(t *testing.T) {
	s := defaultScorer()
	w := config.Default().Weights

	// Volume detector saturated (renormalized over present factors);
	// other detectors middling; the total lands between the watchlist and
	// trade-ready boundaries.
	res := results(0.925, 0.70, 0.60, 0.55, 0.60)
	c := s.Score("ABVX", res, w, 0.45, []string{"missing_provider:regulatory"}, "regular", scoreTime)

	assert.GreaterOrEqual(t, c.TotalScore, 70.0)
	assert.Less(t, c.TotalScore, 75.0)
	assert.Equal(t, domain.ActionWatchlist, c.ActionTag)
	assert.Less(t, c.Confidence, 0.5)
}

// A 6x relvol surge holding above VWAP can clear the watchlist band on
// volume, squeeze, options, and technical alone, with the catalyst
// detector fully absent.
func TestWatchlistWithoutCatalyst(t *testing.T) {
	s := defaultScorer()
	w := config.Default().Weights

	res := results(1.0, 0.90, 0, 0.65, 0.95)
	res[domain.DetectorCatalyst] = domain.DetectorResult{Detector: domain.DetectorCatalyst}

	c := s.Score("SRGE", res, w, 0.62, nil, "regular", scoreTime)

	assert.InDelta(t, 73.5, c.TotalScore, 1e-9)
	assert.Equal(t, domain.ActionWatchlist, c.ActionTag)
}
