// Package composite folds detector results into the 0-100 total score,
// assigns action tiers, and ranks candidates deterministically.
package composite

import (
	"math"
	"sort"
	"time"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
)

// Scorer computes composite candidates with the active session's weight
// profile and the tiering thresholds.
type Scorer struct {
	tiering config.TieringConfig
}

func NewScorer(tiering config.TieringConfig) *Scorer {
	return &Scorer{tiering: tiering}
}

// Score assembles one candidate. confidence is the soft-gate-adjusted
// value and never feeds back into the total score.
func (s *Scorer) Score(symbol string, results map[string]domain.DetectorResult, weights config.DetectorWeights, confidence float64, riskFlags []string, sessionName string, ts time.Time) domain.CompositeCandidate {
	total := 100 * (results[domain.DetectorVolumeMomentum].Score*weights.VolumeMomentum +
		results[domain.DetectorSqueeze].Score*weights.Squeeze +
		results[domain.DetectorCatalyst].Score*weights.Catalyst +
		results[domain.DetectorOptionsFlow].Score*weights.OptionsFlow +
		results[domain.DetectorTechnical].Score*weights.Technical)

	return domain.CompositeCandidate{
		Symbol:     symbol,
		Timestamp:  ts,
		TotalScore: total,
		Confidence: confidence,
		Detectors:  results,
		ActionTag:  s.tier(total),
		RiskFlags:  riskFlags,
		Session:    sessionName,
	}
}

func (s *Scorer) tier(total float64) domain.ActionTag {
	switch {
	case total >= s.tiering.TradeReady:
		return domain.ActionTradeReady
	case total >= s.tiering.Watchlist:
		return domain.ActionWatchlist
	default:
		return domain.ActionMonitor
	}
}

// PromoteSoftPass upgrades up to maxSoftPass monitor candidates sitting
// within margin points of the watchlist boundary. Candidates must
// already be in Rank order: promotion walks the slice front to back, so
// the budget goes to the highest-ranked near misses. Disabled when
// maxSoftPass is zero. Candidates are immutable, so promotion produces
// replacements.
func (s *Scorer) PromoteSoftPass(candidates []domain.CompositeCandidate, maxSoftPass int, margin float64) []domain.CompositeCandidate {
	if maxSoftPass <= 0 {
		return candidates
	}
	promoted := 0
	out := make([]domain.CompositeCandidate, len(candidates))
	for i, c := range candidates {
		if promoted < maxSoftPass &&
			c.ActionTag == domain.ActionMonitor &&
			c.TotalScore >= s.tiering.Watchlist-margin {
			c.ActionTag = domain.ActionWatchlist
			c.RiskFlags = append(append([]string(nil), c.RiskFlags...), "soft_pass")
			promoted++
		}
		out[i] = c
	}
	return out
}

// Rank orders candidates for publication. Tie-break on identical
// rounded scores: higher confidence, then lexicographic symbol —
// deterministic, never time-of-arrival, so runs are reproducible.
func Rank(candidates []domain.CompositeCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		si := roundScore(candidates[i].TotalScore)
		sj := roundScore(candidates[j].TotalScore)
		if si != sj {
			return si > sj
		}
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
