// Package explosive implements the second, stricter scoring pass over
// the already-ranked trade_ready/watchlist pool: the Explosive Gate
// Score (EGS) and Structured Explosive Rank (SER) shortlist.
package explosive

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
	"github.com/ignitelab/ignite/internal/session"
)

// Input pairs a scored candidate with the snapshot it was derived from.
type Input struct {
	Candidate domain.CompositeCandidate
	Snapshot  *domain.TickerSnapshot
}

// Deriver recomputes EGS/SER over the shortlist factor subset.
type Deriver struct {
	cfg config.ExplosiveConfig
}

func NewDeriver(cfg config.ExplosiveConfig) *Deriver {
	return &Deriver{cfg: cfg}
}

// Derive filters the pool through the EGS floor and ranks by SER. The
// elastic fallback lowers the floor by the configured delta exactly
// once per run when nothing clears it, and is logged distinctly from a
// normal pass.
func (d *Deriver) Derive(pool []Input, sess session.Name) ([]domain.ExplosiveCandidate, bool) {
	scored := make([]domain.ExplosiveCandidate, 0, len(pool))
	for _, in := range pool {
		if in.Candidate.ActionTag != domain.ActionTradeReady &&
			in.Candidate.ActionTag != domain.ActionWatchlist {
			continue
		}
		scored = append(scored, d.score(in, sess))
	}

	floor := d.cfg.FloorTier
	shortlist := atOrAbove(scored, floor)
	fallbackUsed := false

	if len(shortlist) == 0 && d.cfg.ElasticFallback && len(scored) > 0 {
		// One sub-floor pass per run, never two.
		floor -= d.cfg.FallbackDelta
		shortlist = atOrAbove(scored, floor)
		if len(shortlist) > 0 {
			fallbackUsed = true
			log.Warn().Float64("floor", floor).
				Float64("delta", d.cfg.FallbackDelta).
				Int("promoted", len(shortlist)).
				Bool("fallback_used", true).
				Msg("explosive shortlist elastic fallback engaged")
		}
	}

	for i := range shortlist {
		shortlist[i].Tier = d.tier(shortlist[i].EGS)
	}

	sort.Slice(shortlist, func(i, j int) bool {
		if shortlist[i].SER != shortlist[j].SER {
			return shortlist[i].SER > shortlist[j].SER
		}
		if shortlist[i].EGS != shortlist[j].EGS {
			return shortlist[i].EGS > shortlist[j].EGS
		}
		return shortlist[i].Symbol < shortlist[j].Symbol
	})

	if d.cfg.MaxShortlist > 0 && len(shortlist) > d.cfg.MaxShortlist {
		shortlist = shortlist[:d.cfg.MaxShortlist]
	}
	return shortlist, fallbackUsed
}

// EGS point allocation over the liquidity/momentum factor subset.
const (
	ptsRelVol    = 25.0
	ptsRotation  = 15.0
	ptsFriction  = 15.0
	ptsGamma     = 10.0
	ptsCatalyst  = 15.0
	ptsSentiment = 10.0
	ptsVWAP      = 10.0
)

func (d *Deriver) score(in Input, sess session.Name) domain.ExplosiveCandidate {
	snap := in.Snapshot
	comps := map[string]float64{}

	// Time-of-day-normalized relative volume with sustain duration.
	if rv, ok := snap.RelVolume30d.AnyVal(); ok {
		normalized := rv / todBaseline(sess)
		sustain := 0.7
		if mins, ok := snap.RelVolSustainMin.AnyVal(); ok {
			sustain = 0.7 + 0.3*clamp01(mins/60.0)
		}
		comps["relvol_tod"] = clamp01((normalized-1.0)/5.0) * sustain * ptsRelVol
	}

	if frot, ok := snap.FloatRotationPct.AnyVal(); ok {
		comps["float_rotation"] = clamp01(frot/100.0) * ptsRotation
	}

	detectors := in.Candidate.Detectors
	if sq, ok := detectors[domain.DetectorSqueeze]; ok {
		if stress, ok := sq.Components["borrow_stress"]; ok {
			comps["squeeze_friction"] = stress * ptsFriction
		} else if si, ok := sq.Components["short_interest"]; ok {
			comps["squeeze_friction"] = si * ptsFriction * 0.8
		}
	}
	if opt, ok := detectors[domain.DetectorOptionsFlow]; ok {
		if gamma, ok := opt.Components["gamma"]; ok {
			comps["gamma_pressure"] = gamma * ptsGamma
		}
	}
	if cat, ok := detectors[domain.DetectorCatalyst]; ok {
		if news, ok := cat.Components["news"]; ok {
			comps["catalyst_freshness"] = news * ptsCatalyst
		} else if event, ok := cat.Components["event"]; ok {
			comps["catalyst_freshness"] = event * ptsCatalyst * 0.8
		}
		if social, ok := cat.Components["social"]; ok {
			comps["sentiment_anomaly"] = social * ptsSentiment
		}
	}

	price, priceOK := snap.Price.AnyVal()
	if vwap, ok := snap.VWAP.AnyVal(); ok && priceOK && vwap > 0 && price >= vwap {
		adherence := clamp01(1.0 - (price-vwap)/vwap/0.03) // hugging VWAP beats extension
		comps["vwap_adherence"] = adherence * ptsVWAP
	}

	egs := 0.0
	for _, v := range comps {
		egs += v
	}

	// SER folds options open-interest skew into the rank.
	ser := 0.85 * egs
	if skew, ok := snap.OISkew.AnyVal(); ok {
		ser += 15.0 * clamp01(skew)
	}

	return domain.ExplosiveCandidate{
		Symbol:     in.Candidate.Symbol,
		EGS:        egs,
		SER:        ser,
		Components: comps,
		Composite:  in.Candidate,
	}
}

func (d *Deriver) tier(egs float64) domain.ExplosiveTier {
	switch {
	case egs >= d.cfg.PrimeTier:
		return domain.TierPrime
	case egs >= d.cfg.StrongTier:
		return domain.TierStrong
	default:
		return domain.TierFloor
	}
}

// todBaseline is the expected relative-volume multiple for the session;
// premarket tape runs hot relative to the 30d intraday average.
func todBaseline(sess session.Name) float64 {
	switch sess {
	case session.Premarket:
		return 2.0
	case session.Afterhours:
		return 1.5
	default:
		return 1.0
	}
}

func atOrAbove(scored []domain.ExplosiveCandidate, floor float64) []domain.ExplosiveCandidate {
	var out []domain.ExplosiveCandidate
	for _, c := range scored {
		if c.EGS >= floor {
			out = append(out, c)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
