// Package snapshot merges multi-provider responses into one
// TickerSnapshot per symbol, attaching per-field confidence and
// staleness flags. It never interpolates or fabricates a missing field
// and fails closed on symbols without live price data.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
	"github.com/ignitelab/ignite/internal/providers"
)

// ErrNoPriceData marks a symbol with no fresh, attributable price.
type ErrNoPriceData struct{ Symbol string }

func (e ErrNoPriceData) Error() string {
	return fmt.Sprintf("%s: %s", e.Symbol, domain.ReasonNoPriceData)
}

// Normalizer applies the precedence table and staleness policy.
type Normalizer struct {
	policy config.StalenessPolicy
	clock  func() time.Time
}

func NewNormalizer(policy config.StalenessPolicy, clock func() time.Time) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{policy: policy, clock: clock}
}

// Normalize merges raw responses for one symbol. marketHours selects
// the tighter quote/bar staleness bounds.
func (n *Normalizer) Normalize(symbol string, responses []providers.Response, marketHours bool) (*domain.TickerSnapshot, error) {
	now := n.clock()
	snap := &domain.TickerSnapshot{Symbol: symbol, Timestamp: now}

	seenProviders := map[string]bool{}

	for _, resp := range responses {
		if resp.Symbol != symbol {
			continue
		}
		if !seenProviders[resp.Provider] {
			seenProviders[resp.Provider] = true
			snap.Providers = append(snap.Providers, resp.Provider)
		}
		for name, value := range resp.Fields {
			slot := snap.FieldByName(name)
			if slot == nil {
				continue
			}
			candidate := &domain.Field{
				Value:      value,
				Source:     resp.Provider,
				Tier:       resp.Tier,
				AsOf:       resp.AsOf,
				IngestedAt: resp.IngestedAt,
				Confidence: resp.Confidence * resp.Tier.Reliability(),
			}
			if wins(candidate, *slot) {
				*slot = candidate
			}
		}
		snap.Catalysts = append(snap.Catalysts, resp.Catalysts...)
		if len(resp.Closes) > len(snap.Closes) {
			snap.Closes = resp.Closes
		}
	}
	sort.Strings(snap.Providers)

	n.flagStaleness(snap, now, marketHours)

	// Fail closed: no fresh price means no scoring, not a cached or
	// zero price.
	if _, ok := snap.Price.Val(); !ok {
		return nil, ErrNoPriceData{Symbol: symbol}
	}
	return snap, nil
}

// wins implements the fixed precedence order: higher tier beats lower;
// within a tier the fresher as-of wins.
func wins(candidate, incumbent *domain.Field) bool {
	if incumbent == nil {
		return true
	}
	if candidate.Tier != incumbent.Tier {
		return candidate.Tier < incumbent.Tier
	}
	return candidate.AsOf.After(incumbent.AsOf)
}

func (n *Normalizer) flagStaleness(snap *domain.TickerSnapshot, now time.Time, marketHours bool) {
	for _, name := range allFieldNames {
		slot := snap.FieldByName(name)
		if slot == nil || *slot == nil {
			continue
		}
		maxAge := n.MaxAge(name, marketHours)
		if maxAge <= 0 {
			continue
		}
		if now.Sub((*slot).AsOf) > maxAge {
			(*slot).Stale = true
		}
	}
}

// MaxAge returns the staleness bound for a field, grouped by the data
// class it belongs to.
func (n *Normalizer) MaxAge(name domain.FieldName, marketHours bool) time.Duration {
	p := n.policy
	switch name {
	case domain.FieldPrice, domain.FieldSessionVolume, domain.FieldRelVolume30d,
		domain.FieldSpreadBps, domain.FieldValueTradedUSD:
		if marketHours {
			return p.QuoteMarket.D()
		}
		return p.QuoteExtended.D()
	case domain.FieldVWAP:
		return p.VWAP.D()
	case domain.FieldRelVolSustainMin, domain.FieldEMA9, domain.FieldEMA20, domain.FieldBreakoutQuality:
		if marketHours {
			return p.BarMarket.D()
		}
		return p.BarExtended.D()
	case domain.FieldAvgVolume30d, domain.FieldATRPct, domain.FieldUpDays, domain.FieldRSI:
		return p.Daily.D()
	case domain.FieldShortInterestPct:
		return p.ShortInterest.D()
	case domain.FieldShortVolumeRatio, domain.FieldDaysToCover,
		domain.FieldFloatRotationPct, domain.FieldRegSHOFlag:
		return p.ShortVolume.D()
	case domain.FieldGammaPressure, domain.FieldCallPutRatio, domain.FieldIVPercentile,
		domain.FieldUnusualOptionsVol, domain.FieldOISkew:
		return p.Options.D()
	case domain.FieldNewsSentiment, domain.FieldSocialRank,
		domain.FieldSocialAccel, domain.FieldEventProximityD:
		return p.NewsSocial.D()
	default:
		return 0
	}
}

// StaleRequiredFraction reports the fraction of required fields flagged
// stale across a snapshot set, for the run-level fail-closed check.
func StaleRequiredFraction(snaps []*domain.TickerSnapshot) float64 {
	total, stale := 0, 0
	for _, snap := range snaps {
		for _, name := range domain.RequiredFields {
			slot := snap.FieldByName(name)
			if slot == nil || *slot == nil {
				continue
			}
			total++
			if (*slot).Stale {
				stale++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(stale) / float64(total)
}

var allFieldNames = []domain.FieldName{
	domain.FieldPrice, domain.FieldSessionVolume, domain.FieldAvgVolume30d,
	domain.FieldRelVolume30d, domain.FieldATRPct, domain.FieldVWAP,
	domain.FieldSpreadBps, domain.FieldValueTradedUSD,
	domain.FieldShortInterestPct, domain.FieldShortVolumeRatio,
	domain.FieldDaysToCover, domain.FieldFloatRotationPct, domain.FieldRegSHOFlag,
	domain.FieldGammaPressure, domain.FieldCallPutRatio, domain.FieldIVPercentile,
	domain.FieldUnusualOptionsVol, domain.FieldOISkew,
	domain.FieldNewsSentiment, domain.FieldSocialRank, domain.FieldSocialAccel,
	domain.FieldEventProximityD,
	domain.FieldRSI, domain.FieldEMA9, domain.FieldEMA20, domain.FieldUpDays,
	domain.FieldBreakoutQuality, domain.FieldRelVolSustainMin,
}
