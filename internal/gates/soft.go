package gates

import (
	"fmt"
	"math"
	"time"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
)

// AgePolicy exposes the per-field staleness bounds. Satisfied by
// snapshot.Normalizer.
type AgePolicy interface {
	MaxAge(name domain.FieldName, marketHours bool) time.Duration
}

// Adjuster applies the multiplicative soft-gate penalty model. Soft
// gates never zero a score — they only shrink confidence, floored.
type Adjuster struct {
	cfg  config.SoftGateConfig
	ages AgePolicy
}

func NewAdjuster(cfg config.SoftGateConfig, ages AgePolicy) *Adjuster {
	return &Adjuster{cfg: cfg, ages: ages}
}

// Adjust shrinks base confidence for staleness, missing providers, and
// low per-field confidence. Returns the adjusted confidence and the
// penalty tags applied (which become candidate risk flags).
func (a *Adjuster) Adjust(base float64, snap *domain.TickerSnapshot, marketHours bool, now time.Time) (float64, []string) {
	mult := 1.0
	var flags []string

	// Data-age penalty: per stale field, compounding per hour beyond
	// the field's staleness threshold, hours capped.
	lowConfSeen := false
	for _, name := range snapFieldNames {
		slot := snap.FieldByName(name)
		if slot == nil || *slot == nil {
			continue
		}
		f := *slot
		if f.Confidence < a.cfg.LowFieldConfCutoff {
			lowConfSeen = true
		}
		if !f.Stale {
			continue
		}
		maxAge := a.ages.MaxAge(name, marketHours)
		hoursBeyond := now.Sub(f.AsOf.Add(maxAge)).Hours()
		if hoursBeyond <= 0 {
			hoursBeyond = 0
		}
		hours := math.Min(hoursBeyond, a.cfg.AgePenaltyCapHours)
		mult *= math.Pow(1.0-a.cfg.AgePenaltyPerHour, hours)
		flags = append(flags, fmt.Sprintf("stale:%s", name))
	}

	// Missing-provider penalty: per required tier with no contribution.
	present := map[domain.Tier]bool{}
	for _, name := range snapFieldNames {
		slot := snap.FieldByName(name)
		if slot != nil && *slot != nil {
			present[(*slot).Tier] = true
		}
	}
	for _, tier := range domain.RequiredProviders {
		if !present[tier] {
			mult *= 1.0 - a.cfg.MissingProviderPenalty
			flags = append(flags, fmt.Sprintf("missing_provider:%s", tier))
		}
	}

	// Low-field-confidence penalty, applied once.
	if lowConfSeen {
		mult *= 1.0 - a.cfg.LowFieldConfPenalty
		flags = append(flags, "low_field_confidence")
	}

	adjusted := base * mult
	if adjusted < a.cfg.Floor {
		adjusted = a.cfg.Floor
	}
	return adjusted, flags
}

// snapFieldNames mirrors the snapshot's full field set for uniform
// iteration in the penalty model.
var snapFieldNames = []domain.FieldName{
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
