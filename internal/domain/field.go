package domain

import "time"

// Tier classifies the provider that produced a field. Precedence and
// reliability weighting both derive from it.
type Tier int

const (
	TierRealtime Tier = iota // real-time market data feed
	TierRegulatory
	TierAggregator
	TierDerived // locally derived proxy
)

func (t Tier) String() string {
	switch t {
	case TierRealtime:
		return "realtime"
	case TierRegulatory:
		return "regulatory"
	case TierAggregator:
		return "aggregator"
	case TierDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// Reliability returns the confidence multiplier applied to every field
// sourced from this tier.
func (t Tier) Reliability() float64 {
	switch t {
	case TierRealtime:
		return 0.98
	case TierRegulatory:
		return 0.95
	case TierAggregator:
		return 0.75
	case TierDerived:
		return 0.60
	default:
		return 0.0
	}
}

// Field is a single snapshot attribute with mandatory provenance. A field
// with no attributable source must be absent (nil), never defaulted.
type Field struct {
	Value      float64   `json:"value"`
	Source     string    `json:"source"`
	Tier       Tier      `json:"tier"`
	AsOf       time.Time `json:"as_of"`
	IngestedAt time.Time `json:"ingested_at"`
	Confidence float64   `json:"confidence"`
	Stale      bool      `json:"stale,omitempty"`
}

// Fresh reports whether the field is present and not flagged stale.
func (f *Field) Fresh() bool { return f != nil && !f.Stale }

// Val returns the field value and whether the field is usable for
// hard-gate evaluation (present and fresh).
func (f *Field) Val() (float64, bool) {
	if f == nil || f.Stale {
		return 0, false
	}
	return f.Value, true
}

// AnyVal returns the value regardless of staleness. Soft gates and
// detectors may consume stale fields at a confidence penalty.
func (f *Field) AnyVal() (float64, bool) {
	if f == nil {
		return 0, false
	}
	return f.Value, true
}

// FieldName identifies a snapshot attribute across providers, the
// staleness policy, and the fabrication ban list.
type FieldName string

const (
	FieldPrice             FieldName = "price"
	FieldSessionVolume     FieldName = "session_volume"
	FieldAvgVolume30d      FieldName = "avg_volume_30d"
	FieldRelVolume30d      FieldName = "rel_volume_30d"
	FieldATRPct            FieldName = "atr_pct"
	FieldVWAP              FieldName = "vwap"
	FieldSpreadBps         FieldName = "spread_bps"
	FieldValueTradedUSD    FieldName = "value_traded_usd"
	FieldShortInterestPct  FieldName = "short_interest_pct"
	FieldShortVolumeRatio  FieldName = "short_volume_ratio"
	FieldDaysToCover       FieldName = "days_to_cover"
	FieldFloatRotationPct  FieldName = "float_rotation_pct"
	FieldRegSHOFlag        FieldName = "reg_sho_flag"
	FieldGammaPressure     FieldName = "gamma_pressure"
	FieldCallPutRatio      FieldName = "call_put_ratio"
	FieldIVPercentile      FieldName = "iv_percentile"
	FieldUnusualOptionsVol FieldName = "unusual_options_vol"
	FieldOISkew            FieldName = "oi_skew"
	FieldNewsSentiment     FieldName = "news_sentiment"
	FieldSocialRank        FieldName = "social_rank"
	FieldSocialAccel       FieldName = "social_accel"
	FieldEventProximityD   FieldName = "event_proximity_days"
	FieldRSI               FieldName = "rsi"
	FieldEMA9              FieldName = "ema_9"
	FieldEMA20             FieldName = "ema_20"
	FieldUpDays            FieldName = "up_days"
	FieldBreakoutQuality   FieldName = "breakout_quality"
	FieldRelVolSustainMin  FieldName = "relvol_sustain_min"
)
