package domain

import "time"

// Catalyst is a tagged upcoming or recent event attached to a snapshot.
type Catalyst struct {
	Tag        string    `json:"tag"` // e.g. "earnings", "fda", "m&a"
	Source     string    `json:"source"`
	Tier       Tier      `json:"tier"`
	PublishedAt time.Time `json:"published_at"`
}

// TickerSnapshot is the merged, provenance-carrying view of one symbol
// for one run. Core liquidity fields are required for gating; the rest
// is optional provider enrichment consumed by individual detectors.
// Absent fields are nil — never zero-filled.
type TickerSnapshot struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	// Core liquidity and price fields (hard-gate inputs).
	Price          *Field `json:"price,omitempty"`
	SessionVolume  *Field `json:"session_volume,omitempty"`
	AvgVolume30d   *Field `json:"avg_volume_30d,omitempty"`
	RelVolume30d   *Field `json:"rel_volume_30d,omitempty"`
	ATRPct         *Field `json:"atr_pct,omitempty"`
	VWAP           *Field `json:"vwap,omitempty"`
	SpreadBps      *Field `json:"spread_bps,omitempty"`
	ValueTradedUSD *Field `json:"value_traded_usd,omitempty"`

	// Squeeze enrichment.
	ShortInterestPct *Field `json:"short_interest_pct,omitempty"`
	ShortVolumeRatio *Field `json:"short_volume_ratio,omitempty"`
	DaysToCover      *Field `json:"days_to_cover,omitempty"`
	FloatRotationPct *Field `json:"float_rotation_pct,omitempty"`
	RegSHOFlag       *Field `json:"reg_sho_flag,omitempty"`

	// Options enrichment.
	GammaPressure     *Field `json:"gamma_pressure,omitempty"`
	CallPutRatio      *Field `json:"call_put_ratio,omitempty"`
	IVPercentile      *Field `json:"iv_percentile,omitempty"`
	UnusualOptionsVol *Field `json:"unusual_options_vol,omitempty"`
	OISkew            *Field `json:"oi_skew,omitempty"`

	// Catalyst / social enrichment.
	NewsSentiment      *Field     `json:"news_sentiment,omitempty"`
	SocialRank         *Field     `json:"social_rank,omitempty"`
	SocialAccel        *Field     `json:"social_accel,omitempty"`
	EventProximityDays *Field     `json:"event_proximity_days,omitempty"`
	Catalysts          []Catalyst `json:"catalysts,omitempty"`

	// Technical enrichment.
	RSI              *Field    `json:"rsi,omitempty"`
	EMA9             *Field    `json:"ema_9,omitempty"`
	EMA20            *Field    `json:"ema_20,omitempty"`
	UpDays           *Field    `json:"up_days,omitempty"`
	BreakoutQuality  *Field    `json:"breakout_quality,omitempty"`
	RelVolSustainMin *Field    `json:"relvol_sustain_min,omitempty"`
	Closes           []float64 `json:"-"` // intraday close series for indicator math

	// Providers that contributed at least one field, by name.
	Providers []string `json:"providers,omitempty"`
}

// FieldByName returns the pointer slot for a named field so the
// normalizer and fabrication validator can treat fields uniformly.
func (s *TickerSnapshot) FieldByName(name FieldName) **Field {
	switch name {
	case FieldPrice:
		return &s.Price
	case FieldSessionVolume:
		return &s.SessionVolume
	case FieldAvgVolume30d:
		return &s.AvgVolume30d
	case FieldRelVolume30d:
		return &s.RelVolume30d
	case FieldATRPct:
		return &s.ATRPct
	case FieldVWAP:
		return &s.VWAP
	case FieldSpreadBps:
		return &s.SpreadBps
	case FieldValueTradedUSD:
		return &s.ValueTradedUSD
	case FieldShortInterestPct:
		return &s.ShortInterestPct
	case FieldShortVolumeRatio:
		return &s.ShortVolumeRatio
	case FieldDaysToCover:
		return &s.DaysToCover
	case FieldFloatRotationPct:
		return &s.FloatRotationPct
	case FieldRegSHOFlag:
		return &s.RegSHOFlag
	case FieldGammaPressure:
		return &s.GammaPressure
	case FieldCallPutRatio:
		return &s.CallPutRatio
	case FieldIVPercentile:
		return &s.IVPercentile
	case FieldUnusualOptionsVol:
		return &s.UnusualOptionsVol
	case FieldOISkew:
		return &s.OISkew
	case FieldNewsSentiment:
		return &s.NewsSentiment
	case FieldSocialRank:
		return &s.SocialRank
	case FieldSocialAccel:
		return &s.SocialAccel
	case FieldEventProximityD:
		return &s.EventProximityDays
	case FieldRSI:
		return &s.RSI
	case FieldEMA9:
		return &s.EMA9
	case FieldEMA20:
		return &s.EMA20
	case FieldUpDays:
		return &s.UpDays
	case FieldBreakoutQuality:
		return &s.BreakoutQuality
	case FieldRelVolSustainMin:
		return &s.RelVolSustainMin
	default:
		return nil
	}
}

// RequiredFields are the attributes counted toward the run-level
// staleness coverage check.
var RequiredFields = []FieldName{
	FieldPrice,
	FieldSessionVolume,
	FieldAvgVolume30d,
	FieldRelVolume30d,
	FieldVWAP,
	FieldSpreadBps,
	FieldValueTradedUSD,
}

// RequiredProviders are the provider tiers a fully-confident candidate
// is expected to have contributions from. Missing tiers trigger the
// soft-gate missing-provider penalty.
var RequiredProviders = []Tier{TierRealtime, TierRegulatory}
