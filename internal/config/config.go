package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DetectorWeights is one composite weight profile. Every active profile
// must sum to 1.0 within 1e-6.
type DetectorWeights struct {
	VolumeMomentum float64 `yaml:"volume_momentum" json:"volume_momentum"`
	Squeeze        float64 `yaml:"squeeze" json:"squeeze"`
	Catalyst       float64 `yaml:"catalyst" json:"catalyst"`
	OptionsFlow    float64 `yaml:"options_flow" json:"options_flow"`
	Technical      float64 `yaml:"technical" json:"technical"`
}

func (w DetectorWeights) Sum() float64 {
	return w.VolumeMomentum + w.Squeeze + w.Catalyst + w.OptionsFlow + w.Technical
}

// GateThresholds holds the hard-gate values for one session.
type GateThresholds struct {
	PriceMin       float64 `yaml:"price_min"`
	PriceMax       float64 `yaml:"price_max"`
	MinDollarVol   float64 `yaml:"min_dollar_vol"`
	SpreadMaxBps   float64 `yaml:"spread_max_bps"`
	ValueTradedMin float64 `yaml:"value_traded_min"`
	MinRelVol      float64 `yaml:"min_rel_vol"`
	// RequireVWAPReclaim enables the optional vwap_reclaim hard gate.
	// Premarket disables it: VWAP is unreliable before the open.
	RequireVWAPReclaim bool `yaml:"require_vwap_reclaim"`
}

// SessionOverrides carries per-session gate and weight substitutions.
// Zero-valued numeric gate fields inherit the base thresholds, so a
// partial override never zeroes out a gate it did not name.
type SessionOverrides struct {
	Gates   *GateThresholds  `yaml:"gates,omitempty"`
	Weights *DetectorWeights `yaml:"weights,omitempty"`
}

// SoftGateConfig tunes the multiplicative confidence penalty model.
type SoftGateConfig struct {
	Floor                  float64 `yaml:"floor"`                    // minimum adjusted confidence
	AgePenaltyPerHour      float64 `yaml:"age_penalty_per_hour"`     // per stale field, compounding
	AgePenaltyCapHours     float64 `yaml:"age_penalty_cap_hours"`    // cap on counted hours per field
	MissingProviderPenalty float64 `yaml:"missing_provider_penalty"` // per required provider tier absent
	LowFieldConfPenalty    float64 `yaml:"low_field_conf_penalty"`   // applied once when any field conf < cutoff
	LowFieldConfCutoff     float64 `yaml:"low_field_conf_cutoff"`
	MaxSoftPass            int     `yaml:"max_soft_pass"`    // near-miss promotions per run, 0 disables
	SoftPassMargin         float64 `yaml:"soft_pass_margin"` // points below the watchlist boundary
}

// TieringConfig maps composite scores to action tags.
type TieringConfig struct {
	TradeReady float64 `yaml:"trade_ready"`
	Watchlist  float64 `yaml:"watchlist"`
}

// ExplosiveConfig tunes the EGS/SER shortlist pass. All thresholds are
// configuration defaults, not hard-coded law.
type ExplosiveConfig struct {
	PrimeTier       float64 `yaml:"prime_tier"`
	StrongTier      float64 `yaml:"strong_tier"`
	FloorTier       float64 `yaml:"floor_tier"`
	ElasticFallback bool    `yaml:"elastic_fallback"`
	FallbackDelta   float64 `yaml:"fallback_delta"` // floor reduction, applied at most once per run
	MaxShortlist    int     `yaml:"max_shortlist"`
}

// StalenessPolicy holds per-field maximum ages. Market-hours quotes and
// bars get tighter bounds than extended hours.
type StalenessPolicy struct {
	QuoteMarket    Duration `yaml:"quote_market"`
	QuoteExtended  Duration `yaml:"quote_extended"`
	BarMarket      Duration `yaml:"bar_market"`
	BarExtended    Duration `yaml:"bar_extended"`
	VWAP           Duration `yaml:"vwap"`
	Daily          Duration `yaml:"daily"` // daily aggregates: ATR%, 30d volume, RSI
	ShortInterest  Duration `yaml:"short_interest"`
	ShortVolume    Duration `yaml:"short_volume"`
	Options        Duration `yaml:"options"`
	NewsSocial     Duration `yaml:"news_social"`
	// CoverageLimit is the fraction of required fields allowed to be
	// stale before the whole run fails closed with status=stale_data.
	CoverageLimit float64 `yaml:"coverage_limit"`
}

// PublishConfig controls the Redis result/trace store and run lock.
type PublishConfig struct {
	Addr      string   `yaml:"addr"`
	Strategy  string   `yaml:"strategy"`
	ResultTTL Duration `yaml:"result_ttl"`
	TraceTTL  Duration `yaml:"trace_ttl"`
	LockTTL   Duration `yaml:"lock_ttl"`
}

// ArchiveConfig enables the optional Postgres trace archive.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"`
}

// Config is the immutable, versioned calibration object injected into
// each run. Updates create a new version; a live run never observes a
// mid-flight change.
type Config struct {
	Version       string                       `yaml:"version"`
	ExchangeTZ    string                       `yaml:"exchange_tz"`
	Workers       int                          `yaml:"workers"`
	LatencyBudget Duration                     `yaml:"latency_budget"`
	Gates         GateThresholds               `yaml:"gates"`
	Weights       DetectorWeights              `yaml:"weights"`
	Sessions      map[string]SessionOverrides  `yaml:"sessions"`
	Soft          SoftGateConfig               `yaml:"soft"`
	Tiering       TieringConfig                `yaml:"tiering"`
	Explosive     ExplosiveConfig              `yaml:"explosive"`
	Staleness     StalenessPolicy              `yaml:"staleness"`
	Publish       PublishConfig                `yaml:"publish"`
	Archive       ArchiveConfig                `yaml:"archive"`
}

// Default returns the production default calibration.
func Default() *Config {
	cfg := &Config{
		Version:       "v1",
		ExchangeTZ:    "America/New_York",
		Workers:       16,
		LatencyBudget: Duration(30 * time.Second),
		Gates: GateThresholds{
			PriceMin:           1.0,
			PriceMax:           100.0,
			MinDollarVol:       5_000_000,
			SpreadMaxBps:       60.0,
			ValueTradedMin:     1_000_000,
			MinRelVol:          1.5,
			RequireVWAPReclaim: false,
		},
		Weights: DetectorWeights{
			VolumeMomentum: 0.35,
			Squeeze:        0.25,
			Catalyst:       0.20,
			OptionsFlow:    0.10,
			Technical:      0.10,
		},
		Soft: SoftGateConfig{
			Floor:                  0.10,
			AgePenaltyPerHour:      0.10,
			AgePenaltyCapHours:     5.0,
			MissingProviderPenalty: 0.15,
			LowFieldConfPenalty:    0.20,
			LowFieldConfCutoff:     0.50,
			MaxSoftPass:            0,
			SoftPassMargin:         2.0,
		},
		Tiering: TieringConfig{
			TradeReady: 75.0,
			Watchlist:  70.0,
		},
		Explosive: ExplosiveConfig{
			PrimeTier:       60.0,
			StrongTier:      50.0,
			FloorTier:       45.0,
			ElasticFallback: true,
			FallbackDelta:   5.0,
			MaxShortlist:    10,
		},
		Staleness: StalenessPolicy{
			QuoteMarket:   Duration(2 * time.Second),
			QuoteExtended: Duration(10 * time.Second),
			BarMarket:     Duration(15 * time.Second),
			BarExtended:   Duration(60 * time.Second),
			VWAP:          Duration(30 * time.Second),
			Daily:         Duration(36 * time.Hour),
			ShortInterest: Duration(20 * 24 * time.Hour),
			ShortVolume:   Duration(36 * time.Hour),
			Options:       Duration(24 * time.Hour),
			NewsSocial:    Duration(6 * time.Hour),
			CoverageLimit: 0.40,
		},
		Publish: PublishConfig{
			Addr:      "localhost:6379",
			Strategy:  "explosive",
			ResultTTL: Duration(5 * time.Minute),
			TraceTTL:  Duration(10 * time.Minute),
			LockTTL:   Duration(60 * time.Second),
		},
	}

	premktGates := cfg.Gates
	premktGates.MinRelVol = 3.0 // thin tape: demand a real volume anomaly
	premktGates.SpreadMaxBps = 120.0
	premktGates.RequireVWAPReclaim = false

	afterGates := cfg.Gates
	afterGates.SpreadMaxBps = 100.0

	cfg.Sessions = map[string]SessionOverrides{
		"premarket": {
			Gates: &premktGates,
			Weights: &DetectorWeights{
				VolumeMomentum: 0.40,
				Squeeze:        0.25,
				Catalyst:       0.20,
				OptionsFlow:    0.05,
				Technical:      0.10,
			},
		},
		"afterhours": {
			Gates: &afterGates,
			Weights: &DetectorWeights{
				VolumeMomentum: 0.30,
				Squeeze:        0.20,
				Catalyst:       0.35,
				OptionsFlow:    0.05,
				Technical:      0.10,
			},
		},
	}

	return cfg
}

// Load reads a yaml calibration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const weightTolerance = 1e-6

// Validate enforces weight normalization and gate sanity for the base
// profile and every session override.
func (c *Config) Validate() error {
	if err := validateWeights("base", c.Weights); err != nil {
		return err
	}
	if c.Gates.PriceMin <= 0 || c.Gates.PriceMax <= c.Gates.PriceMin {
		return fmt.Errorf("gate price band [%.2f, %.2f] is invalid", c.Gates.PriceMin, c.Gates.PriceMax)
	}
	for name, so := range c.Sessions {
		if so.Weights != nil {
			if err := validateWeights(name, *so.Weights); err != nil {
				return err
			}
		}
		if so.Gates != nil {
			// Session gates are checked post-inheritance: what Validate
			// approves is what GatesFor will hand to a run.
			g := mergeGates(c.Gates, *so.Gates)
			if g.PriceMin <= 0 || g.PriceMax <= g.PriceMin {
				return fmt.Errorf("session %q gate price band [%.2f, %.2f] is invalid", name, g.PriceMin, g.PriceMax)
			}
		}
	}
	if c.Soft.Floor <= 0 || c.Soft.Floor >= 1 {
		return fmt.Errorf("soft gate floor %.2f must be in (0,1)", c.Soft.Floor)
	}
	if c.Explosive.FloorTier > c.Explosive.StrongTier || c.Explosive.StrongTier > c.Explosive.PrimeTier {
		return fmt.Errorf("explosive tiers must be ordered floor ≤ strong ≤ prime")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

func validateWeights(profile string, w DetectorWeights) error {
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("weight profile %q sums to %.6f, expected 1.0", profile, w.Sum())
	}
	return nil
}

// WeightsFor returns the active weight profile for a session name.
func (c *Config) WeightsFor(session string) DetectorWeights {
	if so, ok := c.Sessions[session]; ok && so.Weights != nil {
		return *so.Weights
	}
	return c.Weights
}

// GatesFor returns the active hard-gate thresholds for a session name.
// Override fields left at zero inherit the base value, so a yaml block
// naming one threshold does not silently reset the rest.
func (c *Config) GatesFor(session string) GateThresholds {
	if so, ok := c.Sessions[session]; ok && so.Gates != nil {
		return mergeGates(c.Gates, *so.Gates)
	}
	return c.Gates
}

// mergeGates fills zero-valued numeric fields of an override from the
// base profile. RequireVWAPReclaim is taken from the override as
// written: false is a setting, not an absence. Disabling min_rel_vol
// is therefore a base-profile decision, never a per-session zero.
func mergeGates(base, o GateThresholds) GateThresholds {
	if o.PriceMin == 0 {
		o.PriceMin = base.PriceMin
	}
	if o.PriceMax == 0 {
		o.PriceMax = base.PriceMax
	}
	if o.MinDollarVol == 0 {
		o.MinDollarVol = base.MinDollarVol
	}
	if o.SpreadMaxBps == 0 {
		o.SpreadMaxBps = base.SpreadMaxBps
	}
	if o.ValueTradedMin == 0 {
		o.ValueTradedMin = base.ValueTradedMin
	}
	if o.MinRelVol == 0 {
		o.MinRelVol = base.MinRelVol
	}
	return o
}
