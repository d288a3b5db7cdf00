package domain

import "time"

// DetectorResult is the immutable per-symbol output of one detector.
// Score and Confidence are both in [0,1]. Components break the score
// down by sub-factor using the detector's own weighting scheme.
type DetectorResult struct {
	Detector   string             `json:"detector"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Signals    []string           `json:"signals,omitempty"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Detector names, also used as composite weight keys.
const (
	DetectorVolumeMomentum = "volume_momentum"
	DetectorSqueeze        = "squeeze"
	DetectorCatalyst       = "catalyst"
	DetectorOptionsFlow    = "options_flow"
	DetectorTechnical      = "technical"
)

// GateCheck records one hard-gate predicate with its evidence.
type GateCheck struct {
	ID          string  `json:"id"`
	Passed      bool    `json:"passed"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Description string  `json:"description"`
	DataMissing bool    `json:"data_missing,omitempty"`
}

// HardGateOutcome is the full eligibility verdict for one symbol. All
// gates are always evaluated so the complete failure set is observable.
type HardGateOutcome struct {
	Symbol        string       `json:"symbol"`
	Passed        bool         `json:"passed"`
	FailedGateIDs []string     `json:"failed_gate_ids,omitempty"`
	Checks        []*GateCheck `json:"checks"`
}

// ActionTag is the tier assigned to a composite candidate.
type ActionTag string

const (
	ActionTradeReady ActionTag = "trade_ready"
	ActionWatchlist  ActionTag = "watchlist"
	ActionMonitor    ActionTag = "monitor"
	ActionRejected   ActionTag = "rejected"
)

// CompositeCandidate is the per-symbol result of one run. It is created
// once, never mutated, and superseded by the next run's candidate.
type CompositeCandidate struct {
	Symbol     string                    `json:"symbol"`
	Timestamp  time.Time                 `json:"timestamp"`
	TotalScore float64                   `json:"total_score"` // 0..100
	Confidence float64                   `json:"confidence"`  // 0..1, soft-gate adjusted
	Detectors  map[string]DetectorResult `json:"detectors,omitempty"`
	ActionTag  ActionTag                 `json:"action_tag"`
	RiskFlags  []string                  `json:"risk_flags,omitempty"`
	Session    string                    `json:"session"`
}

// ExplosiveTier labels shortlist strength bands.
type ExplosiveTier string

const (
	TierPrime  ExplosiveTier = "prime"
	TierStrong ExplosiveTier = "strong"
	TierFloor  ExplosiveTier = "floor"
)

// ExplosiveCandidate is the derived shortlist view over a composite
// candidate that cleared the stricter EGS gate.
type ExplosiveCandidate struct {
	Symbol     string             `json:"symbol"`
	EGS        float64            `json:"egs"` // Explosive Gate Score, 0..100
	SER        float64            `json:"ser"` // Structured Explosive Rank, 0..100
	Tier       ExplosiveTier      `json:"tier"`
	Components map[string]float64 `json:"components,omitempty"`
	Composite  CompositeCandidate `json:"composite"`
}
