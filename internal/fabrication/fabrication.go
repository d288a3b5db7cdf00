// Package fabrication rejects placeholder-looking literal values that
// lack verifiable source attribution. It guards against silently
// introduced defaults masquerading as real market data.
package fabrication

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ignitelab/ignite/internal/domain"
)

// bannedLiterals are values that show up when a default leaks in.
var bannedLiterals = []float64{25.0, 0.25, 30.0, 0.30, 50.0, 100.0, 1.0}

// guardedFields are the semantic fields the ban list applies to.
// hardGate marks fields that feed a hard gate: losing one drops the
// whole candidate, but only while that gate is actually active.
var guardedFields = map[domain.FieldName]struct{ hardGate bool }{
	domain.FieldShortInterestPct:  {hardGate: false},
	domain.FieldIVPercentile:      {hardGate: false},
	domain.FieldSocialRank:        {hardGate: false},
	domain.FieldRelVolume30d:      {hardGate: true}, // feeds the min_rel_vol hard gate
	domain.FieldUnusualOptionsVol: {hardGate: false},
}

const literalEpsilon = 1e-9

// Violation records one rejected field.
type Violation struct {
	Symbol string           `json:"symbol"`
	Field  domain.FieldName `json:"field"`
	Value  float64          `json:"value"`
	Source string           `json:"source"`
	// DropCandidate is set when the field was required for a hard gate.
	DropCandidate bool `json:"drop_candidate"`
}

// Validator checks guarded fields against the ban list. relVolGated
// says whether the min_rel_vol hard gate is active for this run's
// session; with the gate disabled, a fabricated rel-vol costs the
// field, not the candidate.
type Validator struct {
	relVolGated bool
}

func NewValidator(relVolGated bool) *Validator {
	return &Validator{relVolGated: relVolGated}
}

// Validate scans a snapshot's guarded fields. Offending fields are
// removed from the snapshot (dropped, never substituted); the returned
// violations say whether the candidate itself must go. Every rejection
// is logged with the offending value and its (missing) source.
func (v *Validator) Validate(snap *domain.TickerSnapshot) []Violation {
	var violations []Violation
	for name, meta := range guardedFields {
		slot := snap.FieldByName(name)
		if slot == nil || *slot == nil {
			continue
		}
		f := *slot
		if !isBanned(f.Value) {
			continue
		}
		if f.Source != "" {
			// Attributable data is accepted even at a banned literal.
			continue
		}
		drop := meta.hardGate && v.relVolGated
		violations = append(violations, Violation{
			Symbol:        snap.Symbol,
			Field:         name,
			Value:         f.Value,
			Source:        f.Source,
			DropCandidate: drop,
		})
		*slot = nil

		log.Warn().Str("symbol", snap.Symbol).
			Str("field", string(name)).
			Float64("value", f.Value).
			Str("source", f.Source).
			Bool("drop_candidate", drop).
			Str("reason", domain.ReasonFabricatedValue).
			Msg("anti-fabrication rejection")
	}
	return violations
}

// DropsCandidate reports whether any violation requires dropping the
// whole candidate rather than just the field.
func DropsCandidate(violations []Violation) bool {
	for _, v := range violations {
		if v.DropCandidate {
			return true
		}
	}
	return false
}

func isBanned(v float64) bool {
	for _, b := range bannedLiterals {
		if math.Abs(v-b) < literalEpsilon {
			return true
		}
	}
	return false
}
