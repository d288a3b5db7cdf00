// Package detectors holds the five independent, stateless scorers. Each
// consumes the merged snapshot and produces a score and confidence in
// [0,1] plus a sub-factor breakdown. A detector whose inputs are all
// absent reports score=0, confidence=0 — never a guessed value.
package detectors

import (
	"github.com/ignitelab/ignite/internal/domain"
)

// Detector is one scorer in the suite.
type Detector interface {
	Name() string
	Detect(snap *domain.TickerSnapshot) domain.DetectorResult
}

// Suite runs all registered detectors over one snapshot.
type Suite struct {
	detectors []Detector
}

func NewSuite() *Suite {
	return &Suite{detectors: []Detector{
		&VolumeMomentum{},
		&Squeeze{},
		&Catalyst{},
		&OptionsFlow{},
		&Technical{},
	}}
}

func (s *Suite) Run(snap *domain.TickerSnapshot) map[string]domain.DetectorResult {
	out := make(map[string]domain.DetectorResult, len(s.detectors))
	for _, d := range s.detectors {
		out[d.Name()] = d.Detect(snap)
	}
	return out
}

// acc accumulates weighted sub-factors. Absent factors drop out and the
// score renormalizes over the weight actually observed, so missing
// optional enrichment lowers coverage-confidence rather than dragging
// the score to zero.
type acc struct {
	detector   string
	weighted   float64
	weightSum  float64
	components map[string]float64
	minConf    float64
	signals    []string
}

func newAcc(detector string) *acc {
	return &acc{detector: detector, components: map[string]float64{}, minConf: 1.0}
}

// add records one sub-factor with the confidence of the fields it
// consumed. conf is the minimum confidence among those inputs.
func (a *acc) add(name string, weight, score, conf float64) {
	a.weighted += weight * clamp01(score)
	a.weightSum += weight
	a.components[name] = clamp01(score)
	if conf < a.minConf {
		a.minConf = conf
	}
}

func (a *acc) signal(tag string) { a.signals = append(a.signals, tag) }

func (a *acc) result() domain.DetectorResult {
	if a.weightSum == 0 {
		return domain.DetectorResult{Detector: a.detector, Score: 0, Confidence: 0}
	}
	return domain.DetectorResult{
		Detector:   a.detector,
		Score:      clamp01(a.weighted / a.weightSum),
		Confidence: clamp01(a.minConf),
		Signals:    a.signals,
		Components: a.components,
	}
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

// fieldConf returns the min confidence across present fields.
func fieldConf(fields ...*domain.Field) float64 {
	conf := 1.0
	for _, f := range fields {
		if f != nil && f.Confidence < conf {
			conf = f.Confidence
		}
	}
	return conf
}

// vwapReclaimScore measures reclaim strength: full credit above VWAP
// scaling with distance, partial credit for near-miss proximity below.
func vwapReclaimScore(price, vwap float64) float64 {
	if vwap <= 0 {
		return 0
	}
	dist := (price - vwap) / vwap
	if dist >= 0 {
		return clamp01(0.8 + dist*20) // +1% above VWAP saturates
	}
	return 0.5 * clamp01(1+dist*50) // fades to 0 at 2% below
}

func ratioScore(v, saturation float64) float64 {
	if saturation <= 0 {
		return 0
	}
	return clamp01(v / saturation)
}
