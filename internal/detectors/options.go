package detectors

import "github.com/ignitelab/ignite/internal/domain"

// OptionsFlow scores gamma-squeeze potential, call/put flow ratio,
// implied-volatility percentile, and the unusual options-volume ratio.
// Weights: gamma 0.40, flow 0.30, IV 0.20, unusual 0.10.
type OptionsFlow struct{}

func (OptionsFlow) Name() string { return domain.DetectorOptionsFlow }

func (OptionsFlow) Detect(snap *domain.TickerSnapshot) domain.DetectorResult {
	a := newAcc(domain.DetectorOptionsFlow)

	if gamma, ok := snap.GammaPressure.AnyVal(); ok {
		a.add("gamma", 0.40, gamma, fieldConf(snap.GammaPressure))
		if gamma >= 0.7 {
			a.signal("gamma_squeeze_setup")
		}
	}

	if cpr, ok := snap.CallPutRatio.AnyVal(); ok {
		// 1.0 is balanced flow; 3.0+ is heavily call-skewed.
		a.add("flow", 0.30, (cpr-1.0)/2.0, fieldConf(snap.CallPutRatio))
		if cpr >= 2.0 {
			a.signal("call_heavy_flow")
		}
	}

	if ivp, ok := snap.IVPercentile.AnyVal(); ok {
		a.add("iv", 0.20, ivp/100.0, fieldConf(snap.IVPercentile))
	}

	if unusual, ok := snap.UnusualOptionsVol.AnyVal(); ok {
		a.add("unusual", 0.10, ratioScore(unusual, 3.0), fieldConf(snap.UnusualOptionsVol))
		if unusual >= 3.0 {
			a.signal("unusual_options_volume")
		}
	}

	return a.result()
}
