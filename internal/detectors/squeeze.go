package detectors

import "github.com/ignitelab/ignite/internal/domain"

// Squeeze scores float rotation, short-interest level, a statistically
// derived borrow-stress proxy, and gamma pressure from options
// positioning. True borrow-cost data is rarely available for this
// universe, so stress is proxied from short-volume ratio, days-to-cover,
// and the regulatory threshold-list flag.
type Squeeze struct{}

func (Squeeze) Name() string { return domain.DetectorSqueeze }

func (Squeeze) Detect(snap *domain.TickerSnapshot) domain.DetectorResult {
	a := newAcc(domain.DetectorSqueeze)

	if frot, ok := snap.FloatRotationPct.AnyVal(); ok {
		a.add("float_rotation", 0.35, frot/100.0, fieldConf(snap.FloatRotationPct))
		if frot >= 100 {
			a.signal("float_rotated")
		}
	}

	if si, ok := snap.ShortInterestPct.AnyVal(); ok {
		a.add("short_interest", 0.30, si/40.0, fieldConf(snap.ShortInterestPct))
		if si >= 20 {
			a.signal("high_short_interest")
		}
	}

	if stress, conf, ok := borrowStressProxy(snap); ok {
		a.add("borrow_stress", 0.20, stress, conf)
		if stress >= 0.7 {
			a.signal("borrow_stress")
		}
	}

	if gamma, ok := snap.GammaPressure.AnyVal(); ok {
		a.add("gamma_pressure", 0.15, gamma, fieldConf(snap.GammaPressure))
	}

	return a.result()
}

// borrowStressProxy blends short-volume ratio, days-to-cover, and the
// reg-SHO flag into [0,1]. Parts renormalize over what is present.
func borrowStressProxy(snap *domain.TickerSnapshot) (float64, float64, bool) {
	var weighted, weightSum float64
	conf := 1.0

	if svr, ok := snap.ShortVolumeRatio.AnyVal(); ok {
		weighted += 0.5 * ratioScore(svr, 0.6)
		weightSum += 0.5
		conf = min2(conf, fieldConf(snap.ShortVolumeRatio))
	}
	if dtc, ok := snap.DaysToCover.AnyVal(); ok {
		weighted += 0.3 * ratioScore(dtc, 5.0)
		weightSum += 0.3
		conf = min2(conf, fieldConf(snap.DaysToCover))
	}
	if flag, ok := snap.RegSHOFlag.AnyVal(); ok {
		weighted += 0.2 * clamp01(flag)
		weightSum += 0.2
		conf = min2(conf, fieldConf(snap.RegSHOFlag))
	}

	if weightSum == 0 {
		return 0, 0, false
	}
	return weighted / weightSum, conf, true
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
