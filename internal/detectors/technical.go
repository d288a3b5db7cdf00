package detectors

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"

	"github.com/ignitelab/ignite/internal/domain"
)

// Technical scores the EMA(9/20) cross, RSI band positioning, VWAP
// reclaim strength, and breakout quality.
// Weights: EMA 0.40, RSI 0.30, VWAP 0.20, breakout 0.10.
//
// EMA and RSI prefer provider-computed fields; when only a close series
// is available they are derived locally at derived-proxy confidence.
type Technical struct{}

func (Technical) Name() string { return domain.DetectorTechnical }

const (
	emaFastPeriod = 9
	emaSlowPeriod = 20
	rsiPeriod     = 14
)

func (Technical) Detect(snap *domain.TickerSnapshot) domain.DetectorResult {
	a := newAcc(domain.DetectorTechnical)

	if fast, slow, conf, ok := emaPair(snap); ok {
		a.add("ema_cross", 0.40, emaCrossScore(fast, slow), conf)
		if fast > slow {
			a.signal("ema_bull_cross")
		}
	}

	if rsi, conf, ok := rsiValue(snap); ok {
		a.add("rsi_band", 0.30, rsiBandScore(rsi), conf)
		if rsi >= 60 && rsi <= 70 {
			a.signal("rsi_momentum_zone")
		}
	}

	price, priceOK := snap.Price.AnyVal()
	if vwap, ok := snap.VWAP.AnyVal(); ok && priceOK {
		a.add("vwap_reclaim", 0.20, vwapReclaimScore(price, vwap), fieldConf(snap.Price, snap.VWAP))
	}

	if breakout, ok := snap.BreakoutQuality.AnyVal(); ok {
		a.add("breakout", 0.10, breakout, fieldConf(snap.BreakoutQuality))
		if breakout >= 0.7 {
			a.signal("breakout")
		}
	}

	return a.result()
}

func emaPair(snap *domain.TickerSnapshot) (fast, slow, conf float64, ok bool) {
	f, fOK := snap.EMA9.AnyVal()
	s, sOK := snap.EMA20.AnyVal()
	if fOK && sOK {
		return f, s, fieldConf(snap.EMA9, snap.EMA20), true
	}
	if len(snap.Closes) >= emaSlowPeriod+1 {
		fast = lastOf(trend.NewEmaWithPeriod[float64](emaFastPeriod), snap.Closes)
		slow = lastOf(trend.NewEmaWithPeriod[float64](emaSlowPeriod), snap.Closes)
		return fast, slow, domain.TierDerived.Reliability(), true
	}
	return 0, 0, 0, false
}

func rsiValue(snap *domain.TickerSnapshot) (float64, float64, bool) {
	if rsi, ok := snap.RSI.AnyVal(); ok {
		return rsi, fieldConf(snap.RSI), true
	}
	if len(snap.Closes) >= rsiPeriod+1 {
		rsi := lastOf(momentum.NewRsiWithPeriod[float64](rsiPeriod), snap.Closes)
		return rsi, domain.TierDerived.Reliability(), true
	}
	return 0, 0, false
}

// computer is the shared shape of the indicator library's streaming
// calculators.
type computer interface {
	Compute(<-chan float64) <-chan float64
}

func lastOf(ind computer, closes []float64) float64 {
	series := helper.ChanToSlice(ind.Compute(helper.SliceToChan(closes)))
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaCrossScore rewards a bullish fast-over-slow cross, scaling with
// the gap; a 2% gap saturates.
func emaCrossScore(fast, slow float64) float64 {
	if slow <= 0 {
		return 0
	}
	gap := (fast - slow) / slow
	if gap >= 0 {
		return clamp01(0.5 + gap*25)
	}
	return 0.2 * clamp01(1+gap*50)
}

// rsiBandScore targets the 60-70 "momentum, not overbought" zone.
func rsiBandScore(rsi float64) float64 {
	switch {
	case rsi < 40:
		return 0
	case rsi < 60:
		return 0.8 * (rsi - 40) / 20
	case rsi <= 70:
		return 1.0
	case rsi <= 80:
		return 1.0 - 0.7*(rsi-70)/10
	default:
		return 0.1
	}
}
