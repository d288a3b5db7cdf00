package detectors

import "github.com/ignitelab/ignite/internal/domain"

// VolumeMomentum scores the relative-volume surge, VWAP-reclaim
// proximity, consecutive up-day trend, and ATR expansion.
// Sub-weights: relvol 0.40, VWAP 0.30, uptrend 0.20, ATR 0.10.
type VolumeMomentum struct{}

func (VolumeMomentum) Name() string { return domain.DetectorVolumeMomentum }

func (VolumeMomentum) Detect(snap *domain.TickerSnapshot) domain.DetectorResult {
	a := newAcc(domain.DetectorVolumeMomentum)

	if rv, ok := snap.RelVolume30d.AnyVal(); ok {
		// 1x is baseline noise, 6x+ is a full surge.
		a.add("relvol", 0.40, (rv-1.0)/5.0, fieldConf(snap.RelVolume30d))
		if rv >= 3.0 {
			a.signal("relvol_surge")
		}
	}

	price, priceOK := snap.Price.AnyVal()
	if vwap, ok := snap.VWAP.AnyVal(); ok && priceOK {
		a.add("vwap_reclaim", 0.30, vwapReclaimScore(price, vwap), fieldConf(snap.Price, snap.VWAP))
		if price >= vwap {
			a.signal("vwap_reclaim")
		}
	}

	if upDays, ok := snap.UpDays.AnyVal(); ok {
		a.add("uptrend", 0.20, upDays/3.0, fieldConf(snap.UpDays))
		if upDays >= 3 {
			a.signal("uptrend")
		}
	}

	if atr, ok := snap.ATRPct.AnyVal(); ok {
		a.add("atr_expansion", 0.10, atr/0.05, fieldConf(snap.ATRPct))
		if atr >= 0.04 {
			a.signal("atr_expansion")
		}
	}

	return a.result()
}
