// Package gates implements the binary eligibility filter (hard gates)
// and the confidence-shrinking soft gate. Hard gates remove symbols;
// soft gates only reduce confidence.
package gates

import (
	"fmt"

	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/domain"
)

// Validator evaluates the fixed ordered hard-gate list. Short-circuiting
// is deliberately not used: every gate runs so the full failure set is
// recorded for the run trace.
type Validator struct {
	thresholds config.GateThresholds
}

func NewValidator(thresholds config.GateThresholds) *Validator {
	return &Validator{thresholds: thresholds}
}

// Validate runs all gates against one snapshot. Stale fields are
// excluded from evaluation: a gate whose input is stale or absent fails
// with DataMissing set, never passes on old data.
func (v *Validator) Validate(snap *domain.TickerSnapshot) *domain.HardGateOutcome {
	t := v.thresholds
	outcome := &domain.HardGateOutcome{Symbol: snap.Symbol}

	price, priceOK := snap.Price.Val()

	// Gate 1: price band.
	check := &domain.GateCheck{ID: domain.GatePriceCap, Value: price, Threshold: t.PriceMax}
	if !priceOK {
		check.DataMissing = true
		check.Description = "price unavailable or stale"
	} else {
		check.Passed = price >= t.PriceMin && price <= t.PriceMax
		check.Description = fmt.Sprintf("price %.2f in [%.2f, %.2f]", price, t.PriceMin, t.PriceMax)
	}
	outcome.Checks = append(outcome.Checks, check)

	// Gate 2: dollar volume.
	sessVol, volOK := snap.SessionVolume.Val()
	check = &domain.GateCheck{ID: domain.GateMinDollarVol, Threshold: t.MinDollarVol}
	if !priceOK || !volOK {
		check.DataMissing = true
		check.Description = "session volume unavailable or stale"
	} else {
		dollarVol := price * sessVol
		check.Value = dollarVol
		check.Passed = dollarVol >= t.MinDollarVol
		check.Description = fmt.Sprintf("dollar volume $%.0f >= $%.0f", dollarVol, t.MinDollarVol)
	}
	outcome.Checks = append(outcome.Checks, check)

	// Gate 3: effective spread.
	spread, spreadOK := snap.SpreadBps.Val()
	check = &domain.GateCheck{ID: domain.GateSpreadMax, Value: spread, Threshold: t.SpreadMaxBps}
	if !spreadOK {
		check.DataMissing = true
		check.Description = "spread unavailable or stale"
	} else {
		check.Passed = spread <= t.SpreadMaxBps
		check.Description = fmt.Sprintf("spread %.1f bps <= %.1f bps", spread, t.SpreadMaxBps)
	}
	outcome.Checks = append(outcome.Checks, check)

	// Gate 4: value traded.
	traded, tradedOK := snap.ValueTradedUSD.Val()
	check = &domain.GateCheck{ID: domain.GateValueTradedMin, Value: traded, Threshold: t.ValueTradedMin}
	if !tradedOK {
		check.DataMissing = true
		check.Description = "value traded unavailable or stale"
	} else {
		check.Passed = traded >= t.ValueTradedMin
		check.Description = fmt.Sprintf("value traded $%.0f >= $%.0f", traded, t.ValueTradedMin)
	}
	outcome.Checks = append(outcome.Checks, check)

	// Gate 5: relative volume (session-tuned; premarket demands more).
	if t.MinRelVol > 0 {
		relvol, relOK := snap.RelVolume30d.Val()
		check = &domain.GateCheck{ID: domain.GateMinRelVol, Value: relvol, Threshold: t.MinRelVol}
		if !relOK {
			check.DataMissing = true
			check.Description = "relative volume unavailable or stale"
		} else {
			check.Passed = relvol >= t.MinRelVol
			check.Description = fmt.Sprintf("relvol %.2fx >= %.2fx", relvol, t.MinRelVol)
		}
		outcome.Checks = append(outcome.Checks, check)
	}

	// Gate 6: VWAP reclaim (optional; disabled premarket where VWAP is
	// unreliable).
	if t.RequireVWAPReclaim {
		vwap, vwapOK := snap.VWAP.Val()
		check = &domain.GateCheck{ID: domain.GateVWAPReclaim, Value: price, Threshold: vwap}
		if !priceOK || !vwapOK {
			check.DataMissing = true
			check.Description = "vwap unavailable or stale"
		} else {
			check.Passed = price >= vwap
			check.Description = fmt.Sprintf("price %.2f >= vwap %.2f", price, vwap)
		}
		outcome.Checks = append(outcome.Checks, check)
	}

	for _, c := range outcome.Checks {
		if !c.Passed {
			outcome.FailedGateIDs = append(outcome.FailedGateIDs, c.ID)
		}
	}
	outcome.Passed = len(outcome.FailedGateIDs) == 0
	return outcome
}
