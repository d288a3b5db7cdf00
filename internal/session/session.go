// Package session maps exchange-local wall-clock time to the active
// market session and the threshold/weight profile it carries.
package session

import (
	"fmt"
	"time"

	"github.com/ignitelab/ignite/internal/config"
)

// Name is one of the four market sessions.
type Name string

const (
	Premarket  Name = "premarket"
	Regular    Name = "regular"
	Afterhours Name = "afterhours"
	Overnight  Name = "overnight"
)

// Config is the resolved, immutable session profile for one run. No
// mid-run session switches: the resolver is consulted exactly once.
type Config struct {
	Name      Name
	Suspended bool // overnight: pipeline short-circuits to an empty result
	Gates     config.GateThresholds
	Weights   config.DetectorWeights
	// MarketHours is true during the regular session; staleness bounds
	// for quotes and bars tighten accordingly.
	MarketHours bool
}

// Resolver selects the active session from wall-clock time in the
// exchange's local timezone.
type Resolver struct {
	cfg *config.Config
	loc *time.Location
}

func NewResolver(cfg *config.Config) (*Resolver, error) {
	loc, err := time.LoadLocation(cfg.ExchangeTZ)
	if err != nil {
		return nil, fmt.Errorf("load exchange timezone %q: %w", cfg.ExchangeTZ, err)
	}
	return &Resolver{cfg: cfg, loc: loc}, nil
}

// Session boundaries, exchange-local.
var (
	premarketOpen = 4 * time.Hour             // 04:00
	regularOpen   = 9*time.Hour + 30*time.Minute // 09:30
	regularClose  = 16 * time.Hour            // 16:00
	afterClose    = 20 * time.Hour            // 20:00
)

// Resolve maps a wall-clock instant to the active session config.
func (r *Resolver) Resolve(now time.Time) Config {
	local := now.In(r.loc)
	name := classify(local)

	sc := Config{
		Name:        name,
		MarketHours: name == Regular,
	}
	if name == Overnight {
		sc.Suspended = true
		return sc
	}
	sc.Gates = r.cfg.GatesFor(string(name))
	sc.Weights = r.cfg.WeightsFor(string(name))
	return sc
}

func classify(local time.Time) Name {
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return Overnight
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	sinceMidnight := local.Sub(midnight)

	switch {
	case sinceMidnight >= premarketOpen && sinceMidnight < regularOpen:
		return Premarket
	case sinceMidnight >= regularOpen && sinceMidnight < regularClose:
		return Regular
	case sinceMidnight >= regularClose && sinceMidnight < afterClose:
		return Afterhours
	default:
		return Overnight
	}
}
