package detectors

import (
	"time"

	"github.com/ignitelab/ignite/internal/domain"
)

// Catalyst scores recency- and credibility-weighted news sentiment,
// social-momentum acceleration, upcoming-event proximity, and the
// unusual-activity cross-check.
// Weights: news 0.40, social 0.30, event 0.20, unusual 0.10.
type Catalyst struct{}

func (Catalyst) Name() string { return domain.DetectorCatalyst }

const newsDecayWindow = 6 * time.Hour

func (Catalyst) Detect(snap *domain.TickerSnapshot) domain.DetectorResult {
	a := newAcc(domain.DetectorCatalyst)

	if sentiment, ok := snap.NewsSentiment.AnyVal(); ok {
		// Only positive sentiment feeds an explosive setup; credibility
		// rides in the field confidence, recency decays toward zero.
		score := clamp01(sentiment)
		age := snap.Timestamp.Sub(snap.NewsSentiment.AsOf)
		decay := clamp01(1.0 - age.Hours()/newsDecayWindow.Hours())
		a.add("news", 0.40, score*decay, fieldConf(snap.NewsSentiment))
		if score*decay >= 0.5 {
			a.signal("fresh_news")
		}
	}

	if accel, ok := snap.SocialAccel.AnyVal(); ok {
		a.add("social", 0.30, ratioScore(accel, 2.0), fieldConf(snap.SocialAccel))
		if accel >= 2.0 {
			a.signal("social_acceleration")
		}
	} else if rank, ok := snap.SocialRank.AnyVal(); ok {
		// Rank percentile is a weaker stand-in for acceleration.
		a.add("social", 0.30, rank/100.0*0.7, fieldConf(snap.SocialRank))
	}

	if days, ok := snap.EventProximityDays.AnyVal(); ok {
		a.add("event", 0.20, eventProximityScore(days), fieldConf(snap.EventProximityDays))
		if days <= 1 {
			a.signal("event_imminent")
		}
	} else if tag, pub, ok := freshestCatalyst(snap); ok {
		age := snap.Timestamp.Sub(pub)
		a.add("event", 0.20, clamp01(1.0-age.Hours()/newsDecayWindow.Hours()), 0.75)
		a.signal("catalyst:" + tag)
	}

	if unusual, ok := snap.UnusualOptionsVol.AnyVal(); ok {
		a.add("unusual_activity", 0.10, ratioScore(unusual, 3.0), fieldConf(snap.UnusualOptionsVol))
	}

	return a.result()
}

func eventProximityScore(days float64) float64 {
	if days <= 1 {
		return 1.0
	}
	return clamp01(1.0 - (days-1.0)/6.0)
}

func freshestCatalyst(snap *domain.TickerSnapshot) (string, time.Time, bool) {
	var best domain.Catalyst
	found := false
	for _, c := range snap.Catalysts {
		if !found || c.PublishedAt.After(best.PublishedAt) {
			best = c
			found = true
		}
	}
	return best.Tag, best.PublishedAt, found
}
