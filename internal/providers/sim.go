package providers

import (
	"context"
	"math/rand"
	"time"

	"github.com/ignitelab/ignite/internal/domain"
)

// SimAdapter is a deterministic offline data source. Values derive from
// a symbol-seeded generator so repeated runs are reproducible; it backs
// --dry-run scans and the test suite.
type SimAdapter struct {
	name  string
	tier  domain.Tier
	kinds []Kind
	clock func() time.Time
}

func NewSimAdapter(name string, tier domain.Tier, kinds []Kind, clock func() time.Time) *SimAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &SimAdapter{name: name, tier: tier, kinds: kinds, clock: clock}
}

// NewSimSuite builds the standard offline adapter set: one per tier.
func NewSimSuite(clock func() time.Time) []*SimAdapter {
	return []*SimAdapter{
		NewSimAdapter("sim-quotes", domain.TierRealtime, []Kind{KindQuote, KindBars}, clock),
		NewSimAdapter("sim-regulatory", domain.TierRegulatory, []Kind{KindShortInterest, KindShortVolume}, clock),
		NewSimAdapter("sim-aggregator", domain.TierAggregator, []Kind{KindOptions, KindNews, KindSocial}, clock),
	}
}

func (s *SimAdapter) Name() string      { return s.name }
func (s *SimAdapter) Tier() domain.Tier { return s.tier }
func (s *SimAdapter) Kinds() []Kind     { return s.kinds }
func (s *SimAdapter) Health() Health    { return Healthy }

func (s *SimAdapter) Fetch(_ context.Context, symbol string) ([]Response, error) {
	now := s.clock()
	rng := rand.New(rand.NewSource(symbolSeed(symbol)))

	var out []Response
	for _, kind := range s.kinds {
		resp := Response{
			Provider:   s.name,
			Tier:       s.tier,
			Kind:       kind,
			Symbol:     symbol,
			AsOf:       now,
			IngestedAt: now,
			Confidence: 1.0,
			Fields:     map[domain.FieldName]float64{},
		}
		switch kind {
		case KindQuote:
			price := 2.0 + rng.Float64()*40.0
			relvol := 1.0 + rng.Float64()*6.0
			sessVol := 1e6 + rng.Float64()*2e7
			resp.Fields[domain.FieldPrice] = price
			resp.Fields[domain.FieldSessionVolume] = sessVol
			resp.Fields[domain.FieldAvgVolume30d] = sessVol / relvol
			resp.Fields[domain.FieldRelVolume30d] = relvol
			resp.Fields[domain.FieldVWAP] = price * (0.97 + rng.Float64()*0.05)
			resp.Fields[domain.FieldSpreadBps] = 5 + rng.Float64()*60
			resp.Fields[domain.FieldValueTradedUSD] = price * sessVol
			resp.Fields[domain.FieldATRPct] = 0.02 + rng.Float64()*0.06
		case KindBars:
			resp.Fields[domain.FieldUpDays] = float64(rng.Intn(5))
			resp.Fields[domain.FieldRelVolSustainMin] = rng.Float64() * 90
			resp.Closes = simCloses(rng, 40)
		case KindShortInterest:
			resp.Fields[domain.FieldShortInterestPct] = 5 + rng.Float64()*30
			resp.Fields[domain.FieldDaysToCover] = 1 + rng.Float64()*6
			resp.Fields[domain.FieldFloatRotationPct] = rng.Float64() * 120
		case KindShortVolume:
			resp.Fields[domain.FieldShortVolumeRatio] = 0.2 + rng.Float64()*0.5
		case KindOptions:
			resp.Fields[domain.FieldGammaPressure] = rng.Float64()
			resp.Fields[domain.FieldCallPutRatio] = 0.5 + rng.Float64()*2.5
			resp.Fields[domain.FieldIVPercentile] = rng.Float64() * 99
			resp.Fields[domain.FieldUnusualOptionsVol] = rng.Float64() * 4
			resp.Fields[domain.FieldOISkew] = rng.Float64()
		case KindNews:
			resp.Fields[domain.FieldNewsSentiment] = rng.Float64()*2 - 1
			resp.Fields[domain.FieldEventProximityD] = rng.Float64() * 10
			if rng.Float64() > 0.6 {
				resp.Catalysts = append(resp.Catalysts, domain.Catalyst{
					Tag: "earnings", Source: s.name, Tier: s.tier,
					PublishedAt: now.Add(-time.Duration(rng.Intn(5)) * time.Hour),
				})
			}
		case KindSocial:
			resp.Fields[domain.FieldSocialRank] = rng.Float64() * 99
			resp.Fields[domain.FieldSocialAccel] = rng.Float64() * 3
		}
		out = append(out, resp)
	}
	return out, nil
}

func symbolSeed(symbol string) int64 {
	var seed int64
	for _, c := range symbol {
		seed = seed*31 + int64(c)
	}
	return seed
}

func simCloses(rng *rand.Rand, n int) []float64 {
	closes := make([]float64, n)
	px := 10 + rng.Float64()*20
	for i := range closes {
		px *= 1 + (rng.Float64()-0.45)*0.01
		closes[i] = px
	}
	return closes
}
