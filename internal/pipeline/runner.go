// Package pipeline orchestrates one discovery run: collect, normalize,
// gate, detect, score, derive the explosive shortlist, and assemble the
// versioned result contract. A run is atomic from the consumer's view:
// it publishes either a complete result or a well-formed empty/degraded
// one, never a truncated candidate list.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ignitelab/ignite/internal/composite"
	"github.com/ignitelab/ignite/internal/config"
	"github.com/ignitelab/ignite/internal/detectors"
	"github.com/ignitelab/ignite/internal/domain"
	"github.com/ignitelab/ignite/internal/explosive"
	"github.com/ignitelab/ignite/internal/fabrication"
	"github.com/ignitelab/ignite/internal/gates"
	"github.com/ignitelab/ignite/internal/providers"
	"github.com/ignitelab/ignite/internal/session"
	"github.com/ignitelab/ignite/internal/snapshot"
	"github.com/ignitelab/ignite/internal/telemetry"
)

// ErrReadiness marks a run that could not score at all because the
// primary price provider was down.
var ErrReadiness = errors.New("primary price provider down, no scoring without a live price")

// Collector is the provider facade surface the runner consumes.
type Collector interface {
	Collect(ctx context.Context, symbol string) ([]providers.Response, error)
	HealthReport() map[string]providers.Health
}

// Publisher is the downstream result store. Optional: a nil publisher
// skips the run lock and the publish step (dry runs, tests).
type Publisher interface {
	PublishResult(ctx context.Context, strategy string, result *domain.ScanResult, ttl time.Duration) error
	PublishTrace(ctx context.Context, strategy string, stats domain.PipelineStats, ttl time.Duration) error
	AcquireRunLock(ctx context.Context, strategy string, ttl time.Duration) (func(), error)
}

// Archiver is the optional long-retention trace sink.
type Archiver interface {
	Archive(ctx context.Context, trace *domain.RunTrace, status domain.RunStatus, universe int) error
}

// Runner wires the full stage chain for repeated runs. The injected
// config is immutable for each run's duration; swapping calibration
// means constructing a new Runner.
type Runner struct {
	cfg        *config.Config
	resolver   *session.Resolver
	collector  Collector
	normalizer *snapshot.Normalizer
	adjuster   *gates.Adjuster
	suite      *detectors.Suite
	scorer     *composite.Scorer
	deriver    *explosive.Deriver
	metrics    *telemetry.Metrics
	publisher  Publisher
	archiver   Archiver
	clock      func() time.Time
}

// Option tunes optional runner collaborators.
type Option func(*Runner)

func WithPublisher(p Publisher) Option        { return func(r *Runner) { r.publisher = p } }
func WithArchiver(a Archiver) Option          { return func(r *Runner) { r.archiver = a } }
func WithClock(clock func() time.Time) Option { return func(r *Runner) { r.clock = clock } }

func NewRunner(cfg *config.Config, collector Collector, metrics *telemetry.Metrics, opts ...Option) (*Runner, error) {
	resolver, err := session.NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:       cfg,
		resolver:  resolver,
		collector: collector,
		suite:     detectors.NewSuite(),
		scorer:    composite.NewScorer(cfg.Tiering),
		deriver:   explosive.NewDeriver(cfg.Explosive),
		metrics:   metrics,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.normalizer = snapshot.NewNormalizer(cfg.Staleness, r.clock)
	r.adjuster = gates.NewAdjuster(cfg.Soft, r.normalizer)
	return r, nil
}

// symbolOutcome is one worker's per-symbol output, reassembled at the
// single collection point.
type symbolOutcome struct {
	snap        *domain.TickerSnapshot
	candidate   *domain.CompositeCandidate
	primaryDown bool
}

// Run executes the pipeline once over the given universe.
func (r *Runner) Run(ctx context.Context, universe []string) (*domain.ScanResult, error) {
	started := r.clock()
	sess := r.resolver.Resolve(started)
	strategy := r.cfg.Publish.Strategy
	trace := domain.NewRunTrace(uuid.NewString(), strategy, string(sess.Name), started)

	log.Info().Str("run_id", trace.RunID).
		Str("session", string(sess.Name)).
		Int("universe", len(universe)).
		Msg("discovery run starting")

	r.metrics.ActiveRuns.Inc()
	defer r.metrics.ActiveRuns.Dec()

	// Overnight is a suspended state: no gates, no detectors, and no
	// provider adapter is ever invoked.
	if sess.Suspended {
		trace.RecordRejection(domain.StageNormalize, domain.ReasonOvernight)
		result := domain.EmptyResult(string(sess.Name), domain.StatusClosed, domain.ReasonOvernight, started)
		result.PipelineStats = r.sealStats(trace, len(universe))
		return result, r.finish(ctx, result, trace, len(universe))
	}

	if r.publisher != nil {
		release, err := r.publisher.AcquireRunLock(ctx, strategy, r.cfg.Publish.LockTTL.D())
		if err != nil {
			return nil, err
		}
		defer release()
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.LatencyBudget.D())
	defer cancel()

	outcomes := r.processUniverse(runCtx, universe, sess, trace)

	// Latency budget exceeded: emit the degraded contract, not the
	// false impression of completeness.
	if runCtx.Err() != nil {
		log.Warn().Str("run_id", trace.RunID).Msg("latency budget exceeded, emitting degraded contract")
		result := domain.EmptyResult(string(sess.Name), domain.StatusStaleData, domain.ReasonRunTimeout, started)
		result.ExecutionTimeSec = r.clock().Sub(started).Seconds()
		result.PipelineStats = r.sealStats(trace, len(universe))
		return result, r.finish(ctx, result, trace, len(universe))
	}

	var snaps []*domain.TickerSnapshot
	var items []domain.CompositeCandidate
	var pool []explosive.Input
	primaryDownCount := 0
	for _, oc := range outcomes {
		if oc.primaryDown {
			primaryDownCount++
		}
		if oc.snap != nil {
			snaps = append(snaps, oc.snap)
		}
		if oc.candidate != nil {
			items = append(items, *oc.candidate)
			pool = append(pool, explosive.Input{Candidate: *oc.candidate, Snapshot: oc.snap})
		}
	}

	// ReadinessError: every symbol lost its primary price source.
	if len(universe) > 0 && primaryDownCount == len(universe) {
		result := domain.EmptyResult(string(sess.Name), domain.StatusStaleData, domain.ReasonProviderDown, started)
		result.ExecutionTimeSec = r.clock().Sub(started).Seconds()
		result.PipelineStats = r.sealStats(trace, len(universe))
		if err := r.finish(ctx, result, trace, len(universe)); err != nil {
			return result, err
		}
		return result, ErrReadiness
	}

	// Fail closed on aggregate staleness during market hours.
	if sess.MarketHours {
		if frac := snapshot.StaleRequiredFraction(snaps); frac > r.cfg.Staleness.CoverageLimit {
			trace.RecordRejection(domain.StageNormalize, domain.ReasonStaleData)
			result := domain.EmptyResult(string(sess.Name), domain.StatusStaleData, domain.ReasonStaleData, started)
			result.AgeMinutes = staleAgeMinutes(snaps, r.clock())
			result.ExecutionTimeSec = r.clock().Sub(started).Seconds()
			result.PipelineStats = r.sealStats(trace, len(universe))
			log.Warn().Str("run_id", trace.RunID).
				Float64("stale_fraction", frac).
				Float64("age_minutes", result.AgeMinutes).
				Msg("aggregate staleness over limit, failing closed")
			return result, r.finish(ctx, result, trace, len(universe))
		}
	}

	// Rank before promotion: near-miss selection follows score order,
	// never worker completion order.
	composite.Rank(items)
	items = r.scorer.PromoteSoftPass(items, r.cfg.Soft.MaxSoftPass, r.cfg.Soft.SoftPassMargin)

	trace.RecordIn(domain.StageExplosive, len(pool))
	shortlist, fallbackUsed := r.deriver.Derive(pool, sess.Name)
	trace.RecordOut(domain.StageExplosive, len(shortlist))
	if fallbackUsed {
		r.metrics.FallbacksTotal.Inc()
	}

	result := &domain.ScanResult{
		Schema:           domain.SchemaVersion,
		Regime:           string(sess.Name),
		Status:           domain.StatusLive,
		Timestamp:        started,
		ExecutionTimeSec: r.clock().Sub(started).Seconds(),
		Items:            items,
		ExplosiveTop:     shortlist,
		Count:            len(items),
		FallbackUsed:     fallbackUsed,
		PipelineStats:    r.sealStats(trace, len(universe)),
		Telemetry: map[string]float64{
			"universe":  float64(len(universe)),
			"snapshots": float64(len(snaps)),
			"shortlist": float64(len(shortlist)),
		},
	}
	r.metrics.CandidateCount.Set(float64(len(items)))
	r.metrics.ShortlistSize.Set(float64(len(shortlist)))

	return result, r.finish(ctx, result, trace, len(universe))
}

// processUniverse fans symbols out to the worker pool. Per-symbol work
// is pure and isolated; the only shared state is the run trace, which
// is internally synchronized.
func (r *Runner) processUniverse(ctx context.Context, universe []string, sess session.Config, trace *domain.RunTrace) []symbolOutcome {
	workers := r.cfg.Workers
	if workers > len(universe) {
		workers = len(universe)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	outcomes := make([]symbolOutcome, 0, len(universe))
	var mu sync.Mutex
	var wg sync.WaitGroup

	hardValidator := gates.NewValidator(sess.Gates)
	fabricator := fabrication.NewValidator(sess.Gates.MinRelVol > 0)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				oc := r.processSymbol(ctx, symbol, sess, hardValidator, fabricator, trace)
				mu.Lock()
				outcomes = append(outcomes, oc)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, symbol := range universe {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (r *Runner) processSymbol(ctx context.Context, symbol string, sess session.Config, hardValidator *gates.Validator, fabricator *fabrication.Validator, trace *domain.RunTrace) symbolOutcome {
	trace.RecordIn(domain.StageNormalize, 1)

	collectStart := r.clock()
	responses, err := r.collector.Collect(ctx, symbol)
	if err != nil {
		r.metrics.ProviderErrors.WithLabelValues("facade").Inc()
		trace.RecordRejection(domain.StageNormalize, domain.ReasonProviderDown)
		r.metrics.Rejections.WithLabelValues(domain.StageNormalize, domain.ReasonProviderDown).Inc()
		return symbolOutcome{primaryDown: errors.Is(err, providers.ErrPrimaryDown)}
	}

	snap, err := r.normalizer.Normalize(symbol, responses, sess.MarketHours)
	r.metrics.StageDuration.WithLabelValues(domain.StageNormalize).Observe(r.clock().Sub(collectStart).Seconds())
	if err != nil {
		trace.RecordRejection(domain.StageNormalize, domain.ReasonNoPriceData)
		r.metrics.Rejections.WithLabelValues(domain.StageNormalize, domain.ReasonNoPriceData).Inc()
		return symbolOutcome{}
	}
	trace.RecordOut(domain.StageNormalize, 1)

	// Anti-fabrication runs before any of the dropped fields can feed a
	// gate or detector.
	trace.RecordIn(domain.StageFabrication, 1)
	violations := fabricator.Validate(snap)
	for range violations {
		trace.RecordRejection(domain.StageFabrication, domain.ReasonFabricatedValue)
		r.metrics.Rejections.WithLabelValues(domain.StageFabrication, domain.ReasonFabricatedValue).Inc()
	}
	if fabrication.DropsCandidate(violations) {
		return symbolOutcome{snap: snap}
	}
	trace.RecordOut(domain.StageFabrication, 1)

	// Hard gates: failing symbols never reach the detector suite.
	trace.RecordIn(domain.StageHardGate, 1)
	gateStart := r.clock()
	outcome := hardValidator.Validate(snap)
	r.metrics.StageDuration.WithLabelValues(domain.StageHardGate).Observe(r.clock().Sub(gateStart).Seconds())
	if !outcome.Passed {
		trace.RecordGateFailure(symbol, outcome.FailedGateIDs)
		for _, id := range outcome.FailedGateIDs {
			trace.RecordRejection(domain.StageHardGate, id)
			r.metrics.Rejections.WithLabelValues(domain.StageHardGate, id).Inc()
		}
		return symbolOutcome{snap: snap}
	}
	trace.RecordOut(domain.StageHardGate, 1)

	trace.RecordIn(domain.StageDetect, 1)
	detectStart := r.clock()
	results := r.suite.Run(snap)
	r.metrics.StageDuration.WithLabelValues(domain.StageDetect).Observe(r.clock().Sub(detectStart).Seconds())
	trace.RecordOut(domain.StageDetect, 1)

	trace.RecordIn(domain.StageScore, 1)
	base := baseConfidence(results, sess.Weights)
	adjusted, riskFlags := r.adjuster.Adjust(base, snap, sess.MarketHours, r.clock())
	candidate := r.scorer.Score(symbol, results, sess.Weights, adjusted, riskFlags, string(sess.Name), snap.Timestamp)
	trace.RecordOut(domain.StageScore, 1)

	return symbolOutcome{snap: snap, candidate: &candidate}
}

// baseConfidence is the weight-blended detector confidence before soft
// gate penalties.
func baseConfidence(results map[string]domain.DetectorResult, w config.DetectorWeights) float64 {
	return results[domain.DetectorVolumeMomentum].Confidence*w.VolumeMomentum +
		results[domain.DetectorSqueeze].Confidence*w.Squeeze +
		results[domain.DetectorCatalyst].Confidence*w.Catalyst +
		results[domain.DetectorOptionsFlow].Confidence*w.OptionsFlow +
		results[domain.DetectorTechnical].Confidence*w.Technical
}

func (r *Runner) sealStats(trace *domain.RunTrace, universe int) domain.PipelineStats {
	return domain.PipelineStats{
		RunID:        trace.RunID,
		Universe:     universe,
		Stages:       trace.Snapshot(),
		GateFailures: trace.GateFailures(),
	}
}

// finish attaches system health, publishes, archives, and counts the
// run. Publish failures surface as errors: an unpublished run is a
// failed run, not a silent one.
func (r *Runner) finish(ctx context.Context, result *domain.ScanResult, trace *domain.RunTrace, universe int) error {
	health := domain.SystemHealth{Providers: map[string]string{}}
	for name, h := range r.collector.HealthReport() {
		health.Providers[name] = string(h)
		if h != providers.Healthy {
			health.Degraded = true
		}
	}
	result.SystemHealth = health

	r.metrics.RunsTotal.WithLabelValues(string(result.Status)).Inc()

	if r.publisher != nil {
		if err := r.publisher.PublishResult(ctx, trace.Strategy, result, r.cfg.Publish.ResultTTL.D()); err != nil {
			return err
		}
		if err := r.publisher.PublishTrace(ctx, trace.Strategy, result.PipelineStats, r.cfg.Publish.TraceTTL.D()); err != nil {
			return err
		}
	}
	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, trace, result.Status, universe); err != nil {
			log.Warn().Err(err).Str("run_id", trace.RunID).Msg("trace archive failed")
		}
	}

	log.Info().Str("run_id", trace.RunID).
		Str("status", string(result.Status)).
		Int("items", result.Count).
		Int("explosive", len(result.ExplosiveTop)).
		Float64("execution_sec", result.ExecutionTimeSec).
		Msg("discovery run finished")

	return nil
}

// staleAgeMinutes summarizes how old the stale required fields are, for
// the fail-closed contract's age_minutes explanation.
func staleAgeMinutes(snaps []*domain.TickerSnapshot, now time.Time) float64 {
	var worst time.Duration
	for _, snap := range snaps {
		for _, name := range domain.RequiredFields {
			slot := snap.FieldByName(name)
			if slot == nil || *slot == nil || !(*slot).Stale {
				continue
			}
			if age := now.Sub((*slot).AsOf); age > worst {
				worst = age
			}
		}
	}
	return worst.Minutes()
}
