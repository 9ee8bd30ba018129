package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RayWalsh/btc-range-gate/database"
	"github.com/RayWalsh/btc-range-gate/engine"
	"github.com/RayWalsh/btc-range-gate/position"
	"github.com/RayWalsh/btc-range-gate/priceaction"
	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// scheduleLayout is the layout of the daily evaluation time.
	scheduleLayout = "15:04"
)

// GateConfig represents the configuration struct for the regime gate service.
type GateConfig struct {
	// Market is the evaluated market.
	Market string
	// Rules represents the evaluation thresholds.
	Rules shared.Rules
	// Fetcher is the candle provider.
	Fetcher shared.CandleFetcher
	// Storers are the sinks evaluation records are persisted to.
	Storers []database.DecisionStorer
	// Schedule is the daily UTC evaluation time (HH:MM). An empty schedule evaluates once.
	Schedule string
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
}

// Validate asserts the config sane inputs.
func (cfg *GateConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("candle fetcher cannot be nil"))
	}
	for idx := range cfg.Storers {
		if cfg.Storers[idx] == nil {
			errs = errors.Join(errs, fmt.Errorf("storer %d cannot be nil", idx))
		}
	}
	if cfg.Schedule != "" {
		_, err := time.Parse(scheduleLayout, cfg.Schedule)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("invalid schedule '%s', expected HH:MM", cfg.Schedule))
		}
	}

	err := cfg.Rules.Validate()
	if err != nil {
		errs = errors.Join(errs, err)
	}

	return errs
}

// Result represents the outcome of an evaluation cycle.
type Result struct {
	Record   *database.Record
	Decision *engine.RegimeDecision
	// Plan is nil when the decision has no active strategy.
	Plan  *position.TradePlan
	Lines []string
}

// Gate represents the daily BTC regime gate service.
type Gate struct {
	cfg            *GateConfig
	rangeEvaluator *priceaction.RangeEvaluator
	trendEvaluator *priceaction.TrendEvaluator
	now            func() time.Time
	logger         *zerolog.Logger
	storeMtx       sync.Mutex
}

// NewGate initializes a new regime gate service.
func NewGate(cfg *GateConfig) (*Gate, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating gate config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "gate").Logger()

	rangeLogger := logger.With().Str("component", "rangeevaluator").Logger()
	rangeEvaluator, err := priceaction.NewRangeEvaluator(&priceaction.RangeEvaluatorConfig{
		Rules:  cfg.Rules,
		Logger: &rangeLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating range evaluator: %w", err)
	}

	trendLogger := logger.With().Str("component", "trendevaluator").Logger()
	trendEvaluator, err := priceaction.NewTrendEvaluator(&priceaction.TrendEvaluatorConfig{
		Rules:  cfg.Rules,
		Logger: &trendLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating trend evaluator: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Gate{
		cfg:            cfg,
		rangeEvaluator: rangeEvaluator,
		trendEvaluator: trendEvaluator,
		now:            now,
		logger:         &logger,
	}, nil
}

// spotPrice returns the most recent close of the provided candle sets.
func spotPrice(decision *engine.RegimeDecision, candleSets ...[]shared.Candle) float64 {
	var latest shared.Candle
	for _, candles := range candleSets {
		if len(candles) == 0 {
			continue
		}

		last := candles[len(candles)-1]
		if last.Date.After(latest.Date) {
			latest = last
		}
	}

	if latest.Close > 0 {
		return latest.Close
	}

	return decision.ReferencePrice
}

// persist stores the provided record to all configured sinks. Sink failures are logged and
// do not fail the evaluation.
func (g *Gate) persist(ctx context.Context, rec *database.Record) error {
	g.storeMtx.Lock()
	defer g.storeMtx.Unlock()

	var errs error
	for idx := range g.cfg.Storers {
		err := g.cfg.Storers[idx].PersistDecision(ctx, rec)
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

// Evaluate runs a single evaluation cycle: it fetches candles, evaluates the range and
// trend regimes, combines them into a decision, derives its trade plan and persists the
// record. Provider failures are returned without producing a decision.
func (g *Gate) Evaluate(ctx context.Context) (*Result, error) {
	rules := &g.cfg.Rules

	rangeCandles, err := g.cfg.Fetcher.FetchCandles(ctx, shared.FourHour, rules.RangeFetchDays)
	if err != nil {
		return nil, fmt.Errorf("fetching range candles: %w", err)
	}

	trendCandles, err := g.cfg.Fetcher.FetchCandles(ctx, shared.OneDay, rules.TrendFetchDays)
	if err != nil {
		return nil, fmt.Errorf("fetching trend candles: %w", err)
	}

	rangeVerdict := g.rangeEvaluator.Evaluate(rangeCandles)
	trendVerdict := g.trendEvaluator.Evaluate(trendCandles)

	decision := engine.Combine(rangeVerdict, trendVerdict)

	plan, err := position.GeneratePlan(decision)
	if err != nil {
		return nil, fmt.Errorf("generating %s trade plan: %w", decision.Strategy.String(), err)
	}

	rec := database.NewRecord(g.cfg.Market, spotPrice(decision, rangeCandles, trendCandles),
		decision, plan, g.now())

	lines := engine.DiagnosticLines(decision)
	for idx := range lines {
		g.logger.Info().Msg(lines[idx])
	}

	err = g.persist(ctx, rec)
	if err != nil {
		g.logger.Error().Msgf("persisting record %s: %v", rec.ID, err)
	}

	return &Result{
		Record:   rec,
		Decision: decision,
		Plan:     plan,
		Lines:    lines,
	}, nil
}

// Run evaluates once when no schedule is configured, otherwise it evaluates daily at the
// scheduled UTC time until the provided context is cancelled.
func (g *Gate) Run(ctx context.Context) error {
	if g.cfg.Schedule == "" {
		_, err := g.Evaluate(ctx)
		return err
	}

	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(1).Day().At(g.cfg.Schedule).Do(func() {
		_, err := g.Evaluate(ctx)
		if err != nil {
			g.logger.Error().Msgf("scheduled evaluation: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling daily evaluation: %w", err)
	}

	g.logger.Info().Msgf("evaluating %s daily at %s UTC", g.cfg.Market, g.cfg.Schedule)

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()

	return nil
}

// Close releases the resources held by the configured sinks.
func (g *Gate) Close() error {
	var errs error
	for idx := range g.cfg.Storers {
		err := g.cfg.Storers[idx].Close()
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}
