package priceaction

import (
	"errors"
	"fmt"
	"math"

	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/rs/zerolog"
)

// TrendDecision represents the outcome of a trend evaluation.
type TrendDecision int

const (
	NoTrend TrendDecision = iota
	Confirmed
)

// String stringifies the provided trend decision.
func (d TrendDecision) String() string {
	switch d {
	case Confirmed:
		return "TREND CONFIRMED"
	default:
		return "NO TREND"
	}
}

// TrendRule represents an ordered trend confirmation condition.
type TrendRule int

const (
	NoTrendRule TrendRule = iota
	ExpansionRule
	PersistenceRule
	RetracementRule
	PullbackRule
)

// String stringifies the provided trend rule.
func (r TrendRule) String() string {
	switch r {
	case NoTrendRule:
		return ""
	case ExpansionRule:
		return "expansion"
	case PersistenceRule:
		return "persistence"
	case RetracementRule:
		return "retracement"
	case PullbackRule:
		return "pullback_failure"
	default:
		return "unknown"
	}
}

// TrendVerdict represents the outcome of a trend evaluation. Only the measurements taken
// before the first failing condition are populated.
type TrendVerdict struct {
	Decision  TrendDecision
	Direction shared.Direction
	// Origin is the first close of the window.
	Origin float64
	// High is the highest high of the window.
	High              float64
	LastClose         float64
	NetMovePct        float64
	DirectionalCloses int
	PullbackObserved  bool
	PullbackFailed    bool
	RetracePct        float64
	FailedRule        TrendRule

	Insufficient bool
	Reason       string
}

// TrendEvaluatorConfig represents the trend evaluator configuration.
type TrendEvaluatorConfig struct {
	// Rules represents the evaluation thresholds.
	Rules shared.Rules
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *TrendEvaluatorConfig) Validate() error {
	var errs error

	err := cfg.Rules.Validate()
	if err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// TrendEvaluator confirms defended directional expansions over a fixed lookback window.
type TrendEvaluator struct {
	rules  shared.Rules
	logger *zerolog.Logger
}

// NewTrendEvaluator initializes a new trend evaluator.
func NewTrendEvaluator(cfg *TrendEvaluatorConfig) (*TrendEvaluator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating trend evaluator config: %w", err)
	}

	return &TrendEvaluator{
		rules:  cfg.Rules,
		logger: cfg.Logger,
	}, nil
}

// fail tags the verdict with the provided failing condition.
func (e *TrendEvaluator) fail(verdict TrendVerdict, rule TrendRule, reason string) TrendVerdict {
	verdict.Decision = NoTrend
	verdict.FailedRule = rule
	verdict.Reason = reason

	e.logger.Debug().Msgf("trend not confirmed at %s: %s", rule.String(), reason)

	return verdict
}

// Evaluate applies the expansion, persistence, retracement and pullback failure conditions
// in order, stopping at the first failure.
func (e *TrendEvaluator) Evaluate(candles []shared.Candle) TrendVerdict {
	window, err := shared.TrailingWindow(candles, e.rules.TrendLookbackDays, e.rules.TrendCandlesPerDay)
	if err != nil {
		e.logger.Info().Msgf("trend evaluation skipped: %v", err)
		return TrendVerdict{
			Decision:     NoTrend,
			Direction:    shared.NoDirection,
			Insufficient: true,
			Reason:       "insufficient data",
		}
	}

	origin := window[0].Close
	verdict := TrendVerdict{
		Origin:    origin,
		LastClose: window[len(window)-1].Close,
	}

	// Expansion.
	verdict.NetMovePct = shared.PercentChange(verdict.LastClose, origin)
	verdict.Direction = shared.Down
	if verdict.NetMovePct > 0 {
		verdict.Direction = shared.Up
	}

	if math.Abs(verdict.NetMovePct) < e.rules.MinNetMovePct {
		return e.fail(verdict, ExpansionRule, fmt.Sprintf("net move %.2f%% below %.1f%% minimum",
			verdict.NetMovePct, e.rules.MinNetMovePct))
	}

	// Persistence.
	for idx := 1; idx < len(window); idx++ {
		prev, cur := window[idx-1].Close, window[idx].Close
		switch verdict.Direction {
		case shared.Up:
			if cur > prev {
				verdict.DirectionalCloses++
			}
		case shared.Down:
			if cur < prev {
				verdict.DirectionalCloses++
			}
		}
	}

	if verdict.DirectionalCloses < e.rules.MinDirectionalCloses {
		return e.fail(verdict, PersistenceRule, fmt.Sprintf("%d directional closes below %d minimum",
			verdict.DirectionalCloses, e.rules.MinDirectionalCloses))
	}

	// Retracement bound.
	peak, trough := shared.Bounds(window)
	verdict.High = peak

	switch verdict.Direction {
	case shared.Up:
		verdict.RetracePct = (peak - trough) / peak * 100
	case shared.Down:
		verdict.RetracePct = (peak - trough) / trough * 100
	}

	if verdict.RetracePct > e.rules.MaxRetracePct {
		return e.fail(verdict, RetracementRule, fmt.Sprintf("retracement %.2f%% exceeds %.1f%% maximum, structure damaged",
			verdict.RetracePct, e.rules.MaxRetracePct))
	}

	// Pullback failure.
	for idx := 1; idx < len(window); idx++ {
		prev, cur := &window[idx-1], &window[idx]
		switch verdict.Direction {
		case shared.Up:
			if cur.Close < prev.Close {
				verdict.PullbackObserved = true
				if cur.Low > origin {
					verdict.PullbackFailed = true
				}
			}
		case shared.Down:
			if cur.Close > prev.Close {
				verdict.PullbackObserved = true
				if cur.High < origin {
					verdict.PullbackFailed = true
				}
			}
		}
	}

	switch {
	case !verdict.PullbackObserved:
		return e.fail(verdict, PullbackRule, "no pullback observed, too early")
	case !verdict.PullbackFailed:
		return e.fail(verdict, PullbackRule, "pullbacks reclaimed the origin, not yet defended")
	}

	verdict.Decision = Confirmed
	verdict.Reason = fmt.Sprintf("%s trend defended by failed pullback", verdict.Direction.String())

	return verdict
}
