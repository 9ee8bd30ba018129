package priceaction

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/rs/zerolog"
)

// RangeRule represents a sideways range validation rule.
type RangeRule int

const (
	WidthRule RangeRule = iota
	ContainmentRule
	UpperRejectionRule
	LowerBounceRule
	StabilityRule
)

// String stringifies the provided range rule.
func (r RangeRule) String() string {
	switch r {
	case WidthRule:
		return "range_width"
	case ContainmentRule:
		return "closes_inside"
	case UpperRejectionRule:
		return "upper_rejections"
	case LowerBounceRule:
		return "lower_bounces"
	case StabilityRule:
		return "recent_stability"
	default:
		return "unknown"
	}
}

// RangeLabel describes the regime observed by the range evaluator.
type RangeLabel int

const (
	InsufficientRangeData RangeLabel = iota
	RangeBound
	DirectionalExpansion
	ContainedButUntested
	ChaoticOrUnstructured
)

// String stringifies the provided range label.
func (l RangeLabel) String() string {
	switch l {
	case InsufficientRangeData:
		return "INSUFFICIENT_DATA"
	case RangeBound:
		return "RANGE"
	case DirectionalExpansion:
		return "DIRECTIONAL_EXPANSION"
	case ContainedButUntested:
		return "CONTAINED_BUT_UNTESTED"
	case ChaoticOrUnstructured:
		return "CHAOTIC_OR_UNSTRUCTURED"
	default:
		return "UNKNOWN"
	}
}

// RangeDiagnostics represents the measurements of an evaluated range window.
type RangeDiagnostics struct {
	RangeWidthPct   float64
	ClosesInsidePct float64
	UpperRejections int
	LowerBounces    int
	RecentMovePct   float64
}

// RangeVerdict represents the outcome of a range evaluation.
type RangeVerdict struct {
	Valid bool
	// WindowDays is the day count of the validated window, or of the last window evaluated.
	WindowDays  int
	Lower       float64
	Upper       float64
	LastClose   float64
	Diagnostics RangeDiagnostics
	FailedRules []RangeRule
	Reasons     []string
	Label       RangeLabel

	Insufficient bool
	Reason       string
}

// Failed checks whether the provided rule failed for the verdict.
func (v *RangeVerdict) Failed(rule RangeRule) bool {
	return slices.Contains(v.FailedRules, rule)
}

// RangeEvaluatorConfig represents the range evaluator configuration.
type RangeEvaluatorConfig struct {
	// Rules represents the evaluation thresholds.
	Rules shared.Rules
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RangeEvaluatorConfig) Validate() error {
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

// RangeEvaluator searches trailing windows for a valid sideways range.
type RangeEvaluator struct {
	rules  shared.Rules
	logger *zerolog.Logger
}

// NewRangeEvaluator initializes a new range evaluator.
func NewRangeEvaluator(cfg *RangeEvaluatorConfig) (*RangeEvaluator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating range evaluator config: %w", err)
	}

	return &RangeEvaluator{
		rules:  cfg.Rules,
		logger: cfg.Logger,
	}, nil
}

// insufficientRangeVerdict returns a negative verdict for insufficient candle data.
func insufficientRangeVerdict() RangeVerdict {
	return RangeVerdict{
		Valid:        false,
		Label:        InsufficientRangeData,
		Insufficient: true,
		Reason:       "insufficient data",
	}
}

// labelRangeFailure describes the regime of a window that failed validation.
func labelRangeFailure(verdict *RangeVerdict) RangeLabel {
	switch {
	case verdict.Failed(StabilityRule):
		return DirectionalExpansion
	case !verdict.Failed(WidthRule) && !verdict.Failed(ContainmentRule) &&
		(verdict.Failed(UpperRejectionRule) || verdict.Failed(LowerBounceRule)):
		return ContainedButUntested
	default:
		return ChaoticOrUnstructured
	}
}

// evaluateWindow applies all range rules to the provided window.
func (e *RangeEvaluator) evaluateWindow(window []shared.Candle, days int) RangeVerdict {
	upper, lower := shared.Bounds(window)

	verdict := RangeVerdict{
		WindowDays: days,
		Lower:      lower,
		Upper:      upper,
		LastClose:  window[len(window)-1].Close,
	}

	diag := &verdict.Diagnostics

	diag.RangeWidthPct = (upper - lower) / lower * 100
	if diag.RangeWidthPct < e.rules.MinRangeWidthPct {
		verdict.FailedRules = append(verdict.FailedRules, WidthRule)
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("range width %.2f%% < %.2f%%",
			diag.RangeWidthPct, e.rules.MinRangeWidthPct))
	}

	var inside int
	for idx := range window {
		if window[idx].Close >= lower && window[idx].Close <= upper {
			inside++
		}
	}

	diag.ClosesInsidePct = float64(inside) / float64(len(window)) * 100
	if diag.ClosesInsidePct < e.rules.MinClosesInsidePct {
		verdict.FailedRules = append(verdict.FailedRules, ContainmentRule)
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("closes inside range %.1f%% < %.1f%%",
			diag.ClosesInsidePct, e.rules.MinClosesInsidePct))
	}

	// Boundary proximity bands are a percentage of the boundary price.
	upperNear := upper * (1 - e.rules.ProximityPct/100)
	lowerNear := lower * (1 + e.rules.ProximityPct/100)

	for idx := range window {
		candle := &window[idx]
		if candle.High >= upperNear && candle.Close < upper && candle.Close >= upperNear {
			diag.UpperRejections++
		}
		if candle.Low <= lowerNear && candle.Close > lower && candle.Close <= lowerNear {
			diag.LowerBounces++
		}
	}

	if diag.UpperRejections < e.rules.MinRejections {
		verdict.FailedRules = append(verdict.FailedRules, UpperRejectionRule)
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("upper rejections %d < %d",
			diag.UpperRejections, e.rules.MinRejections))
	}
	if diag.LowerBounces < e.rules.MinBounces {
		verdict.FailedRules = append(verdict.FailedRules, LowerBounceRule)
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("lower bounces %d < %d",
			diag.LowerBounces, e.rules.MinBounces))
	}

	recent := window
	recentSize := e.rules.CandlesPerDay * 2
	if len(window) > recentSize {
		recent = window[len(window)-recentSize:]
	}

	diag.RecentMovePct = math.Abs(shared.PercentChange(recent[len(recent)-1].Close, recent[0].Close))
	if diag.RecentMovePct > e.rules.TrendExpansionPct {
		verdict.FailedRules = append(verdict.FailedRules, StabilityRule)
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("recent 2d move %.2f%% > %.2f%%",
			diag.RecentMovePct, e.rules.TrendExpansionPct))
	}

	verdict.Valid = len(verdict.FailedRules) == 0
	switch {
	case verdict.Valid:
		verdict.Label = RangeBound
		verdict.Reasons = []string{fmt.Sprintf("valid %d-day range detected", days)}
	default:
		verdict.Label = labelRangeFailure(&verdict)
	}

	return verdict
}

// Evaluate searches the candidate lookback windows in ascending day order and returns the
// verdict of the first valid window, or of the longest window when none validates.
func (e *RangeEvaluator) Evaluate(candles []shared.Candle) RangeVerdict {
	need := e.rules.MaxDays * e.rules.CandlesPerDay
	if len(candles) < need {
		e.logger.Info().Msgf("range evaluation skipped, insufficient data: %d/%d candles", len(candles), need)
		return insufficientRangeVerdict()
	}

	var verdict RangeVerdict
	for days := e.rules.MinDays; days <= e.rules.MaxDays; days++ {
		window, err := shared.TrailingWindow(candles, days, e.rules.CandlesPerDay)
		if err != nil {
			var insufficientErr *shared.InsufficientDataError
			if errors.As(err, &insufficientErr) {
				return insufficientRangeVerdict()
			}

			// Unreachable with validated rules.
			e.logger.Error().Msgf("extracting %d-day range window: %v", days, err)
			return insufficientRangeVerdict()
		}

		verdict = e.evaluateWindow(window, days)

		e.logger.Debug().Msgf("%d-day range window [%.2f, %.2f]: valid=%v failed=%v",
			days, verdict.Lower, verdict.Upper, verdict.Valid, verdict.FailedRules)

		if verdict.Valid {
			return verdict
		}
	}

	verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("no valid %d-%d day range window found",
		e.rules.MinDays, e.rules.MaxDays))

	return verdict
}
