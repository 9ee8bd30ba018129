package engine

import (
	"slices"

	"github.com/RayWalsh/btc-range-gate/priceaction"
	"github.com/RayWalsh/btc-range-gate/shared"
)

// Strategy represents the strategy selected for an evaluation cycle.
type Strategy int

const (
	NoActiveStrategy Strategy = iota
	RangeTrading
	TrendPullback
)

// String stringifies the provided strategy.
func (s Strategy) String() string {
	switch s {
	case RangeTrading:
		return "RANGE TRADING"
	case TrendPullback:
		return "TREND PULLBACK (SPOT)"
	default:
		return "NO ACTIVE STRATEGY"
	}
}

// Regime represents the market regime label of an evaluation cycle.
type Regime int

const (
	DriftRegime Regime = iota
	RangeRegime
	TrendUpRegime
	BearishStandDownRegime
)

// String stringifies the provided regime.
func (r Regime) String() string {
	switch r {
	case RangeRegime:
		return "RANGE"
	case TrendUpRegime:
		return "TREND (UP)"
	case BearishStandDownRegime:
		return "BEARISH STAND-DOWN"
	default:
		return "DRIFT / TRANSITION"
	}
}

// RangeReadiness describes how close the market is to a tradeable range.
type RangeReadiness int

const (
	RangeNotContained RangeReadiness = iota
	RangeContainedButUntested
	RangeReady
)

// String stringifies the provided range readiness.
func (r RangeReadiness) String() string {
	switch r {
	case RangeReady:
		return "RANGE_READY"
	case RangeContainedButUntested:
		return "RANGE_CONTAINED_BUT_UNTESTED"
	default:
		return "RANGE_NOT_CONTAINED"
	}
}

// TrendReadiness describes how close the market is to a tradeable trend.
type TrendReadiness int

const (
	EarlyDirectionalDrift TrendReadiness = iota
	AwaitingExpansion
	AwaitingFailedPullback
	TrendReady
)

// String stringifies the provided trend readiness.
func (r TrendReadiness) String() string {
	switch r {
	case TrendReady:
		return "TREND_READY"
	case AwaitingExpansion:
		return "AWAITING_EXPANSION"
	case AwaitingFailedPullback:
		return "AWAITING_FAILED_PULLBACK"
	default:
		return "EARLY_DIRECTIONAL_DRIFT"
	}
}

// RegimeDecision represents the outcome of a single evaluation cycle.
type RegimeDecision struct {
	Strategy Strategy
	Regime   Regime
	Range    priceaction.RangeVerdict
	Trend    priceaction.TrendVerdict
	// ReferencePrice is the price the decision is anchored to.
	ReferencePrice float64
	RangeReadiness RangeReadiness
	TrendReadiness TrendReadiness
	Notes          string
}

// rangeReadiness derives the range readiness state of the provided verdict.
func rangeReadiness(verdict *priceaction.RangeVerdict) RangeReadiness {
	switch {
	case verdict.Valid:
		return RangeReady
	case verdict.Label == priceaction.ContainedButUntested:
		return RangeContainedButUntested
	default:
		return RangeNotContained
	}
}

// trendReadiness derives the trend readiness state of the provided verdict.
func trendReadiness(verdict *priceaction.TrendVerdict) TrendReadiness {
	switch {
	case verdict.Decision == priceaction.Confirmed:
		return TrendReady
	case verdict.Insufficient || verdict.FailedRule == priceaction.ExpansionRule:
		return AwaitingExpansion
	case verdict.FailedRule == priceaction.PullbackRule && verdict.PullbackObserved:
		return AwaitingFailedPullback
	default:
		return EarlyDirectionalDrift
	}
}

// latestClose returns the most recent close observed by the evaluators.
func latestClose(rangeVerdict *priceaction.RangeVerdict, trendVerdict *priceaction.TrendVerdict) float64 {
	if !trendVerdict.Insufficient && trendVerdict.LastClose > 0 {
		return trendVerdict.LastClose
	}

	return rangeVerdict.LastClose
}

// Combine selects the strategy for the provided verdicts. A valid range always takes
// priority over a confirmed trend.
func Combine(rangeVerdict priceaction.RangeVerdict, trendVerdict priceaction.TrendVerdict) *RegimeDecision {
	decision := &RegimeDecision{
		Range:          rangeVerdict,
		Trend:          trendVerdict,
		RangeReadiness: rangeReadiness(&rangeVerdict),
		TrendReadiness: trendReadiness(&trendVerdict),
	}
	decision.Range.FailedRules = slices.Clone(rangeVerdict.FailedRules)
	decision.Range.Reasons = slices.Clone(rangeVerdict.Reasons)

	confirmed := trendVerdict.Decision == priceaction.Confirmed

	switch {
	case rangeVerdict.Valid:
		decision.Strategy = RangeTrading
		decision.Regime = RangeRegime
		decision.ReferencePrice = rangeVerdict.LastClose
		decision.Notes = "Mean reversion inside validated range"

	case confirmed && trendVerdict.Direction == shared.Up:
		decision.Strategy = TrendPullback
		decision.Regime = TrendUpRegime
		decision.ReferencePrice = trendVerdict.High
		decision.Notes = "Pullback continuation in confirmed trend"

	case confirmed && trendVerdict.Direction == shared.Down:
		decision.Strategy = NoActiveStrategy
		decision.Regime = BearishStandDownRegime
		decision.ReferencePrice = latestClose(&rangeVerdict, &trendVerdict)
		decision.Notes = "Confirmed downtrend, spot longs stood down"

	default:
		decision.Strategy = NoActiveStrategy
		decision.Regime = DriftRegime
		decision.ReferencePrice = latestClose(&rangeVerdict, &trendVerdict)
		decision.Notes = "No validated range or confirmed uptrend, waiting"
	}

	return decision
}
