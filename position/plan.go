package position

import (
	"math"

	"github.com/RayWalsh/btc-range-gate/engine"
	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/shopspring/decimal"
)

var (
	// rangeEntryFraction is the share of the range width above the lower boundary used as the entry zone.
	rangeEntryFraction = decimal.RequireFromString("0.15")
	// rangeInvalidationFraction is the share of the range width below the lower boundary that invalidates the plan.
	rangeInvalidationFraction = decimal.RequireFromString("0.10")
	// rangeMidFraction is the share of the range width locating the first target.
	rangeMidFraction = decimal.RequireFromString("0.50")
	// rangeUpperFraction is the share of the range width below the upper boundary locating the second target.
	rangeUpperFraction = decimal.RequireFromString("0.10")
	// pullbackDeepFraction is the deepest trend retracement of the pullback zone.
	pullbackDeepFraction = decimal.RequireFromString("0.50")
	// pullbackShallowFraction is the shallowest trend retracement of the pullback zone.
	pullbackShallowFraction = decimal.RequireFromString("0.30")
)

// TradePlan represents the numeric trade plan of an actionable regime decision. Levels that
// do not apply to the plan's strategy are zero.
type TradePlan struct {
	Strategy engine.Strategy
	Regime   engine.Regime

	RangeLower float64
	RangeUpper float64

	TrendOrigin float64
	TrendHigh   float64

	EntryZoneLow     float64
	EntryZoneHigh    float64
	PullbackZoneLow  float64
	PullbackZoneHigh float64
	Invalidation     float64
	TP1              float64
	TP2              float64
	Target           float64

	Notes string
}

// toDecimal converts the provided price to a decimal.
func toDecimal(val float64) decimal.Decimal {
	return decimal.NewFromFloat(val)
}

// toFloat converts the provided decimal to a price.
func toFloat(val decimal.Decimal) float64 {
	return val.InexactFloat64()
}

// validateBoundaries asserts the provided boundary pair is well formed.
func validateBoundaries(kind string, low float64, high float64) error {
	for _, val := range []float64{low, high} {
		if math.IsNaN(val) || math.IsInf(val, 0) || val <= 0 {
			return &shared.InvalidBoundaryError{Kind: kind, Low: low, High: high}
		}
	}

	if high <= low {
		return &shared.InvalidBoundaryError{Kind: kind, Low: low, High: high}
	}

	return nil
}

// NewRangePlan projects a mean reversion plan from the provided range boundaries.
func NewRangePlan(lower float64, upper float64) (*TradePlan, error) {
	err := validateBoundaries("range", lower, upper)
	if err != nil {
		return nil, err
	}

	low := toDecimal(lower)
	high := toDecimal(upper)
	width := high.Sub(low)

	return &TradePlan{
		Strategy:      engine.RangeTrading,
		Regime:        engine.RangeRegime,
		RangeLower:    lower,
		RangeUpper:    upper,
		EntryZoneLow:  lower,
		EntryZoneHigh: toFloat(low.Add(width.Mul(rangeEntryFraction))),
		Invalidation:  toFloat(low.Sub(width.Mul(rangeInvalidationFraction))),
		TP1:           toFloat(low.Add(width.Mul(rangeMidFraction))),
		TP2:           toFloat(high.Sub(width.Mul(rangeUpperFraction))),
		Notes:         "Mean reversion inside validated range",
	}, nil
}

// NewTrendPlan projects a pullback continuation plan from the provided trend origin and high.
func NewTrendPlan(origin float64, high float64) (*TradePlan, error) {
	err := validateBoundaries("trend", origin, high)
	if err != nil {
		return nil, err
	}

	start := toDecimal(origin)
	peak := toDecimal(high)
	span := peak.Sub(start)

	return &TradePlan{
		Strategy:         engine.TrendPullback,
		Regime:           engine.TrendUpRegime,
		TrendOrigin:      origin,
		TrendHigh:        high,
		PullbackZoneLow:  toFloat(peak.Sub(span.Mul(pullbackDeepFraction))),
		PullbackZoneHigh: toFloat(peak.Sub(span.Mul(pullbackShallowFraction))),
		Invalidation:     origin,
		Target:           high,
		Notes:            "Pullback continuation in confirmed trend",
	}, nil
}

// GeneratePlan derives the trade plan of the provided decision. Decisions without an active
// strategy have no plan.
func GeneratePlan(decision *engine.RegimeDecision) (*TradePlan, error) {
	switch decision.Strategy {
	case engine.RangeTrading:
		return NewRangePlan(decision.Range.Lower, decision.Range.Upper)
	case engine.TrendPullback:
		return NewTrendPlan(decision.Trend.Origin, decision.Trend.High)
	default:
		return nil, nil
	}
}
