package priceaction

import (
	"testing"
	"time"

	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// flatCandles generates n four hour candles closing at the provided price.
func flatCandles(n int, price float64) []shared.Candle {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]shared.Candle, n)
	for idx := range n {
		candles[idx] = shared.Candle{
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Date:      start.Add(time.Hour * 4 * time.Duration(idx)),
			Timeframe: shared.FourHour,
		}
	}

	return candles
}

// touchUpper turns the candle at the provided index into an upper boundary rejection.
func touchUpper(candles []shared.Candle, idx int, upper float64, close float64) {
	candles[idx].High = upper
	candles[idx].Close = close
}

// touchLower turns the candle at the provided index into a lower boundary bounce.
func touchLower(candles []shared.Candle, idx int, lower float64, close float64) {
	candles[idx].Low = lower
	candles[idx].Close = close
}

func setupRangeEvaluator(t *testing.T, rules shared.Rules) *RangeEvaluator {
	evaluator, err := NewRangeEvaluator(&RangeEvaluatorConfig{
		Rules:  rules,
		Logger: &log.Logger,
	})
	assert.NoError(t, err)

	return evaluator
}

func TestRangeRuleString(t *testing.T) {
	tests := []struct {
		name string
		rule RangeRule
		want string
	}{
		{"width", WidthRule, "range_width"},
		{"containment", ContainmentRule, "closes_inside"},
		{"upper rejection", UpperRejectionRule, "upper_rejections"},
		{"lower bounce", LowerBounceRule, "lower_bounces"},
		{"stability", StabilityRule, "recent_stability"},
		{"unknown", RangeRule(999), "unknown"},
	}

	for _, test := range tests {
		str := test.rule.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestRangeLabelString(t *testing.T) {
	tests := []struct {
		name  string
		label RangeLabel
		want  string
	}{
		{"insufficient", InsufficientRangeData, "INSUFFICIENT_DATA"},
		{"range", RangeBound, "RANGE"},
		{"expansion", DirectionalExpansion, "DIRECTIONAL_EXPANSION"},
		{"untested", ContainedButUntested, "CONTAINED_BUT_UNTESTED"},
		{"chaotic", ChaoticOrUnstructured, "CHAOTIC_OR_UNSTRUCTURED"},
		{"unknown", RangeLabel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		str := test.label.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestRangeEvaluatorConfigValidate(t *testing.T) {
	// Ensure a nil logger is rejected.
	_, err := NewRangeEvaluator(&RangeEvaluatorConfig{Rules: shared.DefaultRules()})
	assert.Error(t, err)

	// Ensure invalid rules are rejected.
	rules := shared.DefaultRules()
	rules.MinDays = 11
	_, err = NewRangeEvaluator(&RangeEvaluatorConfig{Rules: rules, Logger: &log.Logger})
	assert.Error(t, err)

	// Ensure a valid config creates an evaluator.
	_, err = NewRangeEvaluator(&RangeEvaluatorConfig{Rules: shared.DefaultRules(), Logger: &log.Logger})
	assert.NoError(t, err)
}

func TestRangeEvaluatorSevenDayRange(t *testing.T) {
	evaluator := setupRangeEvaluator(t, shared.DefaultRules())

	// The last 42 candles form a 7-day range of [100, 108] tested twice at each boundary.
	candles := flatCandles(60, 104)
	window := candles[18:]
	touchUpper(window, 8, 108, 107.8)
	touchUpper(window, 14, 108, 107.8)
	touchLower(window, 20, 100, 100.2)
	touchLower(window, 26, 100, 100.2)

	verdict := evaluator.Evaluate(candles)
	assert.True(t, verdict.Valid)
	assert.Equal(t, verdict.WindowDays, 7)
	assert.Equal(t, verdict.Upper, float64(108))
	assert.Equal(t, verdict.Lower, float64(100))
	assert.Equal(t, verdict.LastClose, float64(104))
	assert.Equal(t, verdict.Label, RangeBound)
	assert.Equal(t, len(verdict.FailedRules), 0)
	assert.Equal(t, verdict.Diagnostics.UpperRejections, 2)
	assert.Equal(t, verdict.Diagnostics.LowerBounces, 2)
	assert.Equal(t, verdict.Diagnostics.ClosesInsidePct, float64(100))
	assert.Equal(t, verdict.Diagnostics.RecentMovePct, float64(0))
	assert.True(t, verdict.Diagnostics.RangeWidthPct > 7.99 && verdict.Diagnostics.RangeWidthPct < 8.01)
	assert.False(t, verdict.Insufficient)

	// Ensure the same window validates when it is the only candidate.
	rules := shared.DefaultRules()
	rules.MaxDays = 7
	rules.RangeFetchDays = 7
	evaluator = setupRangeEvaluator(t, rules)
	verdict = evaluator.Evaluate(window)
	assert.True(t, verdict.Valid)
	assert.Equal(t, verdict.WindowDays, 7)
}

func TestRangeEvaluatorAscendingSearch(t *testing.T) {
	evaluator := setupRangeEvaluator(t, shared.DefaultRules())

	// One upper rejection sits outside the 7-day window, so the first valid window is 8 days.
	candles := flatCandles(60, 104)
	touchUpper(candles, 15, 108, 107.8)
	touchUpper(candles, 30, 108, 107.8)
	touchLower(candles, 35, 100, 100.2)
	touchLower(candles, 40, 100, 100.2)

	// A spike only covered by the 10-day window.
	candles[5].High = 120

	verdict := evaluator.Evaluate(candles)
	assert.True(t, verdict.Valid)
	assert.Equal(t, verdict.WindowDays, 8)

	// Ensure the boundaries are exactly those of the 8-day window.
	eightDay, err := shared.TrailingWindow(candles, 8, 6)
	assert.NoError(t, err)
	upper, lower := shared.Bounds(eightDay)
	assert.Equal(t, verdict.Upper, upper)
	assert.Equal(t, verdict.Lower, lower)
	assert.Equal(t, verdict.Upper, float64(108))

	// Ensure the shorter window was evaluated and rejected.
	sevenDay, err := shared.TrailingWindow(candles, 7, 6)
	assert.NoError(t, err)
	sevenDayVerdict := evaluator.evaluateWindow(sevenDay, 7)
	assert.False(t, sevenDayVerdict.Valid)
	if !cmp.Equal(sevenDayVerdict.FailedRules, []RangeRule{UpperRejectionRule}) {
		t.Errorf("mismatching failed rules, got %v", cmp.Diff(sevenDayVerdict.FailedRules, []RangeRule{UpperRejectionRule}))
	}
}

func TestRangeEvaluatorFailures(t *testing.T) {
	tests := []struct {
		name            string
		candles         func() []shared.Candle
		wantFailedRules []RangeRule
		wantLabel       RangeLabel
	}{
		{
			name: "flat and narrow",
			candles: func() []shared.Candle {
				return flatCandles(60, 104)
			},
			wantFailedRules: []RangeRule{WidthRule, UpperRejectionRule, LowerBounceRule},
			wantLabel:       ChaoticOrUnstructured,
		},
		{
			name: "contained but untested",
			candles: func() []shared.Candle {
				candles := flatCandles(60, 104)
				candles[50].High = 108
				candles[52].Low = 100
				return candles
			},
			wantFailedRules: []RangeRule{UpperRejectionRule, LowerBounceRule},
			wantLabel:       ContainedButUntested,
		},
		{
			name: "recent directional expansion",
			candles: func() []shared.Candle {
				candles := flatCandles(60, 104)
				touchUpper(candles, 20, 108, 107.8)
				touchUpper(candles, 30, 108, 107.8)
				touchLower(candles, 25, 100, 100.2)
				touchLower(candles, 35, 100, 100.2)
				for idx := 48; idx < 60; idx++ {
					price := 104 + float64(idx-47)*0.3
					candles[idx].Close = price
					candles[idx].High = price + 0.1
					candles[idx].Low = price - 0.1
				}
				return candles
			},
			wantFailedRules: []RangeRule{StabilityRule},
			wantLabel:       DirectionalExpansion,
		},
	}

	evaluator := setupRangeEvaluator(t, shared.DefaultRules())

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			verdict := evaluator.Evaluate(test.candles())
			assert.False(t, verdict.Valid)
			assert.False(t, verdict.Insufficient)
			assert.Equal(t, verdict.WindowDays, 10)
			assert.Equal(t, verdict.Label, test.wantLabel)
			if !cmp.Equal(verdict.FailedRules, test.wantFailedRules) {
				t.Errorf("mismatching failed rules, got %v", cmp.Diff(verdict.FailedRules, test.wantFailedRules))
			}
			assert.Equal(t, len(verdict.Reasons), len(test.wantFailedRules)+1)
		})
	}
}

func TestRangeEvaluatorInsufficientData(t *testing.T) {
	evaluator := setupRangeEvaluator(t, shared.DefaultRules())

	candles := flatCandles(59, 104)
	verdict := evaluator.Evaluate(candles)
	assert.False(t, verdict.Valid)
	assert.True(t, verdict.Insufficient)
	assert.Equal(t, verdict.Reason, "insufficient data")
	assert.Equal(t, verdict.Label, InsufficientRangeData)
	assert.Equal(t, verdict.WindowDays, 0)
	assert.Nil(t, verdict.FailedRules)
	assert.Equal(t, verdict.Diagnostics, RangeDiagnostics{})

	verdict = evaluator.Evaluate(nil)
	assert.True(t, verdict.Insufficient)
}
