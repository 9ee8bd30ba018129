package engine

import (
	"fmt"
	"strings"

	"github.com/RayWalsh/btc-range-gate/priceaction"
)

// yesNo renders the provided flag for humans.
func yesNo(flag bool) string {
	if flag {
		return "YES"
	}

	return "NO"
}

// action returns the operator action for the provided decision.
func action(decision *RegimeDecision) string {
	switch decision.Regime {
	case RangeRegime:
		return "PREPARE RANGE TRADE"
	case TrendUpRegime:
		return "PREPARE TREND PULLBACK TRADE (SPOT)"
	case BearishStandDownRegime:
		return "STAND DOWN"
	default:
		return "WAIT"
	}
}

// rangeLines renders the range section of the progress report.
func rangeLines(verdict *priceaction.RangeVerdict, readiness RangeReadiness) []string {
	if verdict.Insufficient {
		return []string{
			"Range: NO RANGE (insufficient data)",
			fmt.Sprintf("- Readiness: %s", readiness.String()),
		}
	}

	lines := make([]string, 0, 6)
	switch {
	case verdict.Valid:
		lines = append(lines, fmt.Sprintf("Range: VALID %d-day range [%.2f, %.2f]",
			verdict.WindowDays, verdict.Lower, verdict.Upper))
	default:
		lines = append(lines, fmt.Sprintf("Range: NO RANGE (%s) over %d days [%.2f, %.2f]",
			verdict.Label.String(), verdict.WindowDays, verdict.Lower, verdict.Upper))
	}

	diag := &verdict.Diagnostics
	lines = append(lines,
		fmt.Sprintf("- Width %.2f%%, closes inside %.1f%%", diag.RangeWidthPct, diag.ClosesInsidePct),
		fmt.Sprintf("- Upper tests %d, lower tests %d", diag.UpperRejections, diag.LowerBounces),
		fmt.Sprintf("- Recent move %.2f%%", diag.RecentMovePct))

	if len(verdict.FailedRules) > 0 {
		failed := make([]string, len(verdict.FailedRules))
		for idx, rule := range verdict.FailedRules {
			failed[idx] = rule.String()
		}
		lines = append(lines, fmt.Sprintf("- Failed rules: %s", strings.Join(failed, ", ")))
	}

	lines = append(lines, fmt.Sprintf("- Readiness: %s", readiness.String()))

	return lines
}

// trendLines renders the trend watch section of the progress report.
func trendLines(verdict *priceaction.TrendVerdict, readiness TrendReadiness) []string {
	if verdict.Insufficient {
		return []string{
			"Trend watch: NO TREND (insufficient data)",
			fmt.Sprintf("- Readiness: %s", readiness.String()),
		}
	}

	lines := []string{
		fmt.Sprintf("Trend watch: %s", verdict.Decision.String()),
		fmt.Sprintf("- Directional bias: %s", verdict.Direction.String()),
		fmt.Sprintf("- Price at window start: $%.2f", verdict.Origin),
		fmt.Sprintf("- Price now: $%.2f", verdict.LastClose),
		fmt.Sprintf("- Net move: %.2f%%", verdict.NetMovePct),
	}

	switch verdict.FailedRule {
	case priceaction.ExpansionRule:
		lines = append(lines, "- Insufficient expansion")
	default:
		lines = append(lines, "- Sufficient expansion",
			fmt.Sprintf("- Directional closes: %d", verdict.DirectionalCloses))
	}

	// Pullbacks are only measured once the earlier conditions hold.
	switch verdict.FailedRule {
	case priceaction.NoTrendRule, priceaction.PullbackRule:
		lines = append(lines,
			fmt.Sprintf("- Pullback observed: %s", yesNo(verdict.PullbackObserved)),
			fmt.Sprintf("- Pullback failure: %s", yesNo(verdict.PullbackFailed)))

		switch {
		case verdict.PullbackFailed:
			lines = append(lines, "- Trend defended")
		default:
			lines = append(lines, "- Trend not defended yet")
		}
	}

	if verdict.FailedRule != priceaction.NoTrendRule {
		lines = append(lines, fmt.Sprintf("- Failed at %s: %s", verdict.FailedRule.String(), verdict.Reason))
	}

	lines = append(lines, fmt.Sprintf("- Readiness: %s", readiness.String()))

	return lines
}

// DiagnosticLines renders the human-readable progress report of the provided decision.
func DiagnosticLines(decision *RegimeDecision) []string {
	lines := []string{
		fmt.Sprintf("Strategy: %s", decision.Strategy.String()),
		fmt.Sprintf("Regime: %s", decision.Regime.String()),
		fmt.Sprintf("Reference price: $%.2f", decision.ReferencePrice),
	}

	lines = append(lines, rangeLines(&decision.Range, decision.RangeReadiness)...)
	lines = append(lines, trendLines(&decision.Trend, decision.TrendReadiness)...)

	status := "Structure incomplete"
	if decision.Strategy != NoActiveStrategy || decision.Regime == BearishStandDownRegime {
		status = "Structure complete"
	}

	lines = append(lines,
		fmt.Sprintf("Overall status: %s", status),
		fmt.Sprintf("- Notes: %s", decision.Notes),
		fmt.Sprintf("- Action: %s", action(decision)))

	return lines
}
