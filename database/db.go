package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RayWalsh/btc-range-gate/engine"
	"github.com/RayWalsh/btc-range-gate/position"
	"github.com/google/uuid"
)

// DecisionStorer defines the requirements for storing regime decisions.
type DecisionStorer interface {
	// PersistDecision stores the provided decision record.
	PersistDecision(ctx context.Context, rec *Record) error
	// Close releases resources held by the storer.
	Close() error
}

// Record represents the persisted outcome of a single evaluation cycle.
type Record struct {
	ID        string
	Timestamp time.Time
	Market    string
	// SpotPrice is the latest observed close at evaluation time.
	SpotPrice float64
	Decision  *engine.RegimeDecision
	// Plan is nil when the decision has no active strategy.
	Plan *position.TradePlan
}

// NewRecord initializes a new decision record.
func NewRecord(market string, spotPrice float64, decision *engine.RegimeDecision, plan *position.TradePlan, now time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
		Market:    market,
		SpotPrice: spotPrice,
		Decision:  decision,
		Plan:      plan,
	}
}

// Validate asserts the record can be persisted.
func (r *Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("record id cannot be empty")
	case r.Decision == nil:
		return fmt.Errorf("record %s has no decision", r.ID)
	case r.Timestamp.IsZero():
		return fmt.Errorf("record %s has no timestamp", r.ID)
	default:
		return nil
	}
}

// DecisionRow is the flattened regime log row of a record.
type DecisionRow struct {
	ID                     string `gorm:"primaryKey"`
	TimestampUTC           time.Time
	Market                 string
	Strategy               string
	Regime                 string
	RangeDecision          string
	RangeWindowDays        int
	RangeLower             float64
	RangeUpper             float64
	RangeWidthPct          float64
	RangeClosesInsidePct   float64
	RangeUpperTests        int
	RangeLowerTests        int
	RangeRecentMovePct     float64
	RangeFailedRules       string
	RangeLabel             string
	TrendDecision          string
	TrendDirectionBias     string
	TrendPriceThen         float64
	TrendPriceNow          float64
	TrendHigh              float64
	TrendNetMovePct        float64
	TrendDirectionalCloses int
	TrendPullbackObserved  bool
	TrendPullbackFailed    bool
	TrendRetracePct        float64
	TrendFailedRule        string
	RangeReadinessState    string
	TrendReadinessState    string
	ReferencePrice         float64
}

// TableName returns the regime log table name.
func (DecisionRow) TableName() string {
	return "regime_log"
}

// decisionHeader is the regime log column set.
var decisionHeader = []string{
	"id", "timestamp_utc", "market", "strategy", "regime",
	"range_decision", "range_window_days", "range_lower", "range_upper", "range_width_pct",
	"range_closes_inside_pct", "range_upper_tests", "range_lower_tests", "range_recent_move_pct",
	"range_failed_rules", "range_label",
	"trend_decision", "trend_direction_bias", "trend_price_then", "trend_price_now", "trend_high",
	"trend_net_move_pct", "trend_directional_closes", "trend_pullback_observed", "trend_pullback_failed",
	"trend_retrace_pct", "trend_failed_rule",
	"range_readiness_state", "trend_readiness_state", "reference_price",
}

// NewDecisionRow flattens the provided record into a regime log row.
func NewDecisionRow(rec *Record) *DecisionRow {
	d := rec.Decision
	rv := &d.Range
	tv := &d.Trend

	rangeDecision := "NO RANGE"
	if rv.Valid {
		rangeDecision = "RANGE VALID"
	}

	failed := make([]string, len(rv.FailedRules))
	for idx, rule := range rv.FailedRules {
		failed[idx] = rule.String()
	}

	return &DecisionRow{
		ID:                     rec.ID,
		TimestampUTC:           rec.Timestamp.UTC(),
		Market:                 rec.Market,
		Strategy:               d.Strategy.String(),
		Regime:                 d.Regime.String(),
		RangeDecision:          rangeDecision,
		RangeWindowDays:        rv.WindowDays,
		RangeLower:             rv.Lower,
		RangeUpper:             rv.Upper,
		RangeWidthPct:          rv.Diagnostics.RangeWidthPct,
		RangeClosesInsidePct:   rv.Diagnostics.ClosesInsidePct,
		RangeUpperTests:        rv.Diagnostics.UpperRejections,
		RangeLowerTests:        rv.Diagnostics.LowerBounces,
		RangeRecentMovePct:     rv.Diagnostics.RecentMovePct,
		RangeFailedRules:       strings.Join(failed, ";"),
		RangeLabel:             rv.Label.String(),
		TrendDecision:          tv.Decision.String(),
		TrendDirectionBias:     tv.Direction.String(),
		TrendPriceThen:         tv.Origin,
		TrendPriceNow:          tv.LastClose,
		TrendHigh:              tv.High,
		TrendNetMovePct:        tv.NetMovePct,
		TrendDirectionalCloses: tv.DirectionalCloses,
		TrendPullbackObserved:  tv.PullbackObserved,
		TrendPullbackFailed:    tv.PullbackFailed,
		TrendRetracePct:        tv.RetracePct,
		TrendFailedRule:        tv.FailedRule.String(),
		RangeReadinessState:    d.RangeReadiness.String(),
		TrendReadinessState:    d.TrendReadiness.String(),
		ReferencePrice:         d.ReferencePrice,
	}
}

// formatFloat renders the provided float without trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatOptional renders the provided optional float, empty when absent.
func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}

	return formatFloat(*f)
}

// Fields returns the row values in regime log column order.
func (r *DecisionRow) Fields() []string {
	return []string{
		r.ID, r.TimestampUTC.Format(time.RFC3339), r.Market, r.Strategy, r.Regime,
		r.RangeDecision, strconv.Itoa(r.RangeWindowDays), formatFloat(r.RangeLower),
		formatFloat(r.RangeUpper), formatFloat(r.RangeWidthPct), formatFloat(r.RangeClosesInsidePct),
		strconv.Itoa(r.RangeUpperTests), strconv.Itoa(r.RangeLowerTests),
		formatFloat(r.RangeRecentMovePct), r.RangeFailedRules, r.RangeLabel,
		r.TrendDecision, r.TrendDirectionBias, formatFloat(r.TrendPriceThen),
		formatFloat(r.TrendPriceNow), formatFloat(r.TrendHigh), formatFloat(r.TrendNetMovePct),
		strconv.Itoa(r.TrendDirectionalCloses), strconv.FormatBool(r.TrendPullbackObserved),
		strconv.FormatBool(r.TrendPullbackFailed), formatFloat(r.TrendRetracePct), r.TrendFailedRule,
		r.RangeReadinessState, r.TrendReadinessState, formatFloat(r.ReferencePrice),
	}
}

// params returns the row values as positional sql parameters in column order.
func (r *DecisionRow) params() []any {
	return []any{
		r.ID, r.TimestampUTC.Unix(), r.Market, r.Strategy, r.Regime,
		r.RangeDecision, r.RangeWindowDays, r.RangeLower, r.RangeUpper, r.RangeWidthPct,
		r.RangeClosesInsidePct, r.RangeUpperTests, r.RangeLowerTests, r.RangeRecentMovePct,
		r.RangeFailedRules, r.RangeLabel,
		r.TrendDecision, r.TrendDirectionBias, r.TrendPriceThen, r.TrendPriceNow, r.TrendHigh,
		r.TrendNetMovePct, r.TrendDirectionalCloses, r.TrendPullbackObserved, r.TrendPullbackFailed,
		r.TrendRetracePct, r.TrendFailedRule,
		r.RangeReadinessState, r.TrendReadinessState, r.ReferencePrice,
	}
}

// PlanRow is the flattened trade plan log row of a record. Levels that do not apply to
// the plan's strategy are nil.
type PlanRow struct {
	ID               string `gorm:"primaryKey"`
	TimestampUTC     time.Time
	Regime           string
	Strategy         string
	SpotPrice        float64
	RangeLower       *float64
	RangeUpper       *float64
	EntryZoneLow     *float64
	EntryZoneHigh    *float64
	PullbackZoneLow  *float64
	PullbackZoneHigh *float64
	Invalidation     float64
	TP1              *float64
	TP2              *float64
	Target           *float64
	Notes            string
}

// TableName returns the trade plan log table name.
func (PlanRow) TableName() string {
	return "trade_plan_log"
}

// planHeader is the trade plan log column set.
var planHeader = []string{
	"id", "timestamp_utc", "regime", "strategy", "spot_price", "range_lower", "range_upper",
	"entry_zone_low", "entry_zone_high", "pullback_zone_low", "pullback_zone_high", "invalidation",
	"tp1", "tp2", "target", "notes",
}

// NewPlanRow flattens the provided record into a trade plan log row, nil if the record
// has no plan.
func NewPlanRow(rec *Record) *PlanRow {
	plan := rec.Plan
	if plan == nil {
		return nil
	}

	level := func(f float64) *float64 {
		return &f
	}

	row := &PlanRow{
		ID:           rec.ID,
		TimestampUTC: rec.Timestamp.UTC(),
		Regime:       plan.Regime.String(),
		Strategy:     plan.Strategy.String(),
		SpotPrice:    rec.SpotPrice,
		Invalidation: plan.Invalidation,
		Notes:        plan.Notes,
	}

	switch plan.Strategy {
	case engine.RangeTrading:
		row.RangeLower = level(plan.RangeLower)
		row.RangeUpper = level(plan.RangeUpper)
		row.EntryZoneLow = level(plan.EntryZoneLow)
		row.EntryZoneHigh = level(plan.EntryZoneHigh)
		row.TP1 = level(plan.TP1)
		row.TP2 = level(plan.TP2)
	case engine.TrendPullback:
		row.PullbackZoneLow = level(plan.PullbackZoneLow)
		row.PullbackZoneHigh = level(plan.PullbackZoneHigh)
		row.Target = level(plan.Target)
	}

	return row
}

// Fields returns the row values in trade plan log column order.
func (r *PlanRow) Fields() []string {
	return []string{
		r.ID, r.TimestampUTC.Format(time.RFC3339), r.Regime, r.Strategy,
		strconv.FormatFloat(r.SpotPrice, 'f', 2, 64), formatOptional(r.RangeLower),
		formatOptional(r.RangeUpper), formatOptional(r.EntryZoneLow), formatOptional(r.EntryZoneHigh),
		formatOptional(r.PullbackZoneLow), formatOptional(r.PullbackZoneHigh),
		formatFloat(r.Invalidation), formatOptional(r.TP1), formatOptional(r.TP2),
		formatOptional(r.Target), r.Notes,
	}
}

// params returns the row values as positional sql parameters in column order.
func (r *PlanRow) params() []any {
	optional := func(f *float64) any {
		if f == nil {
			return nil
		}
		return *f
	}

	return []any{
		r.ID, r.TimestampUTC.Unix(), r.Regime, r.Strategy, r.SpotPrice, optional(r.RangeLower),
		optional(r.RangeUpper), optional(r.EntryZoneLow), optional(r.EntryZoneHigh),
		optional(r.PullbackZoneLow), optional(r.PullbackZoneHigh), r.Invalidation,
		optional(r.TP1), optional(r.TP2), optional(r.Target), r.Notes,
	}
}
