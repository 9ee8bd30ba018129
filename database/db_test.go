package database

import (
	"testing"
	"time"

	"github.com/RayWalsh/btc-range-gate/engine"
	"github.com/RayWalsh/btc-range-gate/position"
	"github.com/RayWalsh/btc-range-gate/priceaction"
	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/peterldowns/testy/assert"
)

var recordTime = time.Date(2025, 3, 15, 0, 5, 0, 0, time.UTC)

// rangeRecord returns a record of a valid range decision with its plan.
func rangeRecord(t *testing.T) *Record {
	decision := engine.Combine(priceaction.RangeVerdict{
		Valid:      true,
		WindowDays: 7,
		Lower:      100,
		Upper:      108,
		LastClose:  104,
		Diagnostics: priceaction.RangeDiagnostics{
			RangeWidthPct:   8,
			ClosesInsidePct: 100,
			UpperRejections: 2,
			LowerBounces:    3,
		},
		Label: priceaction.RangeBound,
	}, priceaction.TrendVerdict{
		Decision:   priceaction.NoTrend,
		Direction:  shared.Up,
		Origin:     101,
		LastClose:  103,
		NetMovePct: 1.98,
		FailedRule: priceaction.ExpansionRule,
	})

	plan, err := position.GeneratePlan(decision)
	assert.NoError(t, err)

	return NewRecord("XBTUSD", 104.25, decision, plan, recordTime)
}

// driftRecord returns a record of a drift decision without a plan.
func driftRecord() *Record {
	decision := engine.Combine(priceaction.RangeVerdict{
		WindowDays:  10,
		Lower:       95,
		Upper:       110,
		LastClose:   101,
		FailedRules: []priceaction.RangeRule{priceaction.ContainmentRule, priceaction.StabilityRule},
		Label:       priceaction.DirectionalExpansion,
	}, priceaction.TrendVerdict{Insufficient: true, Reason: "insufficient data"})

	return NewRecord("XBTUSD", 101, decision, nil, recordTime)
}

func TestRecord(t *testing.T) {
	rec := rangeRecord(t)
	assert.NoError(t, rec.Validate())
	assert.Equal(t, len(rec.ID), 36)
	assert.Equal(t, rec.Timestamp, recordTime)

	// Ensure records get unique ids.
	assert.NotEqual(t, rec.ID, rangeRecord(t).ID)

	// Ensure invalid records are rejected.
	assert.Error(t, (&Record{Timestamp: recordTime, Decision: rec.Decision}).Validate())
	assert.Error(t, (&Record{ID: "id", Timestamp: recordTime}).Validate())
	assert.Error(t, (&Record{ID: "id", Decision: rec.Decision}).Validate())
}

func TestDecisionRow(t *testing.T) {
	rec := rangeRecord(t)
	row := NewDecisionRow(rec)
	assert.Equal(t, row.Strategy, "RANGE TRADING")
	assert.Equal(t, row.Regime, "RANGE")
	assert.Equal(t, row.RangeDecision, "RANGE VALID")
	assert.Equal(t, row.RangeUpperTests, 2)
	assert.Equal(t, row.RangeLowerTests, 3)
	assert.Equal(t, row.TrendDecision, "NO TREND")
	assert.Equal(t, row.TrendFailedRule, "expansion")
	assert.Equal(t, row.RangeReadinessState, "RANGE_READY")
	assert.Equal(t, row.TrendReadinessState, "AWAITING_EXPANSION")
	assert.Equal(t, row.ReferencePrice, float64(104))

	fields := row.Fields()
	assert.Equal(t, len(fields), len(decisionHeader))
	assert.Equal(t, len(row.params()), len(decisionHeader))
	assert.Equal(t, fields[1], "2025-03-15T00:05:00Z")
	assert.Equal(t, fields[6], "7")
	assert.Equal(t, fields[7], "100")
	assert.Equal(t, fields[21], "1.98")

	// Ensure failed range rules are carried in order.
	row = NewDecisionRow(driftRecord())
	assert.Equal(t, row.RangeDecision, "NO RANGE")
	assert.Equal(t, row.RangeFailedRules, "closes_inside;recent_stability")
	assert.Equal(t, row.RangeLabel, "DIRECTIONAL_EXPANSION")
	assert.Equal(t, row.TrendDirectionBias, "")
	assert.Equal(t, row.ReferencePrice, float64(101))
}

func TestPlanRow(t *testing.T) {
	// Ensure records without plans have no plan row.
	assert.Nil(t, NewPlanRow(driftRecord()))

	row := NewPlanRow(rangeRecord(t))
	assert.NotNil(t, row)
	assert.Equal(t, row.Strategy, "RANGE TRADING")
	assert.Equal(t, *row.EntryZoneHigh, 101.2)
	assert.Nil(t, row.PullbackZoneLow)
	assert.Nil(t, row.Target)

	fields := row.Fields()
	assert.Equal(t, len(fields), len(planHeader))
	assert.Equal(t, len(row.params()), len(planHeader))
	assert.Equal(t, fields[4], "104.25")
	assert.Equal(t, fields[5], "100")
	assert.Equal(t, fields[9], "")
	assert.Equal(t, fields[11], "99.2")
	assert.Equal(t, fields[15], "Mean reversion inside validated range")

	// Ensure trend plans only carry trend levels.
	plan, err := position.NewTrendPlan(100, 110)
	assert.NoError(t, err)
	rec := NewRecord("XBTUSD", 109, &engine.RegimeDecision{Strategy: engine.TrendPullback}, plan, recordTime)
	row = NewPlanRow(rec)
	assert.Nil(t, row.RangeLower)
	assert.Nil(t, row.TP1)
	assert.Equal(t, *row.PullbackZoneLow, float64(105))
	assert.Equal(t, *row.Target, float64(110))
}

func TestInsertSQL(t *testing.T) {
	got := insertSQL("t", []string{"a", "b", "c"})
	assert.Equal(t, got, "INSERT INTO t(a, b, c) VALUES(?,?,?)")
}
