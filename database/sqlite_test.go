package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestSQLite(t *testing.T) {
	// Ensure the config is validated.
	_, err := NewSQLite(&SQLiteConfig{Logger: &log.Logger})
	assert.Error(t, err)

	store, err := NewSQLite(&SQLiteConfig{
		Path:   filepath.Join(t.TempDir(), "db", "regime.db"),
		Logger: &log.Logger,
	})
	assert.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// Ensure a record and its plan can be persisted.
	ranged := rangeRecord(t)
	assert.NoError(t, store.PersistDecision(ctx, ranged))

	row, err := store.FetchDecision(ctx, ranged.ID)
	assert.NoError(t, err)
	assert.Equal(t, row.Strategy, "RANGE TRADING")
	assert.Equal(t, row.RangeWindowDays, 7)
	assert.Equal(t, row.RangeUpper, float64(108))
	assert.Equal(t, row.TimestampUTC.Unix(), recordTime.Unix())

	plan, err := store.FetchPlan(ctx, ranged.ID)
	assert.NoError(t, err)
	assert.Equal(t, *plan.TP1, float64(104))
	assert.Nil(t, plan.Target)

	// Ensure a record without a plan only stores the decision.
	drift := driftRecord()
	assert.NoError(t, store.PersistDecision(ctx, drift))
	_, err = store.FetchDecision(ctx, drift.ID)
	assert.NoError(t, err)
	_, err = store.FetchPlan(ctx, drift.ID)
	assert.Error(t, err)

	// Ensure duplicate records are rejected.
	assert.Error(t, store.PersistDecision(ctx, ranged))
}
