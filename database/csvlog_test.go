package database

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// readCSV reads all rows of the csv file at the provided path.
func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)

	return rows
}

func TestCSVLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	// Ensure the config is validated.
	_, err := NewCSVLog(&CSVLogConfig{Logger: &log.Logger})
	assert.Error(t, err)

	sink, err := NewCSVLog(&CSVLogConfig{Dir: dir, Logger: &log.Logger})
	assert.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()

	// Ensure a record without a plan only writes the regime log.
	drift := driftRecord()
	assert.NoError(t, sink.PersistDecision(ctx, drift))
	_, err = os.Stat(filepath.Join(dir, TradePlanLogFile))
	assert.True(t, os.IsNotExist(err))

	// Ensure a record with a plan writes both logs.
	ranged := rangeRecord(t)
	assert.NoError(t, sink.PersistDecision(ctx, ranged))

	regimeRows := readCSV(t, filepath.Join(dir, RegimeLogFile))
	assert.Equal(t, len(regimeRows), 3)
	if !cmp.Equal(regimeRows[0], decisionHeader) {
		t.Errorf("mismatching regime log header: %v", cmp.Diff(regimeRows[0], decisionHeader))
	}
	if !cmp.Equal(regimeRows[1], NewDecisionRow(drift).Fields()) {
		t.Errorf("mismatching regime log row: %v", cmp.Diff(regimeRows[1], NewDecisionRow(drift).Fields()))
	}
	assert.Equal(t, regimeRows[2][0], ranged.ID)

	planRows := readCSV(t, filepath.Join(dir, TradePlanLogFile))
	assert.Equal(t, len(planRows), 2)
	if !cmp.Equal(planRows[0], planHeader) {
		t.Errorf("mismatching trade plan log header: %v", cmp.Diff(planRows[0], planHeader))
	}
	assert.Equal(t, planRows[1][0], ranged.ID)

	// Ensure reopening the logs does not rewrite the header.
	reopened, err := NewCSVLog(&CSVLogConfig{Dir: dir, Logger: &log.Logger})
	assert.NoError(t, err)
	assert.NoError(t, reopened.PersistDecision(ctx, rangeRecord(t)))

	regimeRows = readCSV(t, filepath.Join(dir, RegimeLogFile))
	assert.Equal(t, len(regimeRows), 4)
	assert.Equal(t, regimeRows[3][0] != "id", true)
	planRows = readCSV(t, filepath.Join(dir, TradePlanLogFile))
	assert.Equal(t, len(planRows), 3)

	// Ensure invalid records are rejected.
	assert.Error(t, sink.PersistDecision(ctx, &Record{}))
}
