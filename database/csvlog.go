package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

const (
	// RegimeLogFile is the regime log file name.
	RegimeLogFile = "regime_log.csv"
	// TradePlanLogFile is the trade plan log file name.
	TradePlanLogFile = "trade_plan_log.csv"
)

// CSVLogConfig represents the csv log sink configuration.
type CSVLogConfig struct {
	// Dir is the directory the log files are written to.
	Dir string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *CSVLogConfig) Validate() error {
	var errs error

	if cfg.Dir == "" {
		errs = errors.Join(errs, fmt.Errorf("log directory cannot be empty"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// CSVLog represents the append-only csv regime and trade plan logs.
type CSVLog struct {
	cfg *CSVLogConfig
	mtx sync.Mutex
}

// Ensure CSVLog implements the DecisionStorer interface.
var _ DecisionStorer = (*CSVLog)(nil)

// NewCSVLog initializes a new csv log sink.
func NewCSVLog(cfg *CSVLogConfig) (*CSVLog, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating csv log config: %w", err)
	}

	err = os.MkdirAll(cfg.Dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("creating log directory '%s': %w", cfg.Dir, err)
	}

	return &CSVLog{cfg: cfg}, nil
}

// appendRow appends the provided row to the csv file at the provided path, writing the
// header first if the file is new.
func appendRow(path string, header []string, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening '%s': %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading '%s' file info: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		err = w.Write(header)
		if err != nil {
			return fmt.Errorf("writing '%s' header: %w", path, err)
		}
	}

	err = w.Write(row)
	if err != nil {
		return fmt.Errorf("writing '%s' row: %w", path, err)
	}

	w.Flush()

	return w.Error()
}

// PersistDecision appends the provided record to the regime log, and to the trade plan log
// when the record has a plan.
func (l *CSVLog) PersistDecision(ctx context.Context, rec *Record) error {
	err := rec.Validate()
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	err = appendRow(filepath.Join(l.cfg.Dir, RegimeLogFile), decisionHeader, NewDecisionRow(rec).Fields())
	if err != nil {
		return fmt.Errorf("persisting regime log row: %w", err)
	}

	planRow := NewPlanRow(rec)
	if planRow != nil {
		err = appendRow(filepath.Join(l.cfg.Dir, TradePlanLogFile), planHeader, planRow.Fields())
		if err != nil {
			return fmt.Errorf("persisting trade plan log row: %w", err)
		}
	}

	l.cfg.Logger.Debug().Msgf("persisted record to csv logs: %s", spew.Sdump(rec))

	return nil
}

// Close releases resources held by the sink.
func (l *CSVLog) Close() error {
	return nil
}
