package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

var (
	// SQL statements.
	createRegimeLogTableSQL = "CREATE TABLE IF NOT EXISTS regime_log (id TEXT PRIMARY KEY, timestamp_utc INTEGER, market TEXT, strategy TEXT, regime TEXT, range_decision TEXT, range_window_days INTEGER, range_lower REAL, range_upper REAL, range_width_pct REAL, range_closes_inside_pct REAL, range_upper_tests INTEGER, range_lower_tests INTEGER, range_recent_move_pct REAL, range_failed_rules TEXT, range_label TEXT, trend_decision TEXT, trend_direction_bias TEXT, trend_price_then REAL, trend_price_now REAL, trend_high REAL, trend_net_move_pct REAL, trend_directional_closes INTEGER, trend_pullback_observed INTEGER, trend_pullback_failed INTEGER, trend_retrace_pct REAL, trend_failed_rule TEXT, range_readiness_state TEXT, trend_readiness_state TEXT, reference_price REAL)"
	createTradePlanTableSQL = "CREATE TABLE IF NOT EXISTS trade_plan_log (id TEXT PRIMARY KEY, timestamp_utc INTEGER, regime TEXT, strategy TEXT, spot_price REAL, range_lower REAL, range_upper REAL, entry_zone_low REAL, entry_zone_high REAL, pullback_zone_low REAL, pullback_zone_high REAL, invalidation REAL, tp1 REAL, tp2 REAL, target REAL, notes TEXT)"
	persistDecisionSQL      = insertSQL("regime_log", decisionHeader)
	persistTradePlanSQL     = insertSQL("trade_plan_log", planHeader)
)

// insertSQL creates a positional insert statement for the provided table columns.
func insertSQL(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", table, strings.Join(columns, ", "), placeholders)
}

// RQLiteConfig is the configuration for the rqlite sink.
type RQLiteConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RQLiteConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("endpoint cannot be empty"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// RQLite represents the rqlite database connection.
type RQLite struct {
	cfg    *RQLiteConfig
	client *rqlitehttp.Client
	mtx    sync.Mutex
}

// Ensure RQLite implements the DecisionStorer interface.
var _ DecisionStorer = (*RQLite)(nil)

// NewRQLite initializes a new rqlite database connection.
func NewRQLite(ctx context.Context, cfg *RQLiteConfig) (*RQLite, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating rqlite config: %w", err)
	}

	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &RQLite{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// execute runs the provided statements in a single transaction.
func (db *RQLite) execute(ctx context.Context, statements rqlitehttp.SQLStatements) error {
	resp, err := db.client.Execute(ctx, statements, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("statement %d: %s", idx, errStr)
	}

	return nil
}

// bootstrap initializes the database.
func (db *RQLite) bootstrap(ctx context.Context) error {
	return db.execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createRegimeLogTableSQL},
		{SQL: createTradePlanTableSQL},
	})
}

// PersistDecision stores the provided record and its plan in a single transaction.
func (db *RQLite) PersistDecision(ctx context.Context, rec *Record) error {
	err := rec.Validate()
	if err != nil {
		return err
	}

	decisionParams := NewDecisionRow(rec).params()
	statements := rqlitehttp.SQLStatements{
		{SQL: persistDecisionSQL, PositionalParams: decisionParams},
	}

	planRow := NewPlanRow(rec)
	if planRow != nil {
		statements = rqlitehttp.SQLStatements{
			{SQL: persistDecisionSQL, PositionalParams: decisionParams},
			{SQL: persistTradePlanSQL, PositionalParams: planRow.params()},
		}
	}

	db.mtx.Lock()
	defer db.mtx.Unlock()

	err = db.execute(ctx, statements)
	if err != nil {
		db.cfg.Logger.Error().Msgf("failed to persist record: %s", spew.Sdump(rec))
		return fmt.Errorf("persisting record %s: %w", rec.ID, err)
	}

	return nil
}

// Close releases resources held by the sink.
func (db *RQLite) Close() error {
	return nil
}
