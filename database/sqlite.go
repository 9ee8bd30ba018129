package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteConfig is the configuration for the sqlite sink.
type SQLiteConfig struct {
	// Path is the sqlite database file path.
	Path string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SQLiteConfig) Validate() error {
	var errs error

	if cfg.Path == "" {
		errs = errors.Join(errs, fmt.Errorf("database path cannot be empty"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// SQLite represents the local sqlite regime and trade plan store.
type SQLite struct {
	cfg *SQLiteConfig
	db  *gorm.DB
}

// Ensure SQLite implements the DecisionStorer interface.
var _ DecisionStorer = (*SQLite)(nil)

// NewSQLite opens the sqlite store at the configured path, creating its tables if needed.
func NewSQLite(cfg *SQLiteConfig) (*SQLite, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating sqlite config: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
	if err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database '%s': %w", cfg.Path, err)
	}

	err = db.AutoMigrate(&DecisionRow{}, &PlanRow{})
	if err != nil {
		return nil, fmt.Errorf("migrating sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLite{cfg: cfg, db: db}, nil
}

// PersistDecision stores the provided record and its plan in a single transaction.
func (s *SQLite) PersistDecision(ctx context.Context, rec *Record) error {
	err := rec.Validate()
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(NewDecisionRow(rec)).Error
		if err != nil {
			return fmt.Errorf("creating regime log row: %w", err)
		}

		planRow := NewPlanRow(rec)
		if planRow != nil {
			err = tx.Create(planRow).Error
			if err != nil {
				return fmt.Errorf("creating trade plan log row: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting record %s: %w", rec.ID, err)
	}

	s.cfg.Logger.Debug().Msgf("persisted record %s to sqlite", rec.ID)

	return nil
}

// FetchDecision returns the regime log row with the provided id.
func (s *SQLite) FetchDecision(ctx context.Context, id string) (*DecisionRow, error) {
	var row DecisionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("fetching regime log row %s: %w", id, err)
	}

	return &row, nil
}

// FetchPlan returns the trade plan log row with the provided id.
func (s *SQLite) FetchPlan(ctx context.Context, id string) (*PlanRow, error) {
	var row PlanRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("fetching trade plan log row %s: %w", id, err)
	}

	return &row, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
