package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	// defaultMarket is the evaluated market when none is configured.
	defaultMarket = "XBTUSD"
	// defaultCSVLogDir is the csv log directory when none is configured.
	defaultCSVLogDir = "."
	// defaultLogLevel is the log level when none is configured.
	defaultLogLevel = "info"
)

// Config is the configuration struct for the service.
type Config struct {
	// Market represents the evaluated market.
	Market string
	// RulesPath is the path to the yaml rules file, the locked defaults are used when empty.
	RulesPath string
	// CSVLogDir is the directory of the csv regime and trade plan logs.
	CSVLogDir string
	// RQLiteEndpoint is the rqlite endpoint, records are not mirrored to rqlite when empty.
	RQLiteEndpoint string
	// RQLiteUser is the rqlite basic auth user.
	RQLiteUser string
	// RQLitePass is the rqlite basic auth password.
	RQLitePass string
	// SQLitePath is the sqlite database path, records are not mirrored to sqlite when empty.
	SQLitePath string
	// HistoricPath is the path to historic candle data, used in place of kraken when set.
	HistoricPath string
	// Schedule is the daily UTC evaluation time (HH:MM), the service evaluates once when empty.
	Schedule string
	// LogLevel is the minimum log level.
	LogLevel string
	// KrakenURL is the kraken REST API base url.
	KrakenURL string

	registeredFlags map[string]bool
}

// applyDefaults fills unset optional fields.
func (cfg *Config) applyDefaults() {
	if cfg.Market == "" {
		cfg.Market = defaultMarket
	}
	if cfg.CSVLogDir == "" {
		cfg.CSVLogDir = defaultCSVLogDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("market cannot be an empty string"))
	}
	if cfg.CSVLogDir == "" {
		errs = errors.Join(errs, fmt.Errorf("csv log directory cannot be an empty string"))
	}
	if cfg.Schedule != "" {
		_, err := time.Parse("15:04", cfg.Schedule)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("invalid schedule '%s', expected HH:MM", cfg.Schedule))
		}
	}
	_, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid log level '%s'", cfg.LogLevel))
	}
	if cfg.RQLiteEndpoint == "" && (cfg.RQLiteUser != "" || cfg.RQLitePass != "") {
		errs = errors.Join(errs, fmt.Errorf("rqlite credentials provided without an rqlite endpoint"))
	}
	if cfg.RQLiteUser != "" && cfg.RQLitePass == "" {
		errs = errors.Join(errs, fmt.Errorf("rqlite password cannot be an empty string when a user is set"))
	}

	return errs
}

// registerFlag registers a string command line argument, defaulting to the environment value
// of the same name, and tracks it to avoid reregistration.
func (cfg *Config) registerFlag(name string, value *string, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	if value == nil {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	cfg.registeredFlags[name] = true
	flag.StringVar(value, name, os.Getenv(name), usage)

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name  string
		value *string
		usage string
	}{
		{"market", &cfg.Market, "the evaluated market"},
		{"rulespath", &cfg.RulesPath, "the yaml rules filepath"},
		{"csvlogdir", &cfg.CSVLogDir, "the csv log directory"},
		{"rqliteendpoint", &cfg.RQLiteEndpoint, "the rqlite endpoint"},
		{"rqliteuser", &cfg.RQLiteUser, "the rqlite user"},
		{"rqlitepass", &cfg.RQLitePass, "the rqlite password"},
		{"sqlitepath", &cfg.SQLitePath, "the sqlite database filepath"},
		{"historicpath", &cfg.HistoricPath, "the historic candle data filepath"},
		{"schedule", &cfg.Schedule, "the daily UTC evaluation time (HH:MM)"},
		{"loglevel", &cfg.LogLevel, "the log level"},
		{"krakenurl", &cfg.KrakenURL, "the kraken REST API base url"},
	}
	for _, f := range flags {
		err = cfg.registerFlag(f.name, f.value, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}
