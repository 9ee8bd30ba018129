package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/RayWalsh/btc-range-gate/database"
	"github.com/RayWalsh/btc-range-gate/fetch"
	"github.com/RayWalsh/btc-range-gate/service"
	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

// setupFetcher creates the candle provider, historic data takes precedence over kraken.
func setupFetcher(cfg *Config) (shared.CandleFetcher, string, error) {
	if cfg.HistoricPath != "" {
		logger := log.With().Str("component", "historicdata").Logger()
		historic, err := fetch.NewHistoricData(&fetch.HistoricDataConfig{
			FilePath: cfg.HistoricPath,
			Logger:   &logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("creating historic data source: %w", err)
		}

		market := historic.FetchMarket()
		if market == "" {
			market = cfg.Market
		}

		return historic, market, nil
	}

	logger := log.With().Str("component", "kraken").Logger()
	kraken, err := fetch.NewKrakenClient(&fetch.KrakenConfig{
		BaseURL: cfg.KrakenURL,
		Pair:    cfg.Market,
		Logger:  &logger,
	})
	if err != nil {
		return nil, "", fmt.Errorf("creating kraken client: %w", err)
	}

	return kraken, cfg.Market, nil
}

// setupStorers creates the record sinks, the csv logs are always written.
func setupStorers(ctx context.Context, cfg *Config) ([]database.DecisionStorer, error) {
	csvLogger := log.With().Str("component", "csvlog").Logger()
	csvLog, err := database.NewCSVLog(&database.CSVLogConfig{
		Dir:    cfg.CSVLogDir,
		Logger: &csvLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating csv log: %w", err)
	}

	storers := []database.DecisionStorer{csvLog}

	if cfg.RQLiteEndpoint != "" {
		rqliteLogger := log.With().Str("component", "rqlite").Logger()
		rqlite, err := database.NewRQLite(ctx, &database.RQLiteConfig{
			Endpoint: cfg.RQLiteEndpoint,
			User:     cfg.RQLiteUser,
			Pass:     cfg.RQLitePass,
			Logger:   &rqliteLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating rqlite store: %w", err)
		}

		storers = append(storers, rqlite)
	}

	if cfg.SQLitePath != "" {
		sqliteLogger := log.With().Str("component", "sqlite").Logger()
		sqlite, err := database.NewSQLite(&database.SQLiteConfig{
			Path:   cfg.SQLitePath,
			Logger: &sqliteLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}

		storers = append(storers, sqlite)
	}

	return storers, nil
}

// run wires the regime gate from the provided config and runs it until completion.
func run(ctx context.Context, cfg *Config) error {
	rules, err := shared.LoadRules(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	fetcher, market, err := setupFetcher(cfg)
	if err != nil {
		return err
	}

	storers, err := setupStorers(ctx, cfg)
	if err != nil {
		return err
	}

	gate, err := service.NewGate(&service.GateConfig{
		Market:   market,
		Rules:    rules,
		Fetcher:  fetcher,
		Storers:  storers,
		Schedule: cfg.Schedule,
	})
	if err != nil {
		return fmt.Errorf("creating gate service: %w", err)
	}
	defer func() {
		err := gate.Close()
		if err != nil {
			log.Error().Msgf("closing gate service: %v", err)
		}
	}()

	return gate.Run(ctx)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Msgf("loading config: %v", err)
		os.Exit(1)
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())

	go handleTermination(ctx, cancel)

	err = run(ctx, &cfg)
	cancel()
	if err != nil {
		log.Error().Msgf("running gate service: %v", err)
		os.Exit(1)
	}
}
