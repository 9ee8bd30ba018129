package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// historicSource is the provider name reported in fetch failures.
	historicSource = "historic"
)

// HistoricDataConfig represents the historic data source configuration.
type HistoricDataConfig struct {
	// FilePath is the filepath to the historic market data.
	FilePath string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *HistoricDataConfig) Validate() error {
	var errs error

	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("file path cannot be empty"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// HistoricData represents historic market data served from a file.
type HistoricData struct {
	cfg     *HistoricDataConfig
	market  string
	candles map[shared.Timeframe][]shared.Candle
}

// Ensure HistoricData implements the CandleFetcher interface.
var _ shared.CandleFetcher = (*HistoricData)(nil)

// loadHistoricData loads the historic data from the provided file path.
func loadHistoricData(filepath string) (*gjson.Result, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %w", filepath, err)
	}

	if !gjson.ValidBytes(readb) {
		return nil, fmt.Errorf("historic data file '%s' is not valid json", filepath)
	}

	b := gjson.ParseBytes(readb)

	return &b, nil
}

// ParseCandles parses candles of the provided timeframe from historic data rows.
func ParseCandles(data []gjson.Result, timeframe shared.Timeframe) ([]shared.Candle, error) {
	candles := make([]shared.Candle, len(data))

	for idx := range data {
		date := data[idx].Get("date")
		if !date.Exists() {
			return nil, fmt.Errorf("%s candle %d has no date", timeframe.String(), idx)
		}

		candles[idx] = shared.Candle{
			Open:      data[idx].Get("open").Float(),
			High:      data[idx].Get("high").Float(),
			Low:       data[idx].Get("low").Float(),
			Close:     data[idx].Get("close").Float(),
			Volume:    data[idx].Get("volume").Float(),
			Date:      time.Unix(date.Int(), 0).UTC(),
			Timeframe: timeframe,
		}
	}

	err := shared.ValidateSequence(candles)
	if err != nil {
		return nil, fmt.Errorf("validating %s candles: %w", timeframe.String(), err)
	}

	return candles, nil
}

// NewHistoricData initializes a new historic data source.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating historic data config: %w", err)
	}

	b, err := loadHistoricData(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %w", err)
	}

	historicData := &HistoricData{
		cfg:     cfg,
		market:  b.Get("market").String(),
		candles: make(map[shared.Timeframe][]shared.Candle),
	}

	timeframes := []shared.Timeframe{shared.FourHour, shared.OneDay}
	for _, timeframe := range timeframes {
		data := b.Get(timeframe.String()).Array()
		if len(data) == 0 {
			continue
		}

		candles, err := ParseCandles(data, timeframe)
		if err != nil {
			return nil, fmt.Errorf("parsing candles: %w", err)
		}

		historicData.candles[timeframe] = candles

		cfg.Logger.Info().Msgf("loaded %d historic %s candles for %s, from %s to %s", len(candles),
			timeframe.String(), historicData.market, candles[0].Date.Format(time.RFC1123),
			candles[len(candles)-1].Date.Format(time.RFC1123))
	}

	if len(historicData.candles) == 0 {
		return nil, fmt.Errorf("no historic candles found in '%s'", cfg.FilePath)
	}

	return historicData, nil
}

// FetchMarket returns the market of the loaded historic data.
func (h *HistoricData) FetchMarket() string {
	return h.market
}

// FetchCandles returns the trailing candles of the provided timeframe covering the provided
// lookback period, oldest first.
func (h *HistoricData) FetchCandles(ctx context.Context, timeframe shared.Timeframe, lookbackDays int) ([]shared.Candle, error) {
	fail := func(err error) error {
		return &shared.DataUnavailableError{Source: historicSource, Timeframe: timeframe, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	if lookbackDays <= 0 {
		return nil, fail(fmt.Errorf("lookback days must be positive, got %d", lookbackDays))
	}

	candles, ok := h.candles[timeframe]
	if !ok {
		return nil, fail(fmt.Errorf("no historic %s candles loaded", timeframe.String()))
	}

	n := lookbackDays * timeframe.CandlesPerDay()
	if n > len(candles) {
		n = len(candles)
	}

	trailing := make([]shared.Candle, n)
	copy(trailing, candles[len(candles)-n:])

	return trailing, nil
}
