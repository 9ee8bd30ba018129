package shared

import "context"

// CandleFetcher defines the requirements for fetching historical candles.
type CandleFetcher interface {
	// FetchCandles fetches candles of the provided timeframe covering the provided number of days,
	// ordered oldest to newest. Fetch failures are reported as *DataUnavailableError.
	FetchCandles(ctx context.Context, timeframe Timeframe, lookbackDays int) ([]Candle, error)
}
