package shared

import "time"

// Timeframe represents the market data time period.
type Timeframe int

const (
	FourHour Timeframe = iota
	OneDay
)

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case FourHour:
		return "4H"
	case OneDay:
		return "1D"
	default:
		return "unknown"
	}
}

// Duration returns the time period covered by a single candle of the provided timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case FourHour:
		return time.Hour * 4
	case OneDay:
		return time.Hour * 24
	default:
		return 0
	}
}

// CandlesPerDay returns the number of candles of the provided timeframe in a day.
func (t Timeframe) CandlesPerDay() int {
	d := t.Duration()
	if d == 0 {
		return 0
	}

	return int((time.Hour * 24) / d)
}
