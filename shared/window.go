package shared

import "fmt"

// TrailingWindow returns the last days*perDay candles of the provided sequence.
//
// The returned slice shares its backing array with the source sequence and must be
// treated as read-only.
func TrailingWindow(candles []Candle, days int, perDay int) ([]Candle, error) {
	if days <= 0 {
		return nil, fmt.Errorf("window days must be positive, got %d", days)
	}
	if perDay <= 0 {
		return nil, fmt.Errorf("candles per day must be positive, got %d", perDay)
	}

	size := days * perDay
	if len(candles) < size {
		return nil, &InsufficientDataError{Need: size, Have: len(candles)}
	}

	return candles[len(candles)-size:], nil
}

// Bounds returns the highest high and lowest low of the provided candles.
func Bounds(candles []Candle) (float64, float64) {
	if len(candles) == 0 {
		return 0, 0
	}

	upper := candles[0].High
	lower := candles[0].Low
	for idx := range candles[1:] {
		candle := &candles[idx+1]
		if candle.High > upper {
			upper = candle.High
		}
		if candle.Low < lower {
			lower = candle.Low
		}
	}

	return upper, lower
}
