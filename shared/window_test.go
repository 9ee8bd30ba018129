package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func generateCandles(n int) []Candle {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]Candle, n)
	for idx := range n {
		price := float64(100 + idx)
		candles[idx] = Candle{
			Open:  price,
			High:  price + 2,
			Low:   price - 1,
			Close: price + 1,
			Date:  start.Add(time.Hour * 4 * time.Duration(idx)),
		}
	}

	return candles
}

func TestTrailingWindow(t *testing.T) {
	candles := generateCandles(60)

	// Ensure the trailing window is extracted from the end of the sequence.
	window, err := TrailingWindow(candles, 7, 6)
	assert.NoError(t, err)
	assert.Equal(t, len(window), 42)
	assert.Equal(t, window[0].Open, candles[18].Open)
	assert.Equal(t, window[len(window)-1].Date, candles[59].Date)

	// Ensure a window covering the entire sequence can be extracted.
	window, err = TrailingWindow(candles, 10, 6)
	assert.NoError(t, err)
	assert.Equal(t, len(window), 60)

	// Ensure requesting more candles than available returns an insufficient data error.
	_, err = TrailingWindow(candles, 11, 6)
	assert.Error(t, err)
	var insufficientErr *InsufficientDataError
	assert.True(t, errors.As(err, &insufficientErr))
	assert.Equal(t, insufficientErr.Need, 66)
	assert.Equal(t, insufficientErr.Have, 60)

	// Ensure non-positive window sizes are rejected.
	_, err = TrailingWindow(candles, 0, 6)
	assert.Error(t, err)
	_, err = TrailingWindow(candles, 7, 0)
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	candles := generateCandles(5)

	upper, lower := Bounds(candles)
	assert.Equal(t, upper, float64(106))
	assert.Equal(t, lower, float64(99))

	// Ensure bounds track exactly the provided window.
	upper, lower = Bounds(candles[1:3])
	assert.Equal(t, upper, float64(104))
	assert.Equal(t, lower, float64(100))

	upper, lower = Bounds(nil)
	assert.Equal(t, upper, float64(0))
	assert.Equal(t, lower, float64(0))
}
