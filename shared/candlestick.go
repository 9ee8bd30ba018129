package shared

import (
	"fmt"
	"time"
)

// Candle represents a unit OHLC candle for a market.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata.
	Timeframe Timeframe
}

// Validate asserts the candle has sane prices.
func (c *Candle) Validate() error {
	switch {
	case c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0:
		return fmt.Errorf("candle at %s has non-positive prices", c.Date.Format(time.RFC3339))
	case c.High < c.Low:
		return fmt.Errorf("candle at %s has high %f below low %f", c.Date.Format(time.RFC3339), c.High, c.Low)
	default:
		return nil
	}
}

// ValidateSequence asserts the provided candles are sane and ordered oldest to newest
// with strictly increasing timestamps.
func ValidateSequence(candles []Candle) error {
	for idx := range candles {
		err := candles[idx].Validate()
		if err != nil {
			return err
		}

		if idx > 0 && !candles[idx].Date.After(candles[idx-1].Date) {
			return fmt.Errorf("candle timestamps not strictly increasing at index %d: %s <= %s", idx,
				candles[idx].Date.Format(time.RFC3339), candles[idx-1].Date.Format(time.RFC3339))
		}
	}

	return nil
}

// PercentChange returns the percentage change from the provided base to the provided value.
func PercentChange(value float64, base float64) float64 {
	return (value - base) / base * 100
}
