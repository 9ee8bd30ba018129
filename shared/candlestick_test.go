package shared

import (
	"math"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestCandleValidate(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{
			name:    "valid candle",
			candle:  Candle{Open: 10, High: 12, Low: 9, Close: 11, Date: date},
			wantErr: false,
		},
		{
			name:    "zero close",
			candle:  Candle{Open: 10, High: 12, Low: 9, Close: 0, Date: date},
			wantErr: true,
		},
		{
			name:    "negative low",
			candle:  Candle{Open: 10, High: 12, Low: -1, Close: 11, Date: date},
			wantErr: true,
		},
		{
			name:    "high below low",
			candle:  Candle{Open: 10, High: 8, Low: 9, Close: 11, Date: date},
			wantErr: true,
		},
	}

	for _, test := range tests {
		err := test.candle.Validate()
		if test.wantErr && err == nil {
			t.Errorf("%s: expected an error, got none", test.name)
		}
		if !test.wantErr && err != nil {
			t.Errorf("%s: expected no error, got %v", test.name, err)
		}
	}
}

func TestValidateSequence(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		{Open: 10, High: 12, Low: 9, Close: 11, Date: start},
		{Open: 11, High: 13, Low: 10, Close: 12, Date: start.Add(time.Hour * 4)},
		{Open: 12, High: 14, Low: 11, Close: 13, Date: start.Add(time.Hour * 8)},
	}

	// Ensure an ordered sequence is valid.
	assert.NoError(t, ValidateSequence(candles))

	// Ensure an empty sequence is valid.
	assert.NoError(t, ValidateSequence(nil))

	// Ensure duplicate timestamps are rejected.
	duplicate := []Candle{candles[0], candles[0]}
	assert.Error(t, ValidateSequence(duplicate))

	// Ensure descending timestamps are rejected.
	descending := []Candle{candles[2], candles[1]}
	assert.Error(t, ValidateSequence(descending))
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		base  float64
		want  float64
	}{
		{"rise", 105, 100, 5},
		{"fall", 95, 100, -5},
		{"flat", 100, 100, 0},
		{"range width", 108, 100, 8},
	}

	for _, test := range tests {
		got := PercentChange(test.value, test.base)
		if math.Abs(got-test.want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, got)
		}
	}
}
