package shared

import "fmt"

// DataUnavailableError is returned when candle data could not be fetched from a provider.
type DataUnavailableError struct {
	Source    string
	Timeframe Timeframe
	Err       error
}

// Error returns the error message.
func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s %s candles unavailable: %v", e.Source, e.Timeframe.String(), e.Err)
}

// Unwrap returns the underlying provider error.
func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// InsufficientDataError is returned when fewer candles are available than a window requires.
type InsufficientDataError struct {
	Need int
	Have int
}

// Error returns the error message.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d candles, have %d", e.Need, e.Have)
}

// InvalidBoundaryError is returned when trade plan boundaries are degenerate.
type InvalidBoundaryError struct {
	Kind string
	Low  float64
	High float64
}

// Error returns the error message.
func (e *InvalidBoundaryError) Error() string {
	return fmt.Sprintf("invalid %s boundaries: low %f, high %f", e.Kind, e.Low, e.High)
}
