package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Rules represents the reviewed thresholds used by the regime evaluators.
//
// Rules are values: evaluators copy them at construction and never observe later changes.
type Rules struct {
	// MinDays is the shortest range lookback window, in days.
	MinDays int `yaml:"min_days" default:"7" validate:"gt=0"`
	// MaxDays is the longest range lookback window, in days.
	MaxDays int `yaml:"max_days" default:"10" validate:"gt=0"`
	// CandlesPerDay is the number of range timeframe candles in a day, fixed by the 4H feed.
	CandlesPerDay int `yaml:"candles_per_day" default:"6" validate:"gt=0"`
	// MinRangeWidthPct is the minimum range width as a percentage of the lower boundary.
	MinRangeWidthPct float64 `yaml:"min_range_width_pct" default:"1.5" validate:"gt=0"`
	// MinClosesInsidePct is the minimum percentage of closes inside the range.
	MinClosesInsidePct float64 `yaml:"min_closes_inside_pct" default:"95" validate:"gt=0,lte=100"`
	// MinRejections is the minimum number of upper boundary rejections.
	MinRejections int `yaml:"min_rejections" default:"2" validate:"gte=0"`
	// MinBounces is the minimum number of lower boundary bounces.
	MinBounces int `yaml:"min_bounces" default:"2" validate:"gte=0"`
	// ProximityPct is the percentage of price considered near a boundary.
	ProximityPct float64 `yaml:"proximity_pct" default:"0.25" validate:"gt=0,lt=100"`
	// TrendExpansionPct is the maximum absolute move allowed over the trailing two days of a range.
	TrendExpansionPct float64 `yaml:"trend_expansion_pct" default:"1.0" validate:"gt=0"`
	// RangeFetchDays is the number of days of range timeframe candles to fetch.
	RangeFetchDays int `yaml:"range_fetch_days" default:"14" validate:"gt=0"`

	// TrendLookbackDays is the fixed trend lookback window, in days.
	TrendLookbackDays int `yaml:"trend_lookback_days" default:"8" validate:"gt=1"`
	// TrendCandlesPerDay is the number of trend timeframe candles in a day, fixed by the 1D feed.
	TrendCandlesPerDay int `yaml:"trend_candles_per_day" default:"1" validate:"gt=0"`
	// MinNetMovePct is the minimum absolute net move to prove directional intent.
	MinNetMovePct float64 `yaml:"min_net_move_pct" default:"4.0" validate:"gt=0"`
	// MinDirectionalCloses is the minimum count of closes moving in the trend direction.
	MinDirectionalCloses int `yaml:"min_directional_closes" default:"5" validate:"gte=0"`
	// MaxRetracePct is the maximum peak to trough distance before the structure is disqualified.
	MaxRetracePct float64 `yaml:"max_retrace_pct" default:"50" validate:"gt=0"`
	// TrendFetchDays is the number of days of trend timeframe candles to fetch.
	TrendFetchDays int `yaml:"trend_fetch_days" default:"30" validate:"gt=0"`
}

// DefaultRules returns the locked default rules.
func DefaultRules() Rules {
	var rules Rules
	defaults.MustSet(&rules)
	return rules
}

// Validate asserts the rules are sane.
func (r *Rules) Validate() error {
	var errs error

	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(r)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating rules: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = errors.Join(errs, fmt.Errorf("rule %s failed %s=%s check, got %v",
				fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		}
	}

	if r.MinDays > r.MaxDays {
		errs = errors.Join(errs, fmt.Errorf("min days %d cannot exceed max days %d", r.MinDays, r.MaxDays))
	}
	if r.CandlesPerDay != FourHour.CandlesPerDay() {
		errs = errors.Join(errs, fmt.Errorf("candles per day %d does not match the %d %s candles in a day",
			r.CandlesPerDay, FourHour.CandlesPerDay(), FourHour.String()))
	}
	if r.TrendCandlesPerDay != OneDay.CandlesPerDay() {
		errs = errors.Join(errs, fmt.Errorf("trend candles per day %d does not match the %d %s candles in a day",
			r.TrendCandlesPerDay, OneDay.CandlesPerDay(), OneDay.String()))
	}
	if r.RangeFetchDays < r.MaxDays {
		errs = errors.Join(errs, fmt.Errorf("range fetch days %d cannot be less than max days %d",
			r.RangeFetchDays, r.MaxDays))
	}
	if r.TrendFetchDays < r.TrendLookbackDays {
		errs = errors.Join(errs, fmt.Errorf("trend fetch days %d cannot be less than trend lookback days %d",
			r.TrendFetchDays, r.TrendLookbackDays))
	}

	return errs
}

// LoadRules loads the rules from the yaml file at the provided path, using the locked
// defaults for unset fields. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file with path '%s': %w", path, err)
	}

	err = yaml.Unmarshal(b, &rules)
	if err != nil {
		return Rules{}, fmt.Errorf("parsing rules file: %w", err)
	}

	err = rules.Validate()
	if err != nil {
		return Rules{}, fmt.Errorf("validating rules: %w", err)
	}

	return rules, nil
}
