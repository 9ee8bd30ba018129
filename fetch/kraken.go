package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RayWalsh/btc-range-gate/shared"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// krakenSource is the provider name reported in fetch failures.
	krakenSource = "kraken"
	// ohlcPath is the kraken public OHLC endpoint path.
	ohlcPath = "/0/public/OHLC"
	// defaultKrakenURL is the kraken public REST API base url.
	defaultKrakenURL = "https://api.kraken.com"
	// defaultPair is the kraken pair name for BTC/USD.
	defaultPair = "XBTUSD"
	// maxResponseBytes caps the size of OHLC responses read.
	maxResponseBytes = 4 << 20
)

// KrakenConfig represents the configuration for the kraken client.
type KrakenConfig struct {
	// BaseURL is the kraken REST API base url.
	BaseURL string
	// Pair is the kraken pair to fetch candles for.
	Pair string
	// RequestsPerSecond is the sustained request rate allowed against the API.
	RequestsPerSecond float64
	// MaxConsecutiveFailures is the number of consecutive failed requests that trips the breaker.
	MaxConsecutiveFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing the API again.
	BreakerTimeout time.Duration
	// Timeout is the http request timeout.
	Timeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// ApplyDefaults fills unset optional fields.
func (cfg *KrakenConfig) ApplyDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultKrakenURL
	}
	if cfg.Pair == "" {
		cfg.Pair = defaultPair
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second * 10
	}
}

// Validate asserts the config sane inputs.
func (cfg *KrakenConfig) Validate() error {
	var errs error

	_, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid base url: %w", err))
	}
	if cfg.RequestsPerSecond < 0 {
		errs = errors.Join(errs, fmt.Errorf("requests per second cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// KrakenClient represents the kraken public OHLC API client.
type KrakenClient struct {
	cfg     *KrakenConfig
	httpc   http.Client
	buf     *bytes.Buffer
	bufMtx  sync.Mutex
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// Ensure the KrakenClient implements the CandleFetcher interface.
var _ shared.CandleFetcher = (*KrakenClient)(nil)

// NewKrakenClient instantiates a new kraken client.
func NewKrakenClient(cfg *KrakenConfig) (*KrakenClient, error) {
	cfg.ApplyDefaults()
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating kraken config: %w", err)
	}

	c := &KrakenClient{
		cfg:     cfg,
		httpc:   http.Client{Timeout: cfg.Timeout},
		buf:     bytes.NewBuffer(make([]byte, 0, 512)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		now:     time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        krakenSource,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cfg.Logger.Warn().Msgf("%s circuit breaker state changed from %s to %s",
				name, from.String(), to.String())
		},
	})

	return c, nil
}

// formURL creates full urls including paramters for the api.
func (c *KrakenClient) formURL(path string, params string) string {
	c.bufMtx.Lock()
	defer c.bufMtx.Unlock()

	c.buf.WriteString(c.cfg.BaseURL)
	c.buf.WriteString(path)
	c.buf.WriteString("?")
	c.buf.WriteString(params)
	url := c.buf.String()
	c.buf.Reset()

	return url
}

// interval returns the kraken OHLC interval in minutes for the provided timeframe.
func interval(timeframe shared.Timeframe) (int, error) {
	switch timeframe {
	case shared.FourHour:
		return 240, nil
	case shared.OneDay:
		return 1440, nil
	default:
		return 0, fmt.Errorf("unknown timeframe provided: %s", timeframe.String())
	}
}

// ParseOHLC parses candles from the provided kraken OHLC response body.
func ParseOHLC(body []byte, timeframe shared.Timeframe) ([]shared.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed OHLC response")
	}

	resp := gjson.ParseBytes(body)

	apiErrs := resp.Get("error").Array()
	if len(apiErrs) > 0 {
		msgs := make([]string, len(apiErrs))
		for idx := range apiErrs {
			msgs[idx] = apiErrs[idx].String()
		}
		return nil, fmt.Errorf("kraken api error: %s", strings.Join(msgs, "; "))
	}

	result := resp.Get("result")
	if !result.Exists() {
		return nil, fmt.Errorf("OHLC response has no result")
	}

	// The result is keyed by the pair name, alongside the "last" cursor.
	var rows gjson.Result
	result.ForEach(func(key, value gjson.Result) bool {
		if key.String() == "last" {
			return true
		}
		rows = value
		return false
	})

	if !rows.IsArray() {
		return nil, fmt.Errorf("OHLC response has no candle data")
	}

	data := rows.Array()
	candles := make([]shared.Candle, 0, len(data))
	for idx := range data {
		row := data[idx].Array()
		if len(row) < 7 {
			return nil, fmt.Errorf("OHLC row %d has %d fields, expected at least 7", idx, len(row))
		}

		candle := shared.Candle{
			Date:      time.Unix(row[0].Int(), 0).UTC(),
			Open:      row[1].Float(),
			High:      row[2].Float(),
			Low:       row[3].Float(),
			Close:     row[4].Float(),
			Volume:    row[6].Float(),
			Timeframe: timeframe,
		}

		candles = append(candles, candle)
	}

	err := shared.ValidateSequence(candles)
	if err != nil {
		return nil, fmt.Errorf("validating OHLC candles: %w", err)
	}

	return candles, nil
}

// fetchOHLC requests the raw OHLC response from the provided url.
func (c *KrakenClient) fetchOHLC(ctx context.Context, formedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating OHLC request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting OHLC data: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected OHLC response status %d", resp.StatusCode)
	}

	return body, nil
}

// fetchCandles fetches and parses the candles of the provided timeframe.
func (c *KrakenClient) fetchCandles(ctx context.Context, timeframe shared.Timeframe, lookbackDays int) ([]shared.Candle, error) {
	if lookbackDays <= 0 {
		return nil, fmt.Errorf("lookback days must be positive, got %d", lookbackDays)
	}

	minutes, err := interval(timeframe)
	if err != nil {
		return nil, err
	}

	since := c.now().Add(-time.Hour * 24 * time.Duration(lookbackDays)).Unix()

	params := url.Values{}
	params.Add("pair", c.cfg.Pair)
	params.Add("interval", strconv.Itoa(minutes))
	params.Add("since", strconv.FormatInt(since, 10))

	formedURL := c.formURL(ohlcPath, params.Encode())

	err = c.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting on rate limiter: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.fetchOHLC(ctx, formedURL)
		if err != nil {
			return nil, err
		}

		return ParseOHLC(body, timeframe)
	})
	if err != nil {
		return nil, err
	}

	candles := res.([]shared.Candle)

	c.cfg.Logger.Info().Msgf("fetched %d %s candles for %s covering %d days",
		len(candles), timeframe.String(), c.cfg.Pair, lookbackDays)

	return candles, nil
}

// FetchCandles fetches the candles of the provided timeframe covering the provided lookback
// period, oldest first. The last candle may still be forming.
func (c *KrakenClient) FetchCandles(ctx context.Context, timeframe shared.Timeframe, lookbackDays int) ([]shared.Candle, error) {
	candles, err := c.fetchCandles(ctx, timeframe, lookbackDays)
	if err != nil {
		return nil, &shared.DataUnavailableError{
			Source:    krakenSource,
			Timeframe: timeframe,
			Err:       err,
		}
	}

	return candles, nil
}
