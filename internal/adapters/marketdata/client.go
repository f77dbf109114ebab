package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"minerva/internal/adapters/config"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// The upstream service speaks US-style dates
const dateLayout = "01/02/2006"

// Bar is one OHLCV candle
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is the fetched history for one ticker
type Series struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Client fetches OHLCV history from the market data service. Requests are
// throttled client-side so a burst of batches cannot overrun the upstream.
type Client struct {
	http       *resty.Client
	limiter    *rate.Limiter
	maxTickers int
	log        *logger.Logger
}

// NewClient creates a market data client
func NewClient(cfg config.MarketDataConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:       http,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		maxTickers: cfg.MaxTickers,
		log:        logger.Get().With("component", "market_data_client"),
	}
}

// FetchOHLCV downloads daily candles for the tickers over [start, end].
// When strict is set, the upstream rejects the whole request if any ticker
// has no data; otherwise empty tickers simply come back without rows.
func (c *Client) FetchOHLCV(ctx context.Context, tickers []string, start, end time.Time, strict bool) (map[string]*Series, error) {
	if len(tickers) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no tickers given")
	}
	if c.maxTickers > 0 && len(tickers) > c.maxTickers {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"%d tickers exceeds the per-request limit of %d", len(tickers), c.maxTickers)
	}
	if end.Before(start) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "end date precedes start date")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	body := map[string]interface{}{
		"tickers":    tickers,
		"start_date": start.Format(dateLayout),
		"end_date":   end.Format(dateLayout),
		"strict":     strict,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv").
		SetBody(body).
		Post("/portfolio/ohlcv.csv")
	if err != nil {
		return nil, errors.Newf("fetch ohlcv: %w: %v", errors.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == 200:
	case resp.StatusCode() == 404 || resp.StatusCode() == 422:
		return nil, errors.Wrapf(errors.ErrNotFound, "ohlcv request rejected: %s", resp.String())
	default:
		return nil, errors.Wrapf(errors.ErrUnavailable,
			"ohlcv request failed with status %d", resp.StatusCode())
	}

	series, err := parseCSV(strings.NewReader(resp.String()))
	if err != nil {
		return nil, err
	}

	c.log.Debugw("OHLCV fetched", "tickers", len(tickers), "series", len(series))
	return series, nil
}

// parseCSV decodes the upstream CSV into per-ticker series. Expected header:
// datetime,open,high,low,close,volume,ticker
func parseCSV(r io.Reader) (map[string]*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty ohlcv response")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"datetime", "open", "high", "low", "close", "volume", "ticker"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "ohlcv response missing column %q", required)
		}
	}

	out := make(map[string]*Series)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidInput, "malformed ohlcv row")
		}

		bar, ticker, err := parseRow(record, col)
		if err != nil {
			return nil, err
		}

		s, ok := out[ticker]
		if !ok {
			s = &Series{Ticker: ticker}
			out[ticker] = s
		}
		s.Bars = append(s.Bars, bar)
	}

	return out, nil
}

func parseRow(record []string, col map[string]int) (Bar, string, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[col[name]])
	}

	date, err := parseDate(field("datetime"))
	if err != nil {
		return Bar{}, "", err
	}

	var values [5]float64
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return Bar{}, "", errors.Wrapf(errors.ErrInvalidInput, "bad %s value %q", name, field(name))
		}
		values[i] = v
	}

	bar := Bar{
		Date:   date,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}
	return bar, strings.ToUpper(field("ticker")), nil
}

// parseDate accepts the service's mm/dd/yyyy format plus ISO dates and
// timestamps, which some deployments emit instead.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrInvalidInput, "unparseable date %q", s)
}

// DateRange formats the helper pair used in request logging
func DateRange(start, end time.Time) string {
	return fmt.Sprintf("%s..%s", start.Format(dateLayout), end.Format(dateLayout))
}
