// Package quotefeed provides a client for the market-quote upstream
package quotefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/earnboard/earnboard/internal/clients/retryhttp"
	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
)

const DefaultBaseURL = "https://quotefeed.example.com/api"

// Client implements the QuoteFeedClient interface.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryhttp.Client
	logger  *common.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the retrying transport.
func WithHTTPClient(h *retryhttp.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a new quote-feed client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    retryhttp.NewClient("quotes"),
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSnapshot retrieves the latest quote snapshot for one symbol. The symbol
// is canonical dotted form; the feed's hyphenated form is used on the wire.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*models.QuoteBundle, error) {
	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s/snapshot/%s?%s", c.baseURL, url.PathEscape(ToFeedSymbol(symbol)), params.Encode())

	body, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp snapshotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", symbol, err)
	}

	bundle := &models.QuoteBundle{
		Symbol: FromFeedSymbol(resp.Symbol),
		Name:   resp.Name,
	}
	if bundle.Symbol == "" {
		bundle.Symbol = symbol
	}
	if resp.SharesOutstanding > 0 {
		shares := resp.SharesOutstanding
		bundle.Shares = &shares
	}
	if resp.MarketCap > 0 {
		cap := resp.MarketCap
		bundle.MarketCap = &cap
	}

	appendObs := func(label string, tick *tickResponse) {
		if tick == nil || tick.Price <= 0 {
			return
		}
		bundle.Observations = append(bundle.Observations, models.PriceObservation{
			Label:     label,
			Price:     tick.Price,
			Timestamp: tick.Timestamp,
		})
	}
	appendObs(models.ObsLive, resp.LastTrade)
	appendObs(models.ObsMinuteBar, resp.MinuteBar)
	appendObs(models.ObsPreMarket, resp.PreMarket)
	appendObs(models.ObsAfterHours, resp.AfterHours)
	appendObs(models.ObsDayBar, resp.DayBar)
	appendObs(models.ObsPrevClose, resp.PrevDayBar)

	return bundle, nil
}

// GetBulkPreviousClose retrieves the once-daily "all symbols" previous-close
// snapshot for a date. An empty result means the feed has not produced that
// day yet; callers fall back to the prior trading day.
func (c *Client) GetBulkPreviousClose(ctx context.Context, date time.Time) ([]models.PreviousClose, error) {
	day := date.Format("2006-01-02")

	params := url.Values{}
	params.Set("date", day)
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s/eod/bulk?%s", c.baseURL, params.Encode())

	body, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var rows []bulkCloseRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode bulk previous close: %w", err)
	}

	out := make([]models.PreviousClose, 0, len(rows))
	for _, row := range rows {
		if row.Close <= 0 {
			continue
		}
		adj := row.AdjClose
		if adj <= 0 {
			adj = row.Close
		}
		out = append(out, models.PreviousClose{
			Symbol:   FromFeedSymbol(row.Symbol),
			Date:     day,
			Close:    row.Close,
			AdjClose: adj,
			Source:   "bulk_eod:" + day,
		})
	}

	c.logger.Debug().Str("date", day).Int("rows", len(out)).Msg("Bulk previous close returned")
	return out, nil
}

// GetCorporateActions retrieves dividends and splits for a symbol since the
// given date.
func (c *Client) GetCorporateActions(ctx context.Context, symbol string, since time.Time) ([]models.CorporateAction, error) {
	params := url.Values{}
	params.Set("from", since.Format("2006-01-02"))
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s/actions/%s?%s", c.baseURL, url.PathEscape(ToFeedSymbol(symbol)), params.Encode())

	body, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var rows []actionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode corporate actions for %s: %w", symbol, err)
	}

	out := make([]models.CorporateAction, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			continue
		}
		if row.Type != "dividend" && row.Type != "split" {
			continue
		}
		out = append(out, models.CorporateAction{
			Symbol: FromFeedSymbol(row.Symbol),
			Type:   row.Type,
			Date:   date,
		})
	}
	return out, nil
}

// snapshotResponse is the upstream per-symbol payload shape. Each tick block
// carries the feed's native timestamp unit, which varies by block.
type snapshotResponse struct {
	Symbol            string        `json:"symbol"`
	Name              string        `json:"name"`
	SharesOutstanding int64         `json:"shares_outstanding"`
	MarketCap         int64         `json:"market_cap"`
	LastTrade         *tickResponse `json:"last_trade"`
	MinuteBar         *tickResponse `json:"minute_bar"`
	PreMarket         *tickResponse `json:"pre_market"`
	AfterHours        *tickResponse `json:"after_hours"`
	DayBar            *tickResponse `json:"day_bar"`
	PrevDayBar        *tickResponse `json:"prev_day_bar"`
}

type tickResponse struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type bulkCloseRow struct {
	Symbol   string  `json:"symbol"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjusted_close"`
}

type actionRow struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
	Date   string `json:"date"`
}
