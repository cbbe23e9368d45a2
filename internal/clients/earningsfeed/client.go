// Package earningsfeed provides a client for the earnings-calendar upstream
package earningsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/earnboard/earnboard/internal/clients/retryhttp"
	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
)

const DefaultBaseURL = "https://earningsfeed.example.com/api"

// Client implements the EarningsFeedClient interface.
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

// NewClient creates a new earnings-calendar client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    retryhttp.NewClient("earnings"),
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCalendar retrieves all earnings entries with report dates in [from, to].
func (c *Client) GetCalendar(ctx context.Context, from, to time.Time) ([]*models.EarningsEntry, error) {
	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s/calendar/earnings?%s", c.baseURL, params.Encode())
	c.logger.Debug().Str("from", params.Get("from")).Str("to", params.Get("to")).Msg("Earnings calendar request")

	body, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp calendarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode earnings calendar: %w", err)
	}

	entries := make([]*models.EarningsEntry, 0, len(resp.Earnings))
	for _, row := range resp.Earnings {
		entries = append(entries, &models.EarningsEntry{
			Symbol:          row.Symbol,
			ReportDate:      row.ReportDate,
			TimingLabel:     row.Time,
			EPSActual:       row.EPSActual.ptr(),
			EPSEstimate:     row.EPSEstimate.ptr(),
			RevenueActual:   row.RevenueActual.intPtr(),
			RevenueEstimate: row.RevenueEstimate.intPtr(),
			FiscalQuarter:   row.Quarter.smallPtr(),
			FiscalYear:      row.Year.smallPtr(),
		})
	}

	c.logger.Debug().Int("entries", len(entries)).Msg("Earnings calendar returned")
	return entries, nil
}

// calendarResponse is the upstream payload shape.
type calendarResponse struct {
	Earnings []calendarRow `json:"earnings"`
}

type calendarRow struct {
	Symbol          string    `json:"symbol"`
	ReportDate      string    `json:"report_date"`
	Time            string    `json:"time"` // free text: "bmo", "amc", "dmh", ...
	EPSActual       flexFloat `json:"eps_actual"`
	EPSEstimate     flexFloat `json:"eps_estimate"`
	RevenueActual   flexFloat `json:"revenue_actual"`
	RevenueEstimate flexFloat `json:"revenue_estimate"`
	Quarter         flexFloat `json:"quarter"`
	Year            flexFloat `json:"year"`
}

// flexFloat handles JSON values that may be a number, a numeric string, or
// null/"N/A" (absent).
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		f.valid = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f.value = num
		f.valid = true
		return nil
	}
	// null or malformed: treat as absent
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.valid {
		return nil
	}
	v := f.value
	return &v
}

func (f flexFloat) intPtr() *int64 {
	if !f.valid {
		return nil
	}
	v := int64(f.value)
	return &v
}

func (f flexFloat) smallPtr() *int {
	if !f.valid {
		return nil
	}
	v := int(f.value)
	return &v
}
