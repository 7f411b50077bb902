package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Liebig-2005/farmassist/internal/httpx"
)

var (
	// ErrForbidden is returned when the open-data API rejects the key.
	ErrForbidden = errors.New("API access forbidden. Please check your API key.")
	// ErrBadFilters is returned when the API rejects the filter parameters.
	ErrBadFilters = errors.New("Invalid request parameters. Please check your filters.")
	// ErrNoRecords is returned when the filters match no price records.
	ErrNoRecords = errors.New("No data found for selected crop/region. Try different filters.")
)

// Query selects commodity price records. Empty fields are not filtered on.
type Query struct {
	State     string
	District  string
	Commodity string
	Limit     int
}

// PriceRecord is one mandi price row. The date stays a string because the
// upstream dataset mixes formats across records.
type PriceRecord struct {
	Date       string  `json:"date"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
	ModalPrice float64 `json:"modalPrice"`
}

// Client fetches commodity prices from the data.gov.in open-data API.
type Client struct {
	baseURL  string
	apiKey   string
	defLimit int
	httpCfg  httpx.ClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// NewClient builds a price client. defaultLimit caps result sets for
// queries that do not pick their own limit.
func NewClient(client *http.Client, baseURL, apiKey string, defaultLimit int) *Client {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		defLimit: defaultLimit,
		httpCfg: httpx.ClientConfig{
			Client: client,
			Backoff: httpx.BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: httpx.NewBreaker("market"),
	}
}

// Prices returns price records matching the query.
func (c *Client) Prices(ctx context.Context, q Query) ([]PriceRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = c.defLimit
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api-key", c.apiKey)
		values.Set("format", "json")
		values.Set("limit", strconv.Itoa(limit))
		if q.State != "" {
			values.Set("filters[state.keyword]", q.State)
		}
		if q.District != "" {
			values.Set("filters[district]", q.District)
		}
		if q.Commodity != "" {
			values.Set("filters[commodity]", q.Commodity)
		}

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrBadFilters
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("market lookup failed: %w", httpx.StatusError(resp))
	}

	var payload struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	if len(payload.Records) == 0 {
		return nil, ErrNoRecords
	}

	records := make([]PriceRecord, 0, len(payload.Records))
	for _, rec := range payload.Records {
		records = append(records, PriceRecord{
			Date:       pickString(rec, "date", "trade_date", "TRADE_DATE", "reporting_date", "REPORTING_DATE"),
			MinPrice:   pickNumber(rec, "min_price", "MIN_PRICE", "min", "MIN"),
			MaxPrice:   pickNumber(rec, "max_price", "MAX_PRICE", "max", "MAX"),
			ModalPrice: pickNumber(rec, "modal_price", "MODAL_PRICE", "modal", "MODAL"),
		})
	}

	return records, nil
}

// The dataset is inconsistent about field-name casing, so record fields are
// resolved against a list of known variants.

func pickString(rec map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return "N/A"
}

func pickNumber(rec map[string]any, keys ...string) float64 {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return 0
}
