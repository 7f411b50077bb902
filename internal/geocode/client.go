package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Liebig-2005/farmassist/internal/httpx"
)

// Place is one candidate location returned by the geocoding collaborator.
type Place struct {
	Name        string  `json:"name"`
	Admin1      string  `json:"admin1,omitempty"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Client looks up locations by free-text name against the Open-Meteo
// geocoding API.
type Client struct {
	baseURL  string
	language string
	httpCfg  httpx.ClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL string) *Client {
	return &Client{
		baseURL:  baseURL,
		language: "en",
		httpCfg: httpx.ClientConfig{
			Client: client,
			Backoff: httpx.BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 300 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
		},
		circuit: httpx.NewBreaker("geocoding"),
	}
}

// Search returns up to limit candidates for the given name. Zero results is
// not an error; callers decide whether an empty list is a failure.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 1
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", name)
		values.Set("count", strconv.Itoa(limit))
		values.Set("language", c.language)
		values.Set("format", "json")

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocoding failed: %w", httpx.StatusError(resp))
	}

	var payload struct {
		Results []Place `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return payload.Results, nil
}
