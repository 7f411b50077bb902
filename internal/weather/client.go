package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Liebig-2005/farmassist/internal/httpx"
)

// Client fetches hourly weather data from the Open-Meteo forecast API and
// reduces it to the entry matching the current local hour.
type Client struct {
	baseURL  string
	timezone string
	loc      *time.Location
	now      func() time.Time
	httpCfg  httpx.ClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL, timezone string) (*Client, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid weather timezone %q: %w", timezone, err)
	}

	return &Client{
		baseURL:  baseURL,
		timezone: timezone,
		loc:      loc,
		now:      time.Now,
		httpCfg: httpx.ClientConfig{
			Client: client,
			Backoff: httpx.BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: httpx.NewBreaker("openmeteo"),
	}, nil
}

// Current returns the report for the hour that is "now" in the client's
// configured timezone.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Report, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("hourly", "temperature_2m,relativehumidity_2m,windspeed_10m,weathercode")
		values.Set("timezone", c.timezone)
		values.Set("forecast_days", "1")

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Report{}, fmt.Errorf("weather lookup failed: %w", httpx.StatusError(resp))
	}

	var payload struct {
		Hourly struct {
			Temperature []float64 `json:"temperature_2m"`
			Humidity    []float64 `json:"relativehumidity_2m"`
			WindSpeed   []float64 `json:"windspeed_10m"`
			WeatherCode []*int    `json:"weathercode"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Report{}, err
	}

	hour := c.now().In(c.loc).Hour()
	if len(payload.Hourly.Temperature) <= hour {
		return Report{}, fmt.Errorf("invalid response structure from weather API")
	}

	report := Report{
		Temperature: payload.Hourly.Temperature[hour],
	}
	if len(payload.Hourly.Humidity) > hour {
		report.Humidity = payload.Hourly.Humidity[hour]
	}
	if len(payload.Hourly.WindSpeed) > hour {
		report.WindSpeed = payload.Hourly.WindSpeed[hour]
	}
	if len(payload.Hourly.WeatherCode) > hour {
		report.WeatherCode = payload.Hourly.WeatherCode[hour]
	}
	report.Condition = ConditionLabel(report.WeatherCode)

	return report, nil
}
