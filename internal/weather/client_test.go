package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyFixture(withCode bool) []byte {
	type hourly struct {
		Temperature []float64 `json:"temperature_2m"`
		Humidity    []float64 `json:"relativehumidity_2m"`
		WindSpeed   []float64 `json:"windspeed_10m"`
		WeatherCode []*int    `json:"weathercode,omitempty"`
	}

	h := hourly{}
	for i := 0; i < 24; i++ {
		h.Temperature = append(h.Temperature, 20.0+float64(i))
		h.Humidity = append(h.Humidity, 50.0+float64(i))
		h.WindSpeed = append(h.WindSpeed, float64(i))
		if withCode {
			code := 95
			h.WeatherCode = append(h.WeatherCode, &code)
		}
	}

	payload, _ := json.Marshal(map[string]any{"hourly": h})
	return payload
}

func newTestClient(t *testing.T, url string, hour int) *Client {
	t.Helper()

	client, err := NewClient(http.DefaultClient, url, "Asia/Kolkata")
	require.NoError(t, err)

	client.now = func() time.Time {
		return time.Date(2026, time.March, 10, hour, 30, 0, 0, client.loc)
	}
	return client
}

func TestClientCurrentSelectsLocalHour(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"hourly":        q.Get("hourly"),
			"timezone":      q.Get("timezone"),
			"forecast_days": q.Get("forecast_days"),
		}
		w.Write(hourlyFixture(true))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 14)

	report, err := client.Current(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)

	assert.InDelta(t, 34.0, report.Temperature, 1e-9)
	assert.InDelta(t, 64.0, report.Humidity, 1e-9)
	assert.InDelta(t, 14.0, report.WindSpeed, 1e-9)
	require.NotNil(t, report.WeatherCode)
	assert.Equal(t, 95, *report.WeatherCode)
	assert.Equal(t, "Thunderstorm", report.Condition)

	assert.Equal(t, map[string]string{
		"hourly":        "temperature_2m,relativehumidity_2m,windspeed_10m,weathercode",
		"timezone":      "Asia/Kolkata",
		"forecast_days": "1",
	}, gotQuery)
}

func TestClientCurrentMissingCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(hourlyFixture(false))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 8)

	report, err := client.Current(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)

	assert.Nil(t, report.WeatherCode)
	assert.Equal(t, "N/A", report.Condition)
}

func TestClientCurrentTruncatedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hourly":{"temperature_2m":[20.5]}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 10)

	_, err := client.Current(context.Background(), 12.9716, 77.5946)
	assert.Error(t, err)
}

func TestClientRejectsUnknownTimezone(t *testing.T) {
	_, err := NewClient(http.DefaultClient, "http://example.invalid", "Not/AZone")
	assert.Error(t, err)
}
