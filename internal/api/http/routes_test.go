package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Liebig-2005/farmassist/internal/advisory"
	"github.com/Liebig-2005/farmassist/internal/geocode"
	"github.com/Liebig-2005/farmassist/internal/market"
	"github.com/Liebig-2005/farmassist/internal/search"
	"github.com/Liebig-2005/farmassist/internal/store"
	"github.com/Liebig-2005/farmassist/internal/weather"
)

var (
	testRegion = geocode.Region{Name: "India", Code: "IN"}

	mumbai  = geocode.Place{Name: "Mumbai", Country: "India", CountryCode: "IN", Latitude: 19.0761, Longitude: 72.8777}
	parisFR = geocode.Place{Name: "Paris", Country: "France", CountryCode: "FR", Latitude: 48.8566, Longitude: 2.3522}
	parisIN = geocode.Place{Name: "Paris", Country: "India", CountryCode: "IN", Latitude: 25.5, Longitude: 84.9}
	london  = geocode.Place{Name: "London", Country: "United Kingdom", CountryCode: "GB", Latitude: 51.5074, Longitude: -0.1278}
)

// scriptedGeocoder returns canned candidates per query.
type scriptedGeocoder struct {
	places map[string][]geocode.Place
	err    error
}

func (s scriptedGeocoder) Search(ctx context.Context, name string, limit int) ([]geocode.Place, error) {
	if s.err != nil {
		return nil, s.err
	}
	places := s.places[name]
	if len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}

// stubWeather satisfies both the handler-facing and assistant-facing
// weather interfaces.
type stubWeather struct {
	report weather.Report
	latest *weather.Report
	err    error
}

func (s *stubWeather) Current(ctx context.Context, loc weather.Location) (weather.Report, error) {
	if s.err != nil {
		return weather.Report{}, s.err
	}
	report := s.report
	report.City = loc.City
	report.Country = loc.Country
	return report, nil
}

func (s *stubWeather) Latest() (weather.Report, error) {
	if s.latest == nil {
		return weather.Report{}, weather.ErrNoReport
	}
	return *s.latest, nil
}

func (s *stubWeather) DefaultLocation() weather.Location {
	return weather.Location{Latitude: 12.9716, Longitude: 77.5946, City: "Bengaluru", Country: "India"}
}

type stubMarket struct {
	records []market.PriceRecord
	err     error
}

func (s stubMarket) Prices(ctx context.Context, q market.Query) ([]market.PriceRecord, error) {
	return s.records, s.err
}

type stubAdvisory struct {
	reply string
	scan  advisory.ScanResult
	err   error
}

func (s stubAdvisory) Chat(ctx context.Context, message string) (string, error) {
	return s.reply, s.err
}

func (s stubAdvisory) Scan(ctx context.Context, filename string, image io.Reader) (advisory.ScanResult, error) {
	return s.scan, s.err
}

func newTestApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": true, "message": err.Error()})
		},
	})
	RegisterRoutes(app, deps)
	return app
}

func defaultDeps(geocoder Geocoder, weatherSvc *stubWeather) Deps {
	sessions := store.NewSessionStore(0, 0)
	searchGeocoder, _ := geocoder.(search.Geocoder)
	return Deps{
		Geocoder: geocoder,
		Region:   testRegion,
		Weather:  weatherSvc,
		Market:   stubMarket{},
		Advisory: stubAdvisory{},
		Sessions: sessions,
		NewSession: func() *search.Assistant {
			return search.NewAssistant(searchGeocoder, weatherSvc, testRegion, 10*time.Millisecond, 4, zap.NewNop())
		},
		SuggestLimit: 4,
		Logger:       zap.NewNop(),
	}
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestSuggestValidation(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	// Missing query parameter.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/suggest", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Query too short.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/suggest?q=M", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Limit out of range.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/suggest?q=Mumbai&limit=50", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuggestFiltersRegion(t *testing.T) {
	geocoder := scriptedGeocoder{places: map[string][]geocode.Place{
		"Paris": {parisFR, parisIN},
	}}
	app := newTestApp(defaultDeps(geocoder, &stubWeather{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/suggest?q=Paris", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []geocode.Place `json:"results"`
	}
	decodeBody(t, resp, &body)

	require.Len(t, body.Results, 1)
	assert.Equal(t, "India", body.Results[0].Country)
}

func TestSuggestSoftFailsOnTransportError(t *testing.T) {
	geocoder := scriptedGeocoder{err: errors.New("upstream down")}
	app := newTestApp(defaultDeps(geocoder, &stubWeather{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/suggest?q=Mumbai", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []geocode.Place `json:"results"`
	}
	decodeBody(t, resp, &body)
	assert.Empty(t, body.Results)
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/search/sessions/", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.ID)
	return body.ID
}

func TestSessionLifecycle(t *testing.T) {
	geocoder := scriptedGeocoder{places: map[string][]geocode.Place{
		"Mumbai": {mumbai},
	}}
	weatherSvc := &stubWeather{report: weather.Report{Temperature: 31.0, Condition: "Partly cloudy"}}
	app := newTestApp(defaultDeps(geocoder, weatherSvc))

	id := createSession(t, app)

	// Keystrokes are accepted without blocking.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/search/sessions/"+id+"/input", fiber.Map{"text": "Mum"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Explicit submission resolves and fetches weather.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/v1/search/sessions/"+id+"/submit", fiber.Map{"query": "Mumbai"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap search.Snapshot
	decodeBody(t, resp, &snap)
	assert.Equal(t, "Mumbai", snap.Location.City)
	require.NotNil(t, snap.Weather)
	assert.InDelta(t, 31.0, snap.Weather.Temperature, 1e-9)

	// Snapshot endpoint reflects the same state.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/search/sessions/"+id, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &snap)
	assert.Equal(t, "Mumbai", snap.Location.City)
}

func TestSessionNotFound(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/search/sessions/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitOutsideRegion(t *testing.T) {
	geocoder := scriptedGeocoder{places: map[string][]geocode.Place{
		"London": {london},
	}}
	app := newTestApp(defaultDeps(geocoder, &stubWeather{}))

	id := createSession(t, app)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/search/sessions/"+id+"/submit", fiber.Map{"query": "London"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Please search for locations in India only.", body.Message)
}

func TestSubmitNotFound(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	id := createSession(t, app)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/search/sessions/"+id+"/submit", fiber.Map{"query": "qwertyuiop"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectSuggestion(t *testing.T) {
	geocoder := scriptedGeocoder{places: map[string][]geocode.Place{
		"Mumbai": {mumbai},
	}}
	weatherSvc := &stubWeather{report: weather.Report{Temperature: 30.0}}
	app := newTestApp(defaultDeps(geocoder, weatherSvc))

	id := createSession(t, app)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/search/sessions/"+id+"/select", fiber.Map{"name": "Mumbai"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap search.Snapshot
	decodeBody(t, resp, &snap)
	assert.Equal(t, "Mumbai", snap.Location.City)
}

func TestSelectRequiresName(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	id := createSession(t, app)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/search/sessions/"+id+"/select", fiber.Map{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWeatherCurrentByCoordinates(t *testing.T) {
	weatherSvc := &stubWeather{report: weather.Report{Temperature: 27.5, Condition: "Clear sky"}}
	app := newTestApp(defaultDeps(scriptedGeocoder{}, weatherSvc))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?lat=19.0761&lon=72.8777", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report weather.Report
	decodeBody(t, resp, &report)
	assert.InDelta(t, 27.5, report.Temperature, 1e-9)
}

func TestWeatherCurrentValidatesCoordinates(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?lat=999&lon=0", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWeatherCurrentDefaultWithoutCache(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/current", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWeatherCurrentDefaultFromCache(t *testing.T) {
	cached := weather.Report{City: "Bengaluru", Temperature: 25.0}
	weatherSvc := &stubWeather{latest: &cached}
	app := newTestApp(defaultDeps(scriptedGeocoder{}, weatherSvc))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/current", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report weather.Report
	decodeBody(t, resp, &report)
	assert.Equal(t, "Bengaluru", report.City)
}

func TestMarketPrices(t *testing.T) {
	deps := defaultDeps(scriptedGeocoder{}, &stubWeather{})
	deps.Market = stubMarket{records: []market.PriceRecord{
		{Date: "2026-08-20", MinPrice: 1200, MaxPrice: 1500, ModalPrice: 1350},
	}}
	app := newTestApp(deps)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/market/prices?state=Karnataka&commodity=Rice", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Records []market.PriceRecord `json:"records"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Records, 1)
	assert.InDelta(t, 1350, body.Records[0].ModalPrice, 1e-9)
}

func TestMarketPricesErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", market.ErrForbidden, http.StatusForbidden},
		{"bad filters", market.ErrBadFilters, http.StatusBadRequest},
		{"no records", market.ErrNoRecords, http.StatusNotFound},
		{"transport", errors.New("timeout"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := defaultDeps(scriptedGeocoder{}, &stubWeather{})
			deps.Market = stubMarket{err: tt.err}
			app := newTestApp(deps)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/market/prices", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAdvisoryChat(t *testing.T) {
	deps := defaultDeps(scriptedGeocoder{}, &stubWeather{})
	deps.Advisory = stubAdvisory{reply: "Rotate your crops."}
	app := newTestApp(deps)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/advisory/chat", fiber.Map{"message": "soil advice?"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Response string `json:"response"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Rotate your crops.", body.Response)
}

func TestAdvisoryChatRequiresMessage(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/advisory/chat", fiber.Map{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdvisoryScanRequiresImage(t *testing.T) {
	app := newTestApp(defaultDeps(scriptedGeocoder{}, &stubWeather{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/advisory/scan", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
