package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Liebig-2005/farmassist/internal/geocode"
	"github.com/Liebig-2005/farmassist/internal/weather"
)

const minQueryLength = 2

// Geocoder looks up candidate locations for a free-text query.
type Geocoder interface {
	Search(ctx context.Context, name string, limit int) ([]geocode.Place, error)
}

// WeatherService provides the dependent fetch fired after each resolution.
type WeatherService interface {
	Current(ctx context.Context, loc weather.Location) (weather.Report, error)
	DefaultLocation() weather.Location
}

// Dropdown is the suggestion list together with its visibility. An empty
// visible list is unrepresentable: the list is only shown when non-empty.
type Dropdown struct {
	Visible     bool            `json:"visible"`
	Suggestions []geocode.Place `json:"suggestions,omitempty"`
}

// Snapshot is a point-in-time copy of the assistant's observable state.
type Snapshot struct {
	Query          string           `json:"query"`
	Searching      bool             `json:"searching"`
	LoadingWeather bool             `json:"loadingWeather"`
	Dropdown       Dropdown         `json:"dropdown"`
	Location       weather.Location `json:"location"`
	Weather        *weather.Report  `json:"weather,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Assistant turns free-text input into a resolved location with live
// suggestions. All state mutation is serialized by a single mutex so that
// keystroke events, network completions, and submissions interleave safely
// regardless of which goroutine delivers them.
type Assistant struct {
	geocoder Geocoder
	weather  WeatherService
	region   geocode.Region
	debounce time.Duration
	limit    int
	logger   *zap.Logger

	mu    sync.Mutex
	query string

	// Pending debounce emission; replaced wholesale on each keystroke.
	timer *time.Timer

	// Request token guarding the suggestion path. Only the response carrying
	// the current token may touch the dropdown.
	suggestToken  uint64
	cancelSuggest context.CancelFunc

	dropdown       Dropdown
	resolved       weather.Location
	report         *weather.Report
	searching      bool
	loadingWeather bool
	lastError      string
}

func NewAssistant(
	geocoder Geocoder,
	weatherSvc WeatherService,
	region geocode.Region,
	debounce time.Duration,
	suggestLimit int,
	logger *zap.Logger,
) *Assistant {
	return &Assistant{
		geocoder: geocoder,
		weather:  weatherSvc,
		region:   region,
		debounce: debounce,
		limit:    suggestLimit,
		logger:   logger,
		resolved: weatherSvc.DefaultLocation(),
	}
}

// Bootstrap fires the initial weather fetch for the default location.
func (a *Assistant) Bootstrap(ctx context.Context) {
	a.refreshWeather(ctx)
}

// Input records a keystroke. Queries shorter than two characters clear the
// dropdown immediately and cancel any pending or in-flight suggestion work;
// anything else schedules a suggestion fetch once input has settled for the
// debounce window.
func (a *Assistant) Input(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.query = text

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) < minQueryLength {
		a.cancelSuggestLocked()
		a.dropdown = Dropdown{}
		return
	}

	a.timer = time.AfterFunc(a.debounce, func() {
		a.fetchSuggestions(text)
	})
}

// Query returns the current input text.
func (a *Assistant) Query() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.query
}

// cancelSuggestLocked signals cancellation on the in-flight suggestion
// request, if any. Callers must hold a.mu.
func (a *Assistant) cancelSuggestLocked() {
	if a.cancelSuggest != nil {
		a.cancelSuggest()
		a.cancelSuggest = nil
	}
}

// fetchSuggestions runs on the debounce timer's goroutine. It supersedes any
// prior request before dispatching, and applies the response only if its
// token is still current when it lands.
func (a *Assistant) fetchSuggestions(query string) {
	if strings.TrimSpace(query) == "" || utf8.RuneCountInString(query) < minQueryLength {
		return
	}

	a.mu.Lock()
	a.cancelSuggestLocked()
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelSuggest = cancel
	a.suggestToken++
	token := a.suggestToken
	limit := a.limit
	a.mu.Unlock()

	// Release this request's context once the call has completed.
	defer cancel()

	places, err := a.geocoder.Search(ctx, query, limit)

	a.mu.Lock()
	defer a.mu.Unlock()

	if token != a.suggestToken || ctx.Err() != nil {
		// Superseded or cancelled; a stale response must never overwrite
		// the dropdown, regardless of arrival order.
		return
	}
	a.cancelSuggest = nil

	if err != nil {
		// Suggestions are best-effort; failures collapse to an empty list.
		a.logger.Debug("suggestion fetch failed", zap.String("query", query), zap.Error(err))
		a.dropdown = Dropdown{}
		return
	}

	var kept []geocode.Place
	for _, p := range places {
		if a.region.Allows(p.Country, p.CountryCode) {
			kept = append(kept, p)
		}
	}

	if len(kept) == 0 {
		a.dropdown = Dropdown{}
		return
	}
	a.dropdown = Dropdown{Visible: true, Suggestions: kept}
}

// Submit resolves the query into a location and, on success, fetches its
// weather. A blank query is a no-op. Overlapping submissions are not
// mutually cancelling; the last to complete wins.
func (a *Assistant) Submit(ctx context.Context, query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	a.mu.Lock()
	a.searching = true
	a.lastError = ""
	a.dropdown = Dropdown{}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.searching = false
		a.mu.Unlock()
	}()

	err := a.resolve(ctx, trimmed)
	if err != nil {
		a.mu.Lock()
		a.lastError = err.Error()
		a.mu.Unlock()
		return err
	}

	a.refreshWeather(ctx)
	return nil
}

// Select accepts one suggestion from the dropdown and re-submits its
// display name as the query.
func (a *Assistant) Select(ctx context.Context, place geocode.Place) error {
	a.mu.Lock()
	a.query = place.Name
	a.dropdown = Dropdown{}
	a.mu.Unlock()

	return a.Submit(ctx, place.Name)
}

func (a *Assistant) resolve(ctx context.Context, query string) error {
	places, err := a.geocoder.Search(ctx, query, 1)
	if err != nil {
		return transportError(fmt.Errorf("geocoding failed: %w", err))
	}
	if len(places) == 0 {
		return notFoundError()
	}

	top := places[0]
	if !a.region.Allows(top.Country, top.CountryCode) {
		return regionRejectedError(a.region.Name)
	}

	country := top.Country
	if country == "" {
		country = a.region.Name
	}

	a.mu.Lock()
	a.resolved = weather.Location{
		Latitude:  top.Latitude,
		Longitude: top.Longitude,
		City:      top.Name,
		Country:   country,
	}
	a.query = ""
	a.dropdown = Dropdown{}
	a.mu.Unlock()

	return nil
}

// RetryWeather refetches weather for the current resolved location. It is
// the manual recovery path after a weather-fetch failure.
func (a *Assistant) RetryWeather(ctx context.Context) {
	a.refreshWeather(ctx)
}

func (a *Assistant) refreshWeather(ctx context.Context) {
	a.mu.Lock()
	loc := a.resolved
	a.loadingWeather = true
	a.lastError = ""
	a.mu.Unlock()

	report, err := a.weather.Current(ctx, loc)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadingWeather = false

	if err != nil {
		// Keep the last good report on failure.
		a.lastError = fmt.Sprintf("Failed to fetch weather data: %v", err)
		a.logger.Warn("weather fetch failed", zap.String("city", loc.City), zap.Error(err))
		return
	}
	a.report = &report
}

// Snapshot returns a copy of the assistant's observable state.
func (a *Assistant) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Query:          a.query,
		Searching:      a.searching,
		LoadingWeather: a.loadingWeather,
		Location:       a.resolved,
		Error:          a.lastError,
	}

	if a.dropdown.Visible {
		suggestions := make([]geocode.Place, len(a.dropdown.Suggestions))
		copy(suggestions, a.dropdown.Suggestions)
		snap.Dropdown = Dropdown{Visible: true, Suggestions: suggestions}
	}

	if a.report != nil {
		report := *a.report
		snap.Weather = &report
	}

	return snap
}
