package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Liebig-2005/farmassist/internal/weather"
)

type AppConfig struct {
	Port string

	// HTTPTimeout bounds every outbound call to a collaborator.
	HTTPTimeout time.Duration

	// Search assistant tuning.
	DebounceWindow time.Duration
	SuggestLimit   int

	// Allowed region for location search results.
	AllowedCountry     string
	AllowedCountryCode string

	// Location used before the first successful search.
	DefaultLocation weather.Location

	GeocodingBaseURL string
	WeatherBaseURL   string
	WeatherTimezone  string

	MarketBaseURL string
	MarketAPIKey  string
	MarketLimit   int

	// Base URL of the chatbot/scanner backend.
	BackendBaseURL string

	// Search session retention.
	SessionMaxAge   time.Duration
	SessionMaxCount int
	SweepInterval   time.Duration

	// How often the default location's weather is refreshed.
	WeatherRefreshInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	timeout, err := getenvDuration("HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = timeout

	debounce, err := getenvDuration("DEBOUNCE_WINDOW", "150ms")
	if err != nil {
		return nil, err
	}
	cfg.DebounceWindow = debounce

	cfg.SuggestLimit = getenvInt("SUGGEST_LIMIT", 4)

	cfg.AllowedCountry = getenvDefault("ALLOWED_COUNTRY", "India")
	cfg.AllowedCountryCode = getenvDefault("ALLOWED_COUNTRY_CODE", "IN")

	loc, err := loadDefaultLocation()
	if err != nil {
		return nil, err
	}
	cfg.DefaultLocation = loc

	cfg.GeocodingBaseURL = getenvDefault("GEOCODING_BASE_URL", "https://geocoding-api.open-meteo.com/v1/search")
	cfg.WeatherBaseURL = getenvDefault("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast")
	cfg.WeatherTimezone = getenvDefault("WEATHER_TIMEZONE", "Asia/Kolkata")

	cfg.MarketBaseURL = getenvDefault("MARKET_BASE_URL", "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070")
	cfg.MarketAPIKey = os.Getenv("MARKET_API_KEY")
	cfg.MarketLimit = getenvInt("MARKET_LIMIT", 100)

	cfg.BackendBaseURL = getenvDefault("BACKEND_BASE_URL", "http://localhost:8000")

	maxAge, err := getenvDuration("SESSION_MAX_AGE", "30m")
	if err != nil {
		return nil, err
	}
	cfg.SessionMaxAge = maxAge
	cfg.SessionMaxCount = getenvInt("SESSION_MAX_COUNT", 1000)

	sweep, err := getenvDuration("SWEEP_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	cfg.SweepInterval = sweep

	refresh, err := getenvDuration("WEATHER_REFRESH_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	cfg.WeatherRefreshInterval = refresh

	return cfg, nil
}

func loadDefaultLocation() (weather.Location, error) {
	loc := weather.Location{
		City:    getenvDefault("DEFAULT_CITY", "Bengaluru"),
		Country: getenvDefault("DEFAULT_COUNTRY", "India"),
	}

	lat, err := getenvFloat("DEFAULT_LATITUDE", 12.9716)
	if err != nil {
		return loc, err
	}
	lon, err := getenvFloat("DEFAULT_LONGITUDE", 77.5946)
	if err != nil {
		return loc, err
	}
	loc.Latitude = lat
	loc.Longitude = lon

	return loc, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
