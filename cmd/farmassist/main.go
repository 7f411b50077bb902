package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Liebig-2005/farmassist/internal/advisory"
	httpapi "github.com/Liebig-2005/farmassist/internal/api/http"
	"github.com/Liebig-2005/farmassist/internal/config"
	"github.com/Liebig-2005/farmassist/internal/geocode"
	"github.com/Liebig-2005/farmassist/internal/market"
	"github.com/Liebig-2005/farmassist/internal/scheduler"
	"github.com/Liebig-2005/farmassist/internal/search"
	"github.com/Liebig-2005/farmassist/internal/store"
	"github.com/Liebig-2005/farmassist/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Shared HTTP client for outbound collaborator calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	geocoder := geocode.NewClient(httpClient, cfg.GeocodingBaseURL)
	region := geocode.Region{Name: cfg.AllowedCountry, Code: cfg.AllowedCountryCode}

	weatherClient, err := weather.NewClient(httpClient, cfg.WeatherBaseURL, cfg.WeatherTimezone)
	if err != nil {
		zlog.Fatal("failed to build weather client", zap.Error(err))
	}
	weatherSvc := weather.NewService(weatherClient, cfg.DefaultLocation, zlog)

	marketClient := market.NewClient(httpClient, cfg.MarketBaseURL, cfg.MarketAPIKey, cfg.MarketLimit)
	advisoryClient := advisory.NewClient(httpClient, cfg.BackendBaseURL)

	// In-memory session store with configured retention.
	sessions := store.NewSessionStore(cfg.SessionMaxCount, cfg.SessionMaxAge)

	newSession := func() *search.Assistant {
		return search.NewAssistant(geocoder, weatherSvc, region, cfg.DebounceWindow, cfg.SuggestLimit, zlog)
	}

	// Warm the default-location weather before serving.
	{
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		if err := weatherSvc.RefreshDefault(ctx); err != nil {
			zlog.Warn("initial weather fetch failed", zap.Error(err))
		}
		cancel()
	}

	// Scheduler for session sweeps and weather refreshes.
	sched := scheduler.New(sessions, weatherSvc, cfg.SweepInterval, cfg.WeatherRefreshInterval, zlog)
	if err := sched.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "farmassist",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "farmassist",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Geocoder:     geocoder,
		Region:       region,
		Weather:      weatherSvc,
		Market:       marketClient,
		Advisory:     advisoryClient,
		Sessions:     sessions,
		NewSession:   newSession,
		SuggestLimit: cfg.SuggestLimit,
		Logger:       zlog,
	})

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
