package weather

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNoReport is returned when no weather data has been fetched yet for the
// default location.
var ErrNoReport = errors.New("no weather report available")

// Fetcher abstracts the hourly weather source.
type Fetcher interface {
	Current(ctx context.Context, lat, lon float64) (Report, error)
}

// Service wraps a Fetcher with location labelling and a cached report for
// the configured default location. The cache is what initial page loads see
// before any search has happened.
type Service struct {
	fetcher Fetcher
	def     Location
	logger  *zap.Logger

	mu     sync.RWMutex
	latest *Report
}

func NewService(fetcher Fetcher, def Location, logger *zap.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		def:     def,
		logger:  logger,
	}
}

// DefaultLocation returns the location used before the first resolution.
func (s *Service) DefaultLocation() Location {
	return s.def
}

// Current fetches the report for a location and stamps it with the
// location's display names.
func (s *Service) Current(ctx context.Context, loc Location) (Report, error) {
	report, err := s.fetcher.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return Report{}, err
	}
	report.City = loc.City
	report.Country = loc.Country
	return report, nil
}

// RefreshDefault fetches the default location's weather and caches it.
// A failed refresh keeps the last good report.
func (s *Service) RefreshDefault(ctx context.Context) error {
	report, err := s.Current(ctx, s.def)
	if err != nil {
		s.logger.Warn("default weather refresh failed",
			zap.String("city", s.def.City),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.latest = &report
	s.mu.Unlock()

	s.logger.Debug("default weather refreshed", zap.String("city", s.def.City))
	return nil
}

// Latest returns the cached default-location report.
func (s *Service) Latest() (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return Report{}, ErrNoReport
	}
	return *s.latest, nil
}
