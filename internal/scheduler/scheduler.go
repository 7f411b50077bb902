package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/Liebig-2005/farmassist/internal/store"
	"github.com/Liebig-2005/farmassist/internal/weather"
)

// Scheduler runs the periodic maintenance jobs: sweeping idle search
// sessions and keeping the default location's weather warm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  *store.SessionStore
	weather   *weather.Service
	sweep     time.Duration
	refresh   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(
	sessions *store.SessionStore,
	weatherSvc *weather.Service,
	sweepInterval, refreshInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sessions:  sessions,
		weather:   weatherSvc,
		sweep:     sweepInterval,
		refresh:   refreshInterval,
		logger:    logger,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.sweep).Do(func() {
		if removed := s.sessions.Sweep(); removed > 0 {
			s.logger.Info("swept idle search sessions", zap.Int("removed", removed))
		}
	}); err != nil {
		return err
	}

	if _, err := s.scheduler.Every(s.refresh).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.weather.RefreshDefault(ctx); err != nil {
			s.logger.Warn("scheduled weather refresh failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
