package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tvguide/internal/tvguide/domain"
	"github.com/aussiebroadwan/tvguide/internal/tvguide/store"
)

// StatsService periodically publishes directory sizes per role.
type StatsService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Metrics  Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStatsService creates a stats worker. A non-positive interval means one minute.
func NewStatsService(st store.Store, logger *slog.Logger, m Metrics, interval time.Duration) *StatsService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Metrics:  metricsOrNoop(m),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (s *StatsService) Start() {
	go s.run()
	s.Logger.Info("stats service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress refresh.
func (s *StatsService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("stats service stopped")
}

func (s *StatsService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Refresh(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Refresh(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Refresh counts users per role and reports them. A failed count skips
// that role only.
func (s *StatsService) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAdmin} {
		n, err := s.Store.Users().CountByRole(ctx, role)
		if err != nil {
			s.Logger.Warn("failed to count users", slog.String("role", role.String()), slog.Any("error", err))
			continue
		}
		s.Metrics.DirectoryUsers(role.String(), n)
	}
}
