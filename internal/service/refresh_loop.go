package service

import (
	"context"
	"time"
)

// StartRefreshLoop reloads account data every interval. It blocks until the
// context is cancelled, so it should be launched in a separate goroutine.
// A non-positive interval disables the loop.
func (s *Service) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infof("Refresh loop started (every %s)", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Refresh loop stopped")
			return
		case <-ticker.C:
			s.refreshOnce(ctx)
		}
	}
}

// refreshOnce skips the reload while signed out
func (s *Service) refreshOnce(ctx context.Context) {
	if s.store.State().User == nil {
		return
	}
	if err := s.store.FetchInitData(ctx); err != nil && ctx.Err() == nil {
		s.logger.Errorf("Failed to refresh account data: %v", err)
	}
}
