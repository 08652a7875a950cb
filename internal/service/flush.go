package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultFlushInterval = 30 * time.Second

// FlushService periodically writes dirty belief graphs back to the store so
// an eviction or crash loses at most one interval of learning.
type FlushService struct {
	manager *GraphManager
	logger  *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewFlushService(manager *GraphManager, logger *zap.Logger) *FlushService {
	return &FlushService{
		manager:  manager,
		logger:   logger,
		interval: defaultFlushInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *FlushService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *FlushService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("flush worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
				s.RunFlush(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("flush worker stopped")
				return
			}
		}
	}()
}

func (s *FlushService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunFlush saves all dirty graphs once and returns the number of beliefs
// written. Per-tenant failures are logged inside the manager and skipped.
func (s *FlushService) RunFlush(ctx context.Context) int {
	saved := s.manager.SaveDirty(ctx)
	if saved > 0 {
		s.logger.Info("flushed dirty belief graphs", zap.Int("beliefs_saved", saved))
	}
	return saved
}
