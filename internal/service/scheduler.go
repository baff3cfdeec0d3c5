package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/config"
	"github.com/paracket/paracket/internal/store"
)

// Scheduler triggers scan passes periodically in serve mode, standing in for
// the external cron the scan command was designed for. Every tick is one
// complete, independent pass; there is no state carried between ticks.
type Scheduler struct {
	config     *config.SchedulerConfig
	logger     *zap.Logger
	dispatcher *Dispatcher
	cron       *cron.Cron
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, dispatcher *Dispatcher) *Scheduler {
	return &Scheduler{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.Disabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.ScanInterval)
	if err != nil {
		s.logger.Error("Invalid scan interval", zap.String("interval", s.config.ScanInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("scan_interval", s.config.ScanInterval))

	s.cron = cron.New()
	if err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.runScan(ctx)
	}); err != nil {
		return fmt.Errorf("failed to register scan job: %w", err)
	}
	s.cron.Start()

	// Run first scan immediately
	go func() {
		s.logger.Info("Running initial scan")
		s.runScan(ctx)
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runScan(ctx context.Context) {
	start := time.Now()
	summary, err := s.dispatcher.Scan(ctx)
	duration := time.Since(start)

	if err != nil {
		if err == store.ErrLocked {
			s.logger.Info("Skipping scan, another pass is running")
			return
		}
		s.logger.Error("Scan failed",
			zap.Error(err),
			zap.Duration("duration", duration))
		return
	}

	s.logger.Info("Scheduled scan completed",
		zap.Duration("duration", duration),
		zap.Int("due", summary.Due),
		zap.Int("posted", summary.Posted),
		zap.Int("failed", summary.Failed))
}
