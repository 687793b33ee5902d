package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Second

// LedgerSweeper periodically prunes the rate-limit ledger so it does not grow without bound.
type LedgerSweeper struct {
	logger     *zap.Logger
	limiter    *RateLimiter
	settings   *SettingsService
	schedule   string
	maxEntries int
	cron       *cron.Cron
}

// NewLedgerSweeper creates a sweeper running on a cron schedule such as "@every 10m".
func NewLedgerSweeper(logger *zap.Logger, limiter *RateLimiter, settings *SettingsService, schedule string, maxEntries int) *LedgerSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerSweeper{
		logger:     logger,
		limiter:    limiter,
		settings:   settings,
		schedule:   schedule,
		maxEntries: maxEntries,
		cron:       cron.New(),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *LedgerSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.SweepOnce(context.Background()) }); err != nil {
		return fmt.Errorf("ledger sweeper: schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *LedgerSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("ledger sweeper stopped")
}

// SweepOnce prunes entries older than the current rate-limit window.
func (s *LedgerSweeper) SweepOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error("ledger sweep: failed to load settings", zap.Error(err))
		return
	}

	removed, err := s.limiter.Sweep(ctx, settings.RateLimitSeconds, s.maxEntries)
	if err != nil {
		s.logger.Error("ledger sweep failed", zap.Error(err))
		return
	}

	if removed > 0 {
		ledgerSweptTotal.Add(float64(removed))
		s.logger.Info("pruned rate-limit ledger",
			zap.Int("removed", removed),
			zap.Int("window_seconds", settings.RateLimitSeconds),
		)
	}
}
