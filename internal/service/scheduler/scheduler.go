package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mailgatekeeper/internal/model"
	"mailgatekeeper/pkg/logger"
	"mailgatekeeper/pkg/trace"
)

// Scanner runs one scan cycle.
type Scanner interface {
	Scan(ctx context.Context) (*model.ScanResult, error)
}

// Notifier forwards newly discovered alerts. Delivery failures are the
// notifier's own concern; the scheduler never retries.
type Notifier interface {
	Notify(ctx context.Context, alerts []model.Alert)
}

// Scheduler drives recurring scan cycles from a cron expression. Cycle
// failures are logged and the loop keeps going; it ends only when the
// context is cancelled.
type Scheduler struct {
	schedule    cron.Schedule
	scanner     Scanner
	notifier    Notifier
	scanOnStart bool
	fallback    time.Duration
	logger      *zap.Logger
}

func New(expr string, scanOnStart bool, scanner Scanner, notifier Notifier, log *zap.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &Scheduler{
		schedule:    schedule,
		scanner:     scanner,
		notifier:    notifier,
		scanOnStart: scanOnStart,
		fallback:    time.Hour,
		logger:      log,
	}, nil
}

// WithFallback sets the retry delay used when the schedule yields no next
// occurrence.
func (s *Scheduler) WithFallback(d time.Duration) *Scheduler {
	s.fallback = d
	return s
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Bool("scan_on_start", s.scanOnStart))

	if s.scanOnStart {
		s.runCycle(ctx)
	}

	for {
		now := time.Now().UTC()
		next := s.schedule.Next(now)

		delay := s.fallback
		if next.IsZero() {
			s.logger.Warn("schedule has no next occurrence, retrying later",
				zap.Duration("fallback", s.fallback),
			)
		} else {
			delay = next.Sub(now)
			if delay < 0 {
				delay = 0
			}
			s.logger.Debug("next scan scheduled",
				zap.Time("at", next),
				zap.Duration("in", delay),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
		}

		if next.IsZero() {
			continue
		}
		s.runCycle(ctx)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	ctx = trace.WithContext(ctx, trace.NewScanID())
	log := logger.WithScan(ctx, s.logger)

	result, err := s.scanner.Scan(ctx)
	if err != nil {
		log.Error("scheduled scan failed", zap.Error(err))
		return
	}

	log.Info("scheduled scan completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("new_alerts", result.NewCount),
	)

	if len(result.NewAlerts) > 0 {
		s.notifier.Notify(ctx, result.NewAlerts)
	}
}
