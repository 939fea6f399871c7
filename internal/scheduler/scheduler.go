package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"praxis-website/internal/cleanup"
	"praxis-website/internal/config"
	"praxis-website/internal/warmer"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Warmer runs a full cache warm
type Warmer interface {
	WarmAll(ctx context.Context, opts warmer.Options) (*warmer.Report, error)
}

// Cleaner removes expired notification jobs
type Cleaner interface {
	Run(ctx context.Context, cfg cleanup.CleanupConfig) (*cleanup.CleanupResult, error)
}

// jobTimeout bounds a single scheduled run
const jobTimeout = 30 * time.Minute

// Scheduler runs cache warming and cleanup on their cron schedules
type Scheduler struct {
	cron      *cron.Cron
	warmer    Warmer
	cleaner   Cleaner
	config    *config.Config
	logger    *zap.Logger
	isRunning bool

	// one warm at a time; manual triggers skip while a run is active
	warmMu sync.Mutex
}

// NewScheduler creates a new scheduler. warmer or cleaner may be nil to
// leave the job out.
func NewScheduler(w Warmer, c Cleaner, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(cfg.Location())),
		warmer:  w,
		cleaner: c,
		config:  cfg,
		logger:  logger,
	}
}

// Start registers the enabled jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if s.warmer != nil && s.config.Warmer.Enabled && s.config.Warmer.Schedule != "" {
		_, err := s.cron.AddFunc(s.config.Warmer.Schedule, func() {
			s.RunWarmNow(context.Background(), false)
		})
		if err != nil {
			return fmt.Errorf("invalid warmer schedule %q: %w", s.config.Warmer.Schedule, err)
		}
		s.logger.Info("Scheduler: cache warm registered", zap.String("cron", s.config.Warmer.Schedule))
	}

	if s.cleaner != nil && s.config.Cleanup.Enabled {
		cronSpec := s.parseDailyRunTime(s.config.Cleanup.DailyRunTime)
		_, err := s.cron.AddFunc(cronSpec, func() {
			s.RunCleanupNow(context.Background(), false)
		})
		if err != nil {
			return err
		}
		s.logger.Info("Scheduler: cleanup registered",
			zap.String("daily_run_time", s.config.Cleanup.DailyRunTime),
			zap.String("cron", cronSpec))
	}

	if len(s.cron.Entries()) == 0 {
		s.logger.Info("Scheduler: no jobs enabled in configuration")
		return nil
	}

	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		s.logger.Info("Scheduler: Stopped")
	}
}

// RunWarmNow runs a cache warm unless one is already running. It reports
// whether a run took place.
func (s *Scheduler) RunWarmNow(ctx context.Context, clear bool) (*warmer.Report, bool) {
	if s.warmer == nil || !s.warmMu.TryLock() {
		return nil, false
	}
	defer s.warmMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	s.logger.Info("Scheduler: Starting cache warm", zap.Bool("clear", clear))
	report, err := s.warmer.WarmAll(ctx, warmer.Options{Clear: clear})
	if err != nil {
		s.logger.Error("Scheduler: Cache warm failed", zap.Error(err))
	}
	return report, true
}

// RunCleanupNow runs the notification job cleanup once
func (s *Scheduler) RunCleanupNow(ctx context.Context, dryRun bool) (*cleanup.CleanupResult, error) {
	if s.cleaner == nil {
		return nil, fmt.Errorf("cleanup is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	cfg := cleanup.DefaultCleanupConfig()
	if s.config.Cleanup.RetentionDays > 0 {
		cfg.RetentionDays = s.config.Cleanup.RetentionDays
	}
	cfg.DryRun = dryRun

	result, err := s.cleaner.Run(ctx, cfg)
	if err != nil {
		s.logger.Error("Scheduler: Cleanup failed", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// IsRunning reports whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	// Default to 2:00 AM if parsing fails
	s.logger.Warn("Scheduler: Failed to parse time, using default 02:00", zap.String("time", timeStr))
	return "0 2 * * *"
}
