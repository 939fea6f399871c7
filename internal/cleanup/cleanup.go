package cleanup

import (
	"context"
	"fmt"
	"time"

	"praxis-website/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// finished jobs are never retried again
var finishedStatuses = []string{models.JobStatusDone, models.JobStatusDead}

// Service deletes finished notification jobs after the retention period.
// Form requests are never deleted.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // Days to keep finished jobs (default: 90)
	MaxDeletionCount int  // Maximum number of jobs to delete in one run (safety limit)
	DryRun           bool // If true, only log what would be deleted without actually deleting
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    90,
		MaxDeletionCount: 10000,
		DryRun:           false,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount  int       `json:"target_count"`  // Number of jobs eligible for deletion
	DeletedCount int       `json:"deleted_count"` // Number of jobs actually deleted
	DryRun       bool      `json:"dry_run"`
	Cutoff       time.Time `json:"cutoff"`
	ExecutedAt   time.Time `json:"executed_at"`
	DeletedJobs  []int64   `json:"deleted_jobs"`
}

func (s *Service) cutoff(retentionDays int) time.Time {
	return s.now().UTC().AddDate(0, 0, -retentionDays)
}

// FindExpiredJobs finds jobs that are eligible for deletion: done or dead
// and last touched before the retention period.
func (s *Service) FindExpiredJobs(ctx context.Context, retentionDays int) ([]models.NotificationJob, error) {
	var jobs []models.NotificationJob
	cutoff := s.cutoff(retentionDays)

	err := s.db.WithContext(ctx).
		Select("id", "uuid", "form_request_id", "status", "updated_at").
		Where("status IN ? AND updated_at < ?", finishedStatuses, cutoff).
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired notification jobs: %w", err)
	}
	return jobs, nil
}

// Run deletes expired jobs, or only reports them on a dry run
func (s *Service) Run(ctx context.Context, config CleanupConfig) (*CleanupResult, error) {
	if config.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be greater than 0")
	}
	result := &CleanupResult{
		DryRun:      config.DryRun,
		Cutoff:      s.cutoff(config.RetentionDays),
		ExecutedAt:  s.now().UTC(),
		DeletedJobs: []int64{},
	}

	expired, err := s.FindExpiredJobs(ctx, config.RetentionDays)
	if err != nil {
		return nil, err
	}
	result.TargetCount = len(expired)
	if result.TargetCount == 0 {
		s.logger.Info("No expired notification jobs found")
		return result, nil
	}

	// Safety check: abort if too many jobs would be deleted
	if config.MaxDeletionCount > 0 && result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d jobs exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	ids := make([]int64, len(expired))
	for i, job := range expired {
		ids[i] = job.ID
	}

	if config.DryRun {
		s.logger.Info("[DRY-RUN] Would delete notification jobs",
			zap.Int("count", len(ids)),
			zap.Int("retention_days", config.RetentionDays))
		result.DeletedJobs = ids
		result.DeletedCount = len(ids)
		return result, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id IN ? AND status IN ?", ids, finishedStatuses).Delete(&models.NotificationJob{})
		if res.Error != nil {
			return res.Error
		}
		result.DeletedCount = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete notification jobs: %w", err)
	}
	result.DeletedJobs = ids

	s.logger.Info("Cleanup completed",
		zap.Int("deleted", result.DeletedCount),
		zap.Int("target", result.TargetCount),
		zap.Int("retention_days", config.RetentionDays))
	return result, nil
}

// GetStats returns how many finished jobs exist and how many are expired
func (s *Service) GetStats(ctx context.Context, retentionDays int) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var finished int64
	if err := s.db.WithContext(ctx).Model(&models.NotificationJob{}).
		Where("status IN ?", finishedStatuses).
		Count(&finished).Error; err != nil {
		return nil, err
	}
	stats["finished_jobs"] = finished

	var expired int64
	if err := s.db.WithContext(ctx).Model(&models.NotificationJob{}).
		Where("status IN ? AND updated_at < ?", finishedStatuses, s.cutoff(retentionDays)).
		Count(&expired).Error; err != nil {
		return nil, err
	}
	stats["expired_ready_for_deletion"] = expired
	stats["retention_days"] = retentionDays

	return stats, nil
}
