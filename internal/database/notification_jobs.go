package database

import (
	"context"
	"errors"
	"time"

	"praxis-website/internal/models"

	"gorm.io/gorm"
)

// EnqueueNotification stores a new pending notification job
func (gdb *GormDB) EnqueueNotification(ctx context.Context, job *models.NotificationJob) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	return gdb.db.WithContext(ctx).Create(job).Error
}

// NextDueNotification returns the oldest pending job, or failing that the
// oldest failed job whose retry time has passed. It returns nil when nothing is due.
func (gdb *GormDB) NextDueNotification(ctx context.Context, now time.Time) (*models.NotificationJob, error) {
	var job models.NotificationJob
	db := gdb.db.WithContext(ctx)

	err := db.Where("status = ?", models.JobStatusPending).
		Order("created_at ASC, id ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", models.JobStatusFailed, now.UTC()).
			Order("next_retry_at ASC, id ASC").
			First(&job).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNotification moves job to processing and counts the attempt.
// It returns false when another worker changed the job first.
func (gdb *GormDB) ClaimNotification(ctx context.Context, job *models.NotificationJob) (bool, error) {
	result := gdb.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Updates(map[string]interface{}{
			"status":   models.JobStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	job.Attempts++
	return true, nil
}

// SaveNotification writes all fields of job
func (gdb *GormDB) SaveNotification(ctx context.Context, job *models.NotificationJob) error {
	return gdb.db.WithContext(ctx).Save(job).Error
}

// RequeueStaleNotifications puts jobs stuck in processing since before cutoff
// back to pending. A worker that died mid-send leaves such rows behind.
func (gdb *GormDB) RequeueStaleNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	result := gdb.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, cutoff.UTC()).
		Update("status", models.JobStatusPending)
	return result.RowsAffected, result.Error
}

// NotificationStats counts jobs per status
func (gdb *GormDB) NotificationStats(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := gdb.db.WithContext(ctx).
		Model(&models.NotificationJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := map[string]int64{
		models.JobStatusPending:    0,
		models.JobStatusProcessing: 0,
		models.JobStatusDone:       0,
		models.JobStatusFailed:     0,
		models.JobStatusDead:       0,
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}
