package cleanup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"praxis-website/internal/database"
	"praxis-website/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb, err := database.OpenSQLite(filepath.Join(t.TempDir(), "cleanup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { gdb.Close() })

	svc := NewService(gdb.DB(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, gdb.DB()
}

func insertJob(t *testing.T, db *gorm.DB, status string, age time.Duration) int64 {
	t.Helper()
	job := &models.NotificationJob{
		UUID:          uuid.NewString(),
		FormRequestID: 1,
		Recipient:     "praxis@example.de",
		ReplyTo:       "patient@example.de",
		Subject:       "Neue Kontaktanfrage",
		Status:        status,
	}
	require.NoError(t, db.Create(job).Error)
	require.NoError(t, db.Model(job).UpdateColumn("updated_at", testNow.Add(-age)).Error)
	return job.ID
}

func TestRun_DeletesOnlyExpiredFinishedJobs(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	day := 24 * time.Hour

	oldDone := insertJob(t, db, models.JobStatusDone, 100*day)
	oldDead := insertJob(t, db, models.JobStatusDead, 91*day)
	insertJob(t, db, models.JobStatusDone, 10*day)
	insertJob(t, db, models.JobStatusPending, 200*day)
	insertJob(t, db, models.JobStatusFailed, 200*day)

	result, err := svc.Run(ctx, CleanupConfig{RetentionDays: 90, MaxDeletionCount: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TargetCount)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, []int64{oldDone, oldDead}, result.DeletedJobs)

	var remaining int64
	require.NoError(t, db.Model(&models.NotificationJob{}).Count(&remaining).Error)
	assert.Equal(t, int64(3), remaining)
}

func TestRun_DryRunKeepsJobs(t *testing.T) {
	svc, db := setupService(t)
	insertJob(t, db, models.JobStatusDone, 120*24*time.Hour)

	result, err := svc.Run(context.Background(), CleanupConfig{RetentionDays: 90, DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.DeletedCount)

	var remaining int64
	require.NoError(t, db.Model(&models.NotificationJob{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestRun_SafetyLimit(t *testing.T) {
	svc, db := setupService(t)
	for i := 0; i < 3; i++ {
		insertJob(t, db, models.JobStatusDone, 120*24*time.Hour)
	}

	_, err := svc.Run(context.Background(), CleanupConfig{RetentionDays: 90, MaxDeletionCount: 2})
	assert.ErrorContains(t, err, "safety check failed")

	_, err = svc.Run(context.Background(), CleanupConfig{RetentionDays: 0})
	assert.Error(t, err)
}

func TestGetStats(t *testing.T) {
	svc, db := setupService(t)
	insertJob(t, db, models.JobStatusDone, 120*24*time.Hour)
	insertJob(t, db, models.JobStatusDead, time.Hour)
	insertJob(t, db, models.JobStatusPending, time.Hour)

	stats, err := svc.GetStats(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["finished_jobs"])
	assert.Equal(t, int64(1), stats["expired_ready_for_deletion"])
}
