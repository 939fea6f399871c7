package models

import (
	"time"
)

// NotificationJob is a queued staff email for one form request.
// The worker retries failed jobs with backoff and moves them to dead after MaxAttempts.
type NotificationJob struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	FormRequestID uint       `gorm:"not null;index" json:"form_request_id"`
	Recipient     string     `gorm:"type:varchar(255);not null" json:"recipient"`
	ReplyTo       string     `gorm:"type:varchar(255);not null" json:"reply_to"`
	Subject       string     `gorm:"type:varchar(255);not null" json:"subject"`
	HTMLBody      string     `gorm:"type:text" json:"-"`
	TextBody      string     `gorm:"type:text" json:"-"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_job_status" json:"status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt   *time.Time `gorm:"index:idx_job_retry" json:"next_retry_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (NotificationJob) TableName() string {
	return "notification_jobs"
}

// Status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
	JobStatusDead       = "dead"
)

// NextRetryDelay returns the backoff before the next attempt
func NextRetryDelay(attempts int) time.Duration {
	// 1min, 5min, 15min, 1h, 4h
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
	}

	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
