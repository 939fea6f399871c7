package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"praxis-website/internal/metrics"
	"praxis-website/internal/models"

	"go.uber.org/zap"
)

const (
	sendTimeout = 30 * time.Second
	// processing rows older than this belong to a worker that died mid-send
	staleAfter = 10 * time.Minute
)

// WorkerConfig configures a Worker
type WorkerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// Worker delivers queued notification jobs. Failed deliveries are retried
// with backoff; after MaxAttempts the job is moved to dead.
type Worker struct {
	store        JobStore
	mailer       Mailer
	breaker      *CircuitBreaker
	logger       *zap.Logger
	pollInterval time.Duration
	maxAttempts  int
	wake         <-chan struct{}
	now          func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWorker creates a worker. wake may be nil.
func NewWorker(store JobStore, mailer Mailer, breaker *CircuitBreaker, wake <-chan struct{}, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Worker{
		store:        store,
		mailer:       mailer,
		breaker:      breaker,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		wake:         wake,
		now:          time.Now,
	}
}

// Start runs the worker loop until Stop is called or ctx ends
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		w.logger.Warn("Notification worker already running")
		return
	}

	if n, err := w.store.RequeueStaleNotifications(ctx, w.now().Add(-staleAfter)); err != nil {
		w.logger.Error("Failed to requeue stale notifications", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("Requeued stale notifications", zap.Int64("count", n))
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.logger.Info("Notification worker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("max_attempts", w.maxAttempts))

	go w.run(runCtx, w.done)
}

// Stop stops the loop and waits for the current job to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("Notification worker stopped")
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
		w.drain(ctx)
	}
}

// drain processes due jobs until none is left or delivery is paused
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("Notification worker error", zap.Error(err))
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext delivers the next due job. It returns false when no job was due
// or the circuit breaker is open.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if !w.breaker.CanProceed() {
		return false, nil
	}

	job, err := w.store.NextDueNotification(ctx, w.now())
	if err != nil {
		return false, fmt.Errorf("fetch next notification: %w", err)
	}
	if job == nil {
		return false, nil
	}

	claimed, err := w.store.ClaimNotification(ctx, job)
	if err != nil {
		return false, fmt.Errorf("claim notification %d: %w", job.ID, err)
	}
	if !claimed {
		// another worker took it; look again
		return true, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err = w.mailer.Send(sendCtx, Message{
		ID:       job.UUID,
		To:       job.Recipient,
		ReplyTo:  job.ReplyTo,
		Subject:  job.Subject,
		HTMLBody: job.HTMLBody,
		TextBody: job.TextBody,
	})
	if err != nil {
		w.handleFailure(ctx, job, err)
		return true, nil
	}

	w.breaker.RecordSuccess()
	now := w.now().UTC()
	job.Status = models.JobStatusDone
	job.LastError = ""
	job.NextRetryAt = nil
	job.CompletedAt = &now
	if err := w.store.SaveNotification(ctx, job); err != nil {
		return true, fmt.Errorf("mark notification %d done: %w", job.ID, err)
	}
	metrics.RecordNotification("sent")
	w.logger.Info("Notification sent",
		zap.Int64("job_id", job.ID),
		zap.Uint("form_request_id", job.FormRequestID),
		zap.Int("attempt", job.Attempts))
	return true, nil
}

func (w *Worker) handleFailure(ctx context.Context, job *models.NotificationJob, sendErr error) {
	if w.breaker.RecordFailure() {
		w.logger.Warn("Mail delivery paused after repeated failures", zap.Error(sendErr))
	}

	job.LastError = sendErr.Error()
	if job.Attempts >= w.maxAttempts {
		now := w.now().UTC()
		job.Status = models.JobStatusDead
		job.NextRetryAt = nil
		job.CompletedAt = &now
		metrics.RecordNotification("dead")
		w.logger.Error("Notification permanently failed",
			zap.Int64("job_id", job.ID),
			zap.Uint("form_request_id", job.FormRequestID),
			zap.Int("attempts", job.Attempts),
			zap.Error(sendErr))
	} else {
		// Attempts was incremented by the claim
		delay := models.NextRetryDelay(job.Attempts - 1)
		next := w.now().Add(delay).UTC()
		job.Status = models.JobStatusFailed
		job.NextRetryAt = &next
		metrics.RecordNotification("retry")
		w.logger.Warn("Notification delivery failed, scheduling retry",
			zap.Int64("job_id", job.ID),
			zap.Int("attempt", job.Attempts),
			zap.Int("max_attempts", w.maxAttempts),
			zap.Duration("retry_in", delay),
			zap.Error(sendErr))
	}

	if err := w.store.SaveNotification(ctx, job); err != nil {
		w.logger.Error("Failed to save notification retry state", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

// IsRunning reports whether the loop is active
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// GetQueueStats returns job counts per status and worker state
func (w *Worker) GetQueueStats(ctx context.Context) (map[string]interface{}, error) {
	counts, err := w.store.NotificationStats(ctx)
	if err != nil {
		return nil, err
	}
	breakerOpen, failures := w.breaker.GetStatus()

	stats := make(map[string]interface{}, len(counts)+3)
	for status, n := range counts {
		stats[status] = n
	}
	stats["is_running"] = w.IsRunning()
	stats["breaker_open"] = breakerOpen
	stats["consecutive_failures"] = failures
	return stats, nil
}
