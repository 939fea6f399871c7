package contact

import (
	"context"
	"errors"
	"time"

	"praxis-website/internal/metrics"
	"praxis-website/internal/models"

	"go.uber.org/zap"
)

// Store persists and queries form requests
type Store interface {
	CreateFormRequest(ctx context.Context, fr *models.FormRequest) error
	RecentFormRequests(ctx context.Context, limit int) ([]models.FormRequest, error)
	CountFormRequests(ctx context.Context, since time.Time) (int64, error)
	CountFormRequestsByReason(ctx context.Context) ([]models.ReasonCount, error)
	FormRequestTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

// Notifier hands a stored submission to staff notification
type Notifier interface {
	Dispatch(ctx context.Context, form *FormData, record *models.FormRequest) error
}

// Indexer makes stored submissions searchable
type Indexer interface {
	IndexSubmission(ctx context.Context, record *models.FormRequest) error
}

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	defaultStatsDays   = 30
	indexTimeout       = 10 * time.Second
)

// Service runs the contact form pipeline
type Service struct {
	store     Store
	reasons   ReasonLookup
	validator *Validator
	notifier  Notifier
	indexer   Indexer
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a Service
func NewService(store Store, reasons ReasonLookup, validator *Validator, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		reasons:   reasons,
		validator: validator,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// SetIndexer enables search indexing of new submissions
func (s *Service) SetIndexer(ix Indexer) {
	s.indexer = ix
}

// Process validates raw input, builds FormData and submits it
func (s *Service) Process(ctx context.Context, locale string, raw map[string]any) (*models.FormRequest, error) {
	validated, err := s.validator.Validate(ctx, locale, raw)
	if err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			metrics.RecordSubmission("rejected")
			return nil, verrs
		}
		metrics.RecordSubmission("failed")
		return nil, err
	}

	form, err := FromValidated(ctx, validated, s.reasons, InLocation(s.validator.Location()))
	if err != nil {
		var cerr *ConstructionError
		if errors.As(err, &cerr) && errors.Is(cerr, ErrInactiveReason) {
			// deactivated after validation ran
			metrics.RecordSubmission("rejected")
			return nil, ValidationErrors{{
				Field:   FieldContactReasonID,
				Rule:    "exists",
				Message: s.validator.message(locale, FieldContactReasonID, "exists", nil),
			}}
		}
		s.logger.Error("Failed to build contact form from validated input", zap.Error(err))
		metrics.RecordSubmission("failed")
		return nil, err
	}

	return s.Submit(ctx, form)
}

// Submit stores form and queues the staff notification. A notification
// failure is logged and never fails the submission.
func (s *Service) Submit(ctx context.Context, form *FormData) (*models.FormRequest, error) {
	record := form.ToFormRequest()
	if err := s.store.CreateFormRequest(ctx, record); err != nil {
		s.logger.Error("Failed to persist form request",
			zap.String("reason", string(form.Reason().Key)),
			zap.Error(err))
		metrics.RecordSubmission("failed")
		return nil, &PersistenceError{Err: err}
	}
	if record.ContactReason == nil {
		reason := form.Reason()
		record.ContactReason = &reason
	}
	metrics.RecordSubmission("accepted")

	s.logger.Info("Form request stored",
		zap.Uint("id", record.ID),
		zap.String("reference", record.Reference()),
		zap.String("reason", string(record.ContactReason.Key)))

	// the notification must not be lost when the client disconnects
	if err := s.notifier.Dispatch(context.WithoutCancel(ctx), form, record); err != nil {
		s.logger.Warn("Failed to enqueue staff notification",
			zap.Uint("form_request_id", record.ID),
			zap.Error(err))
		metrics.RecordNotification("enqueue_failed")
	}

	if s.indexer != nil {
		indexed := *record
		go func() {
			ictx, cancel := context.WithTimeout(context.Background(), indexTimeout)
			defer cancel()
			if err := s.indexer.IndexSubmission(ictx, &indexed); err != nil {
				s.logger.Warn("Failed to index form request", zap.Uint("id", indexed.ID), zap.Error(err))
			}
		}()
	}

	return record, nil
}

// RecentSubmissions returns the newest submissions first
func (s *Service) RecentSubmissions(ctx context.Context, limit int) ([]models.FormRequest, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.store.RecentFormRequests(ctx, limit)
}

// DayCount is the number of submissions on one calendar day
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Statistics summarizes submissions for the admin dashboard
type Statistics struct {
	Total       int64                `json:"total"`
	Last24Hours int64                `json:"last_24_hours"`
	Last7Days   int64                `json:"last_7_days"`
	ByReason    []models.ReasonCount `json:"by_reason"`
	ByDay       []DayCount           `json:"by_day"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Statistics counts submissions in total, by reason and per day for the
// last days calendar days in the practice timezone.
func (s *Service) Statistics(ctx context.Context, days int) (*Statistics, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	now := s.now()
	loc := s.validator.Location()

	stats := &Statistics{GeneratedAt: now.UTC()}
	var err error
	if stats.Total, err = s.store.CountFormRequests(ctx, time.Time{}); err != nil {
		return nil, err
	}
	if stats.Last24Hours, err = s.store.CountFormRequests(ctx, now.Add(-24*time.Hour)); err != nil {
		return nil, err
	}
	if stats.Last7Days, err = s.store.CountFormRequests(ctx, now.AddDate(0, 0, -7)); err != nil {
		return nil, err
	}
	if stats.ByReason, err = s.store.CountFormRequestsByReason(ctx); err != nil {
		return nil, err
	}

	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(days - 1))
	times, err := s.store.FormRequestTimesSince(ctx, first)
	if err != nil {
		return nil, err
	}

	perDay := make(map[string]int64, days)
	for _, t := range times {
		perDay[t.In(loc).Format("2006-01-02")]++
	}
	stats.ByDay = make([]DayCount, 0, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i).Format("2006-01-02")
		stats.ByDay = append(stats.ByDay, DayCount{Date: day, Count: perDay[day]})
	}
	return stats, nil
}
