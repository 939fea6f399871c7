package database

import (
	"context"
	"errors"
	"time"

	"praxis-website/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateFormRequest stores fr after re-checking inside the same transaction
// that its contact reason is still active. On success fr.ID, the timestamps
// and fr.ContactReason are populated.
func (gdb *GormDB) CreateFormRequest(ctx context.Context, fr *models.FormRequest) error {
	var reason models.ContactReason
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND is_active = ?", fr.ContactReasonID, true).First(&reason).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrReasonUnavailable
		}
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(fr).Error; err != nil {
			if IsForeignKeyViolation(err) {
				return models.ErrReasonUnavailable
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	fr.ContactReason = &reason
	return nil
}

// RecentFormRequests returns the newest form requests with their reasons
func (gdb *GormDB) RecentFormRequests(ctx context.Context, limit int) ([]models.FormRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var requests []models.FormRequest
	err := gdb.db.WithContext(ctx).
		Preload("ContactReason").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

// FormRequestsByIDs loads form requests keeping the order of ids
func (gdb *GormDB) FormRequestsByIDs(ctx context.Context, ids []uint) ([]models.FormRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.FormRequest
	if err := gdb.db.WithContext(ctx).Preload("ContactReason").Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.FormRequest, len(found))
	for _, fr := range found {
		byID[fr.ID] = fr
	}
	ordered := make([]models.FormRequest, 0, len(found))
	for _, id := range ids {
		if fr, ok := byID[id]; ok {
			ordered = append(ordered, fr)
		}
	}
	return ordered, nil
}

// CountFormRequests counts form requests created at or after since.
// A zero since counts all rows.
func (gdb *GormDB) CountFormRequests(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	q := gdb.db.WithContext(ctx).Model(&models.FormRequest{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	err := q.Count(&count).Error
	return count, err
}

// CountFormRequestsByReason returns one entry per contact reason, including
// reasons without submissions.
func (gdb *GormDB) CountFormRequestsByReason(ctx context.Context) ([]models.ReasonCount, error) {
	type row struct {
		ContactReasonID uint
		Total           int64
	}
	var rows []row
	err := gdb.db.WithContext(ctx).
		Model(&models.FormRequest{}).
		Select("contact_reason_id, COUNT(*) AS total").
		Group("contact_reason_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[uint]int64, len(rows))
	for _, r := range rows {
		totals[r.ContactReasonID] = r.Total
	}

	reasons, err := gdb.ListContactReasons(ctx, false)
	if err != nil {
		return nil, err
	}
	counts := make([]models.ReasonCount, 0, len(reasons))
	for _, r := range reasons {
		counts = append(counts, models.ReasonCount{
			ReasonID: r.ID,
			Key:      r.Key,
			Count:    totals[r.ID],
		})
	}
	return counts, nil
}

// FormRequestTimesSince returns the creation times of form requests created
// at or after since, oldest first.
func (gdb *GormDB) FormRequestTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := gdb.db.WithContext(ctx).
		Model(&models.FormRequest{}).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	return times, err
}
