package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"praxis-website/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedContactReasons inserts catalog entries that are missing.
// Existing rows keep their active flag and labels.
func (gdb *GormDB) SeedContactReasons(ctx context.Context) (int, error) {
	created := 0
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range models.ReasonCatalog {
			var existing models.ContactReason
			err := tx.Where(&models.ContactReason{Key: def.Key}).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			reason := models.ContactReason{
				Key:       def.Key,
				Name:      datatypes.NewJSONType(def.Name),
				SortOrder: def.SortOrder,
				IsActive:  true,
			}
			if err := tx.Create(&reason).Error; err != nil {
				return fmt.Errorf("seed contact reason %s: %w", def.Key, err)
			}
			created++
		}
		return nil
	})
	return created, err
}

// VerifyContactReasons checks that every catalog key exists and has a label
// for each locale.
func (gdb *GormDB) VerifyContactReasons(ctx context.Context, locales []string) error {
	reasons, err := gdb.ListContactReasons(ctx, false)
	if err != nil {
		return err
	}

	byKey := make(map[models.ReasonKey]models.ContactReason, len(reasons))
	for _, r := range reasons {
		byKey[r.Key] = r
	}

	var problems []string
	for _, def := range models.ReasonCatalog {
		r, ok := byKey[def.Key]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s missing", def.Key))
			continue
		}
		name := r.Name.Data()
		for _, loc := range locales {
			if strings.TrimSpace(name[loc]) == "" {
				problems = append(problems, fmt.Sprintf("%s has no %s label", def.Key, loc))
			}
		}
	}
	for _, r := range reasons {
		if !models.IsKnownReasonKey(r.Key) {
			problems = append(problems, fmt.Sprintf("%s is not a known reason", r.Key))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("contact reasons out of sync: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ListContactReasons returns reasons ordered for display
func (gdb *GormDB) ListContactReasons(ctx context.Context, activeOnly bool) ([]models.ContactReason, error) {
	var reasons []models.ContactReason
	q := gdb.db.WithContext(ctx).Order("sort_order ASC, id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&reasons).Error
	return reasons, err
}

// FindActiveContactReason returns the reason with id if it exists and is active.
// It returns models.ErrReasonUnavailable otherwise.
func (gdb *GormDB) FindActiveContactReason(ctx context.Context, id uint) (*models.ContactReason, error) {
	var reason models.ContactReason
	err := gdb.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&reason).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrReasonUnavailable
	}
	if err != nil {
		return nil, err
	}
	return &reason, nil
}

// SetContactReasonActive switches a reason on or off
func (gdb *GormDB) SetContactReasonActive(ctx context.Context, id uint, active bool) (*models.ContactReason, error) {
	var reason models.ContactReason
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&reason, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrReasonNotFound
			}
			return err
		}
		reason.IsActive = active
		return tx.Model(&reason).Update("is_active", active).Error
	})
	if err != nil {
		return nil, err
	}
	return &reason, nil
}

// DeleteContactReason removes a reason no form request refers to
func (gdb *GormDB) DeleteContactReason(ctx context.Context, id uint) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reason models.ContactReason
		if err := tx.First(&reason, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrReasonNotFound
			}
			return err
		}

		var refs int64
		if err := tx.Model(&models.FormRequest{}).Where("contact_reason_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return models.ErrReasonInUse
		}

		if err := tx.Delete(&reason).Error; err != nil {
			if IsForeignKeyViolation(err) {
				return models.ErrReasonInUse
			}
			return err
		}
		return nil
	})
}
