package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"returns-reconciliation-service/internal/model"
)

var (
	ErrAttachmentNotFound  = errors.New("attachment not found")
	ErrDuplicateSubmission = errors.New("return number already submitted")
)

// SaveSubmission stores all product lines and photos of one intake submission atomically.
// A return number is accepted once; a second submission under it fails with ErrDuplicateSubmission.
func (s *Store) SaveSubmission(ctx context.Context, lines []model.FormRequest, photos []model.Attachment) error {
	if len(lines) == 0 {
		return errors.New("submission without product lines")
	}
	number := lines[0].InternalReturnNumber
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.FormRequest{}).
			Where("internal_return_number = ?", number).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("check return number %s: %w", number, err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateSubmission, number)
		}
		if err := tx.Create(&lines).Error; err != nil {
			return fmt.Errorf("insert form lines: %w", err)
		}
		if len(photos) > 0 {
			if err := tx.Create(&photos).Error; err != nil {
				return fmt.Errorf("insert photos: %w", err)
			}
		}
		return nil
	})
}

// FormLines returns the product lines of one submission outside any merge.
func (s *Store) FormLines(ctx context.Context, number string) ([]model.FormRequest, error) {
	return (&Tx{db: s.db}).FormLines(ctx, number)
}

// ListAttachments returns the photo metadata of a submission without the binary data.
func (s *Store) ListAttachments(ctx context.Context, number string) ([]model.Attachment, error) {
	var out []model.Attachment
	err := s.db.WithContext(ctx).
		Select("id", "internal_return_number", "product_ean", "mime_type", "created_at").
		Where("internal_return_number = ?", number).
		Order("id").
		Find(&out).Error
	return out, err
}

func (s *Store) FindAttachment(ctx context.Context, id uint64) (*model.Attachment, error) {
	var a model.Attachment
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// NextReturnNumber advances the durable per-year counter and formats it as ZW00001-2025.
// The upsert holds the counter row lock until commit, so concurrent callers never share a value.
func (s *Store) NextReturnNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	var value int64
	err := s.db.WithContext(ctx).Raw(
		`INSERT INTO return_counters (year, value) VALUES (?, 1)
		 ON CONFLICT (year) DO UPDATE SET value = return_counters.value + 1
		 RETURNING value`, year).
		Scan(&value).Error
	if err != nil {
		return "", fmt.Errorf("advance return counter: %w", err)
	}
	return fmt.Sprintf("ZW%05d-%d", value, year), nil
}
