package repository

import (
	"context"

	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type moderationLogRepository struct {
	db *gorm.DB
}

func NewModerationLogRepository(db *gorm.DB) moderation.Repository {
	return &moderationLogRepository{
		db: db,
	}
}

func (r *moderationLogRepository) Create(ctx context.Context, entry *moderation.LogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *moderationLogRepository) ListByContent(ctx context.Context, contentID uuid.UUID) ([]moderation.LogEntry, error) {
	var entries []moderation.LogEntry
	err := r.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
