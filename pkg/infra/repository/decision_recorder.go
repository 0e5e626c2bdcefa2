package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrStatusConflict means the content's current status no longer
// matches the entry's previous_status; someone else transitioned it
// first.
var ErrStatusConflict = errors.New("content status changed concurrently")

type decisionRecorder struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDecisionRecorder(db *gorm.DB, logger *logrus.Logger) moderation.Recorder {
	return &decisionRecorder{
		db:     db,
		logger: logger,
	}
}

// RecordDecision applies the status transition and appends the audit
// log entry in one transaction. The log is the audit source of truth: a
// crash can never leave a status change without its entry, and the
// absence of an entry means the content was never moderated.
func (r *decisionRecorder) RecordDecision(ctx context.Context, entry *moderation.LogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid log entry: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&content.Diagram{}).
			Where("id = ? AND status = ?", entry.ContentID, entry.PreviousStatus).
			Update("status", entry.NewStatus)
		if res.Error != nil {
			return fmt.Errorf("failed to update content status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create moderation log entry: %w", err)
		}

		r.logger.WithFields(logrus.Fields{
			"content_id":      entry.ContentID,
			"action":          entry.Action,
			"previous_status": entry.PreviousStatus,
			"new_status":      entry.NewStatus,
		}).Info("recorded moderation decision")

		return nil
	})
}
