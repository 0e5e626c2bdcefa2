package moderation

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads and appends audit log entries. There is deliberately
// no update or delete.
type Repository interface {
	Create(ctx context.Context, entry *LogEntry) error
	ListByContent(ctx context.Context, contentID uuid.UUID) ([]LogEntry, error)
}

// Recorder applies a decision: the content status change and the audit
// log entry are written in a single unit of work.
type Recorder interface {
	RecordDecision(ctx context.Context, entry *LogEntry) error
}
