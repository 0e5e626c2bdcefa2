package moderation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionAIApprove      Action = "ai_approve"
	ActionAIReject       Action = "ai_reject"
	ActionAIManualReview Action = "ai_manual_review"
	ActionAdminApprove   Action = "admin_approve"
	ActionAdminReject    Action = "admin_reject"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAIApprove, ActionAIReject, ActionAIManualReview, ActionAdminApprove, ActionAdminReject:
		return true
	}
	return false
}

func (a Action) IsAI() bool {
	return strings.HasPrefix(string(a), "ai_")
}

func (a Action) IsAdmin() bool {
	return strings.HasPrefix(string(a), "admin_")
}

// FlagsJSON stores the flag set as a jsonb column.
type FlagsJSON []string

func (f FlagsJSON) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(f))
}

func (f *FlagsJSON) Scan(value interface{}) error {
	if value == nil {
		*f = FlagsJSON{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for FlagsJSON: %T", value)
	}
	return json.Unmarshal(data, (*[]string)(f))
}

// LogEntry is the append-only audit record of a single moderation
// decision, human or automated. Entries are created in the same
// transaction as the content status change and never updated or
// deleted afterwards.
type LogEntry struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ContentID      uuid.UUID      `json:"content_id" gorm:"type:uuid;index"`
	Action         Action         `json:"action"`
	PreviousStatus content.Status `json:"previous_status"`
	NewStatus      content.Status `json:"new_status"`
	Reason         string         `json:"reason"`
	AIConfidence   *float64       `json:"ai_confidence,omitempty"`
	AIFlags        FlagsJSON      `json:"ai_flags,omitempty" gorm:"type:jsonb"`
	PerformedBy    *uuid.UUID     `json:"performed_by,omitempty" gorm:"type:uuid"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (LogEntry) TableName() string {
	return "moderation_logs"
}

func (e *LogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return e.Validate()
}

func (e *LogEntry) Validate() error {
	if e.ContentID == uuid.Nil {
		return fmt.Errorf("content_id is required")
	}
	if !e.Action.Valid() {
		return fmt.Errorf("invalid action: %s", e.Action)
	}
	if !e.PreviousStatus.Valid() {
		return fmt.Errorf("invalid previous_status: %s", e.PreviousStatus)
	}
	if !e.NewStatus.Valid() {
		return fmt.Errorf("invalid new_status: %s", e.NewStatus)
	}
	if e.AIConfidence != nil && (*e.AIConfidence < 0 || *e.AIConfidence > 1) {
		return fmt.Errorf("ai_confidence must be between 0 and 1")
	}
	if e.Action.IsAI() && e.AIConfidence == nil {
		return fmt.Errorf("ai_confidence is required for action %s", e.Action)
	}
	if e.Action.IsAdmin() {
		if e.PerformedBy == nil {
			return fmt.Errorf("performed_by is required for action %s", e.Action)
		}
		if strings.TrimSpace(e.Reason) == "" {
			return fmt.Errorf("reason is required for action %s", e.Action)
		}
	}
	return nil
}

// NewAIEntry builds a log entry for an automated decision.
func NewAIEntry(
	contentID uuid.UUID,
	action Action,
	previous, next content.Status,
	reason string,
	confidence float64,
	flags []string,
) (*LogEntry, error) {
	if !action.IsAI() {
		return nil, fmt.Errorf("action %s is not an ai action", action)
	}
	entry := &LogEntry{
		ContentID:      contentID,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      next,
		Reason:         reason,
		AIConfidence:   &confidence,
		AIFlags:        flags,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

// NewAdminEntry builds a log entry for a human decision.
func NewAdminEntry(
	contentID uuid.UUID,
	performedBy uuid.UUID,
	action Action,
	previous, next content.Status,
	reason string,
) (*LogEntry, error) {
	if !action.IsAdmin() {
		return nil, fmt.Errorf("action %s is not an admin action", action)
	}
	if performedBy == uuid.Nil {
		return nil, fmt.Errorf("performed_by is required for action %s", action)
	}
	entry := &LogEntry{
		ContentID:      contentID,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      next,
		Reason:         reason,
		PerformedBy:    &performedBy,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}
